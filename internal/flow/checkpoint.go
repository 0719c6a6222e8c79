package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Checkpoint is the on-disk snapshot of a session context taken before each
// state transition. The context fields are flattened into the same JSON
// object as the checkpoint bookkeeping.
type Checkpoint struct {
	Context
	CheckpointedAt  time.Time `json:"checkpointed_at"`
	CheckpointIndex int       `json:"checkpoint_index"`
}

// CorruptCheckpointError marks a checkpoint that cannot be used for resume:
// the file is missing, unparseable, or lacks a current state. It is distinct
// from generic I/O failures so callers can tell operator error from disk
// trouble.
type CorruptCheckpointError struct {
	Path   string
	Reason string
}

func (e *CorruptCheckpointError) Error() string {
	return fmt.Sprintf("corrupt checkpoint %s: %s", e.Path, e.Reason)
}

// CheckpointStore writes and scans the per-run checkpoint directory.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore builds a store rooted at dir, creating it if needed.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure checkpoint directory: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

// Dir returns the checkpoint directory path.
func (s *CheckpointStore) Dir() string { return s.dir }

// checkpointFileName encodes the zero-padded index and the state name so a
// directory listing reads as the session's timeline.
func checkpointFileName(index int, state State) string {
	return fmt.Sprintf("checkpoint-%03d-%s.json", index, strings.ToLower(string(state)))
}

// Write persists a snapshot of the context under the given index and returns
// the file path. The write is atomic (temp file + rename) so a crash can
// never leave a truncated checkpoint as the latest one.
func (s *CheckpointStore) Write(c Context, index int) (string, error) {
	snapshot := Checkpoint{
		Context:         c.clone(),
		CheckpointedAt:  time.Now().UTC(),
		CheckpointIndex: index,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}

	path := filepath.Join(s.dir, checkpointFileName(index, c.CurrentState))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize checkpoint: %w", err)
	}
	return path, nil
}

// Latest returns the path of the highest-indexed checkpoint in the directory.
func (s *CheckpointStore) Latest() (string, error) {
	return s.latest(func(State) bool { return true })
}

// LatestResumable returns the highest-indexed checkpoint taken at a
// non-terminal state. Terminal snapshots document the outcome of a finished
// run; resuming one would make no progress.
func (s *CheckpointStore) LatestResumable() (string, error) {
	return s.latest(func(state State) bool { return !state.IsTerminal() })
}

// CheckpointInfo summarizes one checkpoint file without loading its full
// context, for operator-facing listings.
type CheckpointInfo struct {
	Path           string
	Index          int
	State          State
	CheckpointedAt time.Time
}

// List returns every checkpoint in the directory in write order. Files whose
// names do not parse are skipped rather than failing the whole listing.
func (s *CheckpointStore) List() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint directory: %w", err)
	}

	var infos []CheckpointInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "checkpoint-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		state := stateFromFileName(name)
		if state == "" {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint-"), ".json")
		indexPart, _, _ := strings.Cut(trimmed, "-")
		index, err := strconv.Atoi(indexPart)
		if err != nil {
			continue
		}
		info := CheckpointInfo{
			Path:  filepath.Join(s.dir, name),
			Index: index,
			State: state,
		}
		// The capture time comes from the snapshot itself, not file mtime,
		// so copied or restored checkpoint directories still report when
		// each snapshot was taken.
		var stamp struct {
			CheckpointedAt time.Time `json:"checkpointed_at"`
		}
		if data, err := os.ReadFile(info.Path); err == nil {
			if err := json.Unmarshal(data, &stamp); err == nil {
				info.CheckpointedAt = stamp.CheckpointedAt
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })
	return infos, nil
}

func (s *CheckpointStore) latest(keep func(State) bool) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("scan checkpoint directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "checkpoint-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if !keep(stateFromFileName(name)) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", &CorruptCheckpointError{Path: s.dir, Reason: "no checkpoints found"}
	}

	// Zero-padded indices make lexicographic order the write order.
	sort.Strings(names)
	return filepath.Join(s.dir, names[len(names)-1]), nil
}

// stateFromFileName recovers the state encoded by checkpointFileName. An
// unparseable name yields an empty state, which no filter treats as terminal.
func stateFromFileName(name string) State {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint-"), ".json")
	if _, state, ok := strings.Cut(trimmed, "-"); ok {
		return State(strings.ToUpper(state))
	}
	return ""
}

// LoadCheckpoint reads and validates a checkpoint file. A missing file,
// unparseable JSON, or an absent current state yields a
// *CorruptCheckpointError.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &CorruptCheckpointError{Path: path, Reason: "file does not exist"}
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var snapshot Checkpoint
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &CorruptCheckpointError{Path: path, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if snapshot.CurrentState == "" {
		return nil, &CorruptCheckpointError{Path: path, Reason: "missing current_state"}
	}
	if !snapshot.CurrentState.Valid() {
		return nil, &CorruptCheckpointError{Path: path, Reason: fmt.Sprintf("unknown state %q", snapshot.CurrentState)}
	}
	return &snapshot, nil
}

// restore converts a deserialized checkpoint back into a live context:
// one-shot fields that must not survive a resume are discarded.
func (cp *Checkpoint) restore() Context {
	c := cp.Context.clone()
	c.ArticleRetryRequested = false
	return c
}
