package flow

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckpointRoundTrip(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}

	c := NewContext("proj-1", "My Project", "/tmp/proj-1")
	c = c.WithState(StateInputSelect)
	c.InputType = InputYouTube
	c.InputSource = "https://youtube.com/watch?v=abc"
	c.ArticleRetryRequested = true
	c.LastError = &FlowError{State: StateGenerate, Message: "previous failure"}
	c.RetryCounts = map[string]int{"generate": 2}

	path, err := store.Write(c, 7)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "checkpoint-007-input_select.json" {
		t.Fatalf("unexpected checkpoint file name: %s", filepath.Base(path))
	}

	snapshot, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if snapshot.CheckpointIndex != 7 {
		t.Fatalf("unexpected index: %d", snapshot.CheckpointIndex)
	}
	if snapshot.CheckpointedAt.IsZero() {
		t.Fatal("missing checkpointed_at")
	}

	restored := snapshot.restore()
	if restored.CurrentState != StateInputSelect {
		t.Fatalf("unexpected restored state: %s", restored.CurrentState)
	}
	if restored.InputSource != c.InputSource || restored.ProjectID != c.ProjectID {
		t.Fatalf("restored context differs: %+v", restored)
	}
	if restored.LastError == nil || restored.LastError.Message != "previous failure" {
		t.Fatalf("wrapped error not restored: %+v", restored.LastError)
	}
	if restored.RetryCounts["generate"] != 2 {
		t.Fatalf("retry counts not restored: %v", restored.RetryCounts)
	}
	// One-shot flags never survive a resume.
	if restored.ArticleRetryRequested {
		t.Fatal("article retry flag survived restore")
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "checkpoint-000-missing.json"))
	var corrupt *CorruptCheckpointError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected *CorruptCheckpointError, got %v", err)
	}
}

func TestLoadCheckpointMissingState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint-000-bad.json")
	if err := os.WriteFile(path, []byte(`{"project_id":"p","checkpoint_index":0}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := LoadCheckpoint(path)
	var corrupt *CorruptCheckpointError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected *CorruptCheckpointError, got %v", err)
	}
	if !strings.Contains(corrupt.Reason, "current_state") {
		t.Fatalf("unexpected reason: %s", corrupt.Reason)
	}
}

func TestLoadCheckpointInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint-000-bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	var corrupt *CorruptCheckpointError
	if _, err := LoadCheckpoint(path); !errors.As(err, &corrupt) {
		t.Fatalf("expected *CorruptCheckpointError, got %v", err)
	}
}

func TestLatestPicksHighestIndex(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}

	c := NewContext("proj-1", "My Project", "/tmp/proj-1")
	for i := 0; i < 12; i++ {
		if _, err := store.Write(c, i); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if filepath.Base(latest) != "checkpoint-011-project_init.json" {
		t.Fatalf("unexpected latest checkpoint: %s", filepath.Base(latest))
	}
}

func TestLatestResumableSkipsTerminalSnapshots(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}

	c := NewContext("proj-1", "My Project", "/tmp/proj-1")
	if _, err := store.Write(c, 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	c = c.WithState(StateInputSelect)
	if _, err := store.Write(c, 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	c = c.WithError(StateInputSelect, errors.New("boom"))
	if _, err := store.Write(c, 2); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if filepath.Base(latest) != "checkpoint-002-error.json" {
		t.Fatalf("unexpected latest: %s", filepath.Base(latest))
	}

	resumable, err := store.LatestResumable()
	if err != nil {
		t.Fatalf("LatestResumable failed: %v", err)
	}
	if filepath.Base(resumable) != "checkpoint-001-input_select.json" {
		t.Fatalf("unexpected resumable checkpoint: %s", filepath.Base(resumable))
	}
}

func TestLatestEmptyDirectory(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}
	var corrupt *CorruptCheckpointError
	if _, err := store.Latest(); !errors.As(err, &corrupt) {
		t.Fatalf("expected *CorruptCheckpointError, got %v", err)
	}
}

func TestListReturnsCheckpointsInWriteOrder(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}

	c := NewContext("proj-1", "My Project", "/tmp/proj-1")
	states := []State{StateProjectInit, StateInputSelect, StateTranscribe}
	for i, state := range states {
		c = c.WithState(state)
		if _, err := store.Write(c, i); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	// Stray files in the directory are not checkpoints.
	if err := os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != len(states) {
		t.Fatalf("expected %d checkpoints, got %d", len(states), len(infos))
	}
	for i, info := range infos {
		if info.Index != i {
			t.Fatalf("checkpoint %d has index %d", i, info.Index)
		}
		if info.State != states[i] {
			t.Fatalf("checkpoint %d has state %s, want %s", i, info.State, states[i])
		}
		if info.CheckpointedAt.IsZero() {
			t.Fatalf("checkpoint %d has no timestamp", i)
		}
	}
}

func TestListReportsCaptureTimeNotFileTime(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCheckpointStore failed: %v", err)
	}

	c := NewContext("proj-1", "My Project", "/tmp/proj-1")
	path, err := store.Write(c, 0)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Simulate a checkpoint directory copied onto new storage.
	stale := time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(infos))
	}
	if infos[0].CheckpointedAt.Year() == 1999 {
		t.Fatal("List reported file mtime instead of the stored capture time")
	}
	snapshot, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if !infos[0].CheckpointedAt.Equal(snapshot.CheckpointedAt) {
		t.Fatalf("CheckpointedAt = %s, want %s", infos[0].CheckpointedAt, snapshot.CheckpointedAt)
	}
}
