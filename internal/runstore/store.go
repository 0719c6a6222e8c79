package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
	"scribe/internal/pipeline"
)

// ErrNotFound indicates no run exists for the requested id.
var ErrNotFound = errors.New("run not found")

// Store manages run-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.WorkspaceDir, "runs.db"))
}

// OpenPath opens the run database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ pipeline.Recorder = (*Store)(nil)

// RecordStart inserts a running row for a new pipeline run. Starting the
// same run id again resets its row, which happens when a crashed session is
// resumed.
func (s *Store) RecordStart(ctx context.Context, runID, pipelineName string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, pipeline, status, started_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (run_id) DO UPDATE SET
            pipeline = excluded.pipeline,
            status = excluded.status,
            error_message = NULL,
            completed_stages_json = NULL,
            metadata_json = NULL,
            duration_ms = 0,
            updated_at = excluded.updated_at`,
		runID,
		pipelineName,
		string(StatusRunning),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordResult finalizes a run row with its outcome and artifacts. Partial
// results from failed runs are recorded the same way as successes so the
// artifacts produced before the failure remain discoverable.
func (s *Store) RecordResult(ctx context.Context, result *pipeline.Result, runErr error) error {
	if result == nil {
		return errors.New("record result: nil result")
	}

	status := StatusCompleted
	errorMessage := sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		errorMessage = sql.NullString{String: runErr.Error(), Valid: true}
	}

	stagesJSON, err := json.Marshal(result.CompletedStages)
	if err != nil {
		return fmt.Errorf("marshal completed stages: %w", err)
	}
	metadataJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE runs SET
            status = ?,
            error_message = ?,
            completed_stages_json = ?,
            metadata_json = ?,
            duration_ms = ?,
            updated_at = ?
         WHERE run_id = ?`,
		string(status),
		errorMessage,
		string(stagesJSON),
		string(metadataJSON),
		result.Duration.Milliseconds(),
		now,
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("record run result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record run result: %w: %s", ErrNotFound, result.RunID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_artifacts WHERE run_id = ?", result.RunID); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	for name, path := range result.Artifacts {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO run_artifacts (run_id, name, path) VALUES (?, ?, ?)",
			result.RunID,
			name,
			path,
		); err != nil {
			return fmt.Errorf("insert artifact %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// GetByRunID fetches one run with its artifacts.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, run_id, pipeline, status, error_message,
            completed_stages_json, metadata_json, duration_ms, started_at, updated_at
         FROM runs WHERE run_id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(
		ctx,
		"SELECT name, path FROM run_artifacts WHERE run_id = ? ORDER BY name",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var artifact Artifact
		if err := rows.Scan(&artifact.Name, &artifact.Path); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		run.Artifacts = append(run.Artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return run, nil
}

// List returns runs ordered most recent first, up to limit. A non-positive
// limit returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, run_id, pipeline, status, error_message,
            completed_stages_json, metadata_json, duration_ms, started_at, updated_at
         FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           int64
		runID        string
		pipelineName string
		statusStr    string
		errorMessage sql.NullString
		stagesJSON   sql.NullString
		metadataJSON sql.NullString
		durationMS   int64
		startedRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&runID,
		&pipelineName,
		&statusStr,
		&errorMessage,
		&stagesJSON,
		&metadataJSON,
		&durationMS,
		&startedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		RunID:        runID,
		Pipeline:     pipelineName,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
		Duration:     time.Duration(durationMS) * time.Millisecond,
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &run.CompletedStages); err != nil {
			return nil, fmt.Errorf("unmarshal completed stages: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &run.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		run.UpdatedAt = parsed
	}
	return run, nil
}
