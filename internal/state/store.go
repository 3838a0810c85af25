// Package state persists per-workspace provisioning records and a log of
// step invocations in SQLite. Durable truth about completed steps lives on
// the workspace filesystem; the record store only carries the inputs and the
// UI cache so a panel can reattach after a restart. Access tokens are never
// written here.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const maxStderrBytes = 64 * 1024

// RecordSnapshot is the persisted subset of a provisioning record.
type RecordSnapshot struct {
	Project          string
	RecordID         string
	RepositoryURL    string
	CommitReference  string
	ToolchainVersion string
	BuildDeps        bool
	StepFlags        json.RawMessage
	LastMessage      string
	ScriptDigest     string
	UpdatedAt        time.Time
}

// RecordStore reads and writes workspace record snapshots.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Save upserts the snapshot for its project.
func (s *RecordStore) Save(ctx context.Context, snap RecordSnapshot) error {
	if snap.Project == "" {
		return fmt.Errorf("project is empty")
	}
	flags := snap.StepFlags
	if len(flags) == 0 {
		flags = json.RawMessage(`{}`)
	}
	if !json.Valid(flags) {
		return fmt.Errorf("step flags are not valid JSON")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workspace_record(
  project, record_id, repository_url, commit_reference, toolchain_version,
  build_deps, step_flags, last_message, script_digest, updated_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project) DO UPDATE SET
  record_id         = excluded.record_id,
  repository_url    = excluded.repository_url,
  commit_reference  = excluded.commit_reference,
  toolchain_version = excluded.toolchain_version,
  build_deps        = excluded.build_deps,
  step_flags        = excluded.step_flags,
  last_message      = excluded.last_message,
  script_digest     = excluded.script_digest,
  updated_at        = excluded.updated_at;
`, snap.Project, snap.RecordID, snap.RepositoryURL, snap.CommitReference, snap.ToolchainVersion,
		boolToInt(snap.BuildDeps), string(flags), snap.LastMessage, snap.ScriptDigest, now)
	if err != nil {
		return fmt.Errorf("upsert workspace record: %w", err)
	}
	return nil
}

// Load returns the snapshot for project, or (nil, nil) when none is stored.
func (s *RecordStore) Load(ctx context.Context, project string) (*RecordSnapshot, error) {
	if project == "" {
		return nil, fmt.Errorf("project is empty")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT record_id, repository_url, commit_reference, toolchain_version,
       build_deps, step_flags, last_message, script_digest, updated_at
FROM workspace_record WHERE project = ?;
`, project)

	var (
		snap        RecordSnapshot
		buildDeps   int
		flags       string
		lastMessage sql.NullString
		digest      sql.NullString
		updatedAtS  string
	)
	err := row.Scan(&snap.RecordID, &snap.RepositoryURL, &snap.CommitReference,
		&snap.ToolchainVersion, &buildDeps, &flags, &lastMessage, &digest, &updatedAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace record: %w", err)
	}

	snap.Project = project
	snap.BuildDeps = buildDeps != 0
	snap.StepFlags = json.RawMessage(flags)
	if lastMessage.Valid {
		snap.LastMessage = lastMessage.String
	}
	if digest.Valid {
		snap.ScriptDigest = digest.String
	}
	if t, perr := time.Parse(time.RFC3339Nano, updatedAtS); perr == nil {
		snap.UpdatedAt = t
	}
	return &snap, nil
}

// Delete removes the snapshot for project. Missing rows are not an error.
func (s *RecordStore) Delete(ctx context.Context, project string) error {
	if project == "" {
		return fmt.Errorf("project is empty")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspace_record WHERE project = ?;`, project); err != nil {
		return fmt.Errorf("delete workspace record: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
