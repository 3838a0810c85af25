package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workspace_record (
  project           TEXT PRIMARY KEY,
  record_id         TEXT NOT NULL,
  repository_url    TEXT NOT NULL,
  commit_reference  TEXT NOT NULL,
  toolchain_version TEXT NOT NULL,
  build_deps        INTEGER NOT NULL DEFAULT 0,
  step_flags        JSON NOT NULL DEFAULT '{}',
  last_message      TEXT,
  script_digest     TEXT,
  updated_at        TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS run_log (
  id           TEXT PRIMARY KEY,
  project      TEXT NOT NULL,
  step         TEXT NOT NULL,
  status       TEXT NOT NULL,
  exit_code    INTEGER,
  stderr       TEXT,
  started_at   TEXT NOT NULL,
  completed_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS run_log_project_started_at_idx ON run_log(project, started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
