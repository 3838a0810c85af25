package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in the run log.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// RunEntry is one step invocation.
type RunEntry struct {
	ID          string
	Project     string
	Step        string
	Status      string
	ExitCode    *int
	Stderr      string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// RunLog records step invocations and their outcomes.
type RunLog struct {
	db *sql.DB
}

func NewRunLog(db *sql.DB) *RunLog {
	return &RunLog{db: db}
}

// Begin records the start of a step invocation and returns its run ID.
func (l *RunLog) Begin(ctx context.Context, project, step string) (string, error) {
	if project == "" || step == "" {
		return "", fmt.Errorf("project and step are required")
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx, `
INSERT INTO run_log(id, project, step, status, started_at)
VALUES(?, ?, ?, ?, ?);
`, id, project, step, RunStatusRunning, now)
	if err != nil {
		return "", fmt.Errorf("insert run entry: %w", err)
	}
	return id, nil
}

// Complete records the outcome of a run. stderr is capped.
func (l *RunLog) Complete(ctx context.Context, id, status string, exitCode *int, stderr string) error {
	if id == "" {
		return fmt.Errorf("run id is empty")
	}
	if len(stderr) > maxStderrBytes {
		stderr = stderr[:maxStderrBytes]
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var ec any
	if exitCode != nil {
		ec = *exitCode
	}
	res, err := l.db.ExecContext(ctx, `
UPDATE run_log SET status = ?, exit_code = ?, stderr = ?, completed_at = ?
WHERE id = ?;
`, status, ec, stderr, now, id)
	if err != nil {
		return fmt.Errorf("complete run entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run entry %q not found", id)
	}
	return nil
}

// Recent returns up to limit runs for project, newest first.
func (l *RunLog) Recent(ctx context.Context, project string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, project, step, status, exit_code, stderr, started_at, completed_at
FROM run_log WHERE project = ?
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var (
			e           RunEntry
			exitCode    sql.NullInt64
			stderr      sql.NullString
			startedS    string
			completedS  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Project, &e.Step, &e.Status, &exitCode, &stderr, &startedS, &completedS); err != nil {
			return nil, fmt.Errorf("scan run entry: %w", err)
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			e.ExitCode = &v
		}
		if stderr.Valid {
			e.Stderr = stderr.String
		}
		if t, perr := time.Parse(time.RFC3339Nano, startedS); perr == nil {
			e.StartedAt = t
		}
		if completedS.Valid {
			if t, perr := time.Parse(time.RFC3339Nano, completedS.String); perr == nil {
				e.CompletedAt = &t
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
