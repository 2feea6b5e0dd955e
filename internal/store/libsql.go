package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/uiflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate brings the database schema up to date.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return ensureSchema(ctx, s.db)
}

// --- Runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Workflow, string(run.Status), timeOrNow(run.StartedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create run %s: %v", run.ID, err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) FinishRun(ctx context.Context, id string, update RunUpdate) error {
	finished := timeOrNow(update.FinishedAt)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, error_code = ?, exit_code = ?, finished_at = ?,
		     duration_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		 WHERE id = ?`,
		string(update.Status), nullStr(update.ErrorCode), update.ExitCode, finished, finished, id,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "finish run %s: %v", id, err).WithCause(err)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var status string
	var errCode sql.NullString
	var finished sql.NullTime
	var duration sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, status, error_code, exit_code, started_at, finished_at, duration_ms
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Workflow, &status, &errCode, &run.ExitCode, &run.StartedAt, &finished, &duration)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	run.Status = schema.RunStatus(status)
	run.ErrorCode = errCode.String
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.DurationMs = duration.Int64
	return run, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT id, workflow, status, error_code, exit_code, started_at, finished_at, duration_ms FROM runs`
	var where []string
	var args []any
	if filter.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var status string
		var errCode sql.NullString
		var finished sql.NullTime
		var duration sql.NullInt64
		if err := rows.Scan(&run.ID, &run.Workflow, &status, &errCode, &run.ExitCode, &run.StartedAt, &finished, &duration); err != nil {
			return nil, err
		}
		run.Status = schema.RunStatus(status)
		run.ErrorCode = errCode.String
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		run.DurationMs = duration.Int64
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
