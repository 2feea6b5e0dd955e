package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed migrations/001_initial_schema.sql
var runsSchema string

// ensureSchema applies the runs schema on startup. Every statement in the
// script is idempotent (IF NOT EXISTS), so there is no version bookkeeping
// to carry; a future incompatible change gets a real migration step instead.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements(runsSchema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply runs schema: %w", err)
		}
	}
	return nil
}

// schemaStatements splits the embedded script on semicolons, dropping
// blank and comment-only chunks.
func schemaStatements(script string) []string {
	var stmts []string
	for _, raw := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(raw)
		if hasSQL(stmt) {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func hasSQL(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
