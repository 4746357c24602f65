// Package migrations embeds the SQL schemas for the main and ledger databases.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed *.sql
var files embed.FS

const (
	MainSchema   = "0001_schema.sql"
	LedgerSchema = "ledger_0001_schema.sql"
)

// SQL returns the contents of one embedded schema file.
func SQL(name string) (string, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", name, err)
	}
	return string(b), nil
}

// Apply runs the main schema. Statements are idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	schema, err := SQL(MainSchema)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply %s: %w", MainSchema, err)
	}
	return nil
}
