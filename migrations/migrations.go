// Package migrations embeds the bot's schema migration files.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the embedded migration files, one numbered SQL file per
// schema change.
//
//go:embed *.sql
var FS embed.FS

// Prepare points goose at the embedded files. Call it once before
// running any goose command.
func Prepare() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Apply brings db up to the latest schema version.
func Apply(db *sql.DB) error {
	if err := Prepare(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
