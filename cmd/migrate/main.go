// Command migrate manages the schema of the bot's sqlite database.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"warehouse_bot/migrations"
)

// commands maps each CLI verb to the goose action it runs. The slice
// order drives the usage text.
var commands = []struct {
	name string
	help string
	run  func(db *sql.DB) error
}{
	{"up", "migrate to the latest version", func(db *sql.DB) error { return goose.Up(db, ".") }},
	{"up-one", "migrate one version up", func(db *sql.DB) error { return goose.UpByOne(db, ".") }},
	{"down", "roll back one version", func(db *sql.DB) error { return goose.Down(db, ".") }},
	{"redo", "roll back one version and reapply it", func(db *sql.DB) error { return goose.Redo(db, ".") }},
	{"status", "print the status of every migration", func(db *sql.DB) error { return goose.Status(db, ".") }},
	{"version", "print the current schema version", func(db *sql.DB) error { return goose.Version(db, ".") }},
	{"reset", "roll back all migrations", func(db *sql.DB) error { return goose.Reset(db, ".") }},
}

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/bot.db"), "path to the bot's sqlite database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	run := lookup(name)
	if run == nil {
		fmt.Fprintf(os.Stderr, "migrate: unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	if err := migrations.Prepare(); err != nil {
		fail(err)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fail(fmt.Errorf("open %s: %w", *dbPath, err))
	}
	defer func() { _ = db.Close() }()

	if err := run(db); err != nil {
		fail(fmt.Errorf("%s: %w", name, err))
	}
}

func lookup(name string) func(*sql.DB) error {
	for _, c := range commands {
		if c.name == name {
			return c.run
		}
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.help)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
	os.Exit(1)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
