package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/username/tradejournal/backend/src/database"
)

type migrateCmd struct {
	dbPath string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the schema migrations to a journal database" }
func (*migrateCmd) Usage() string {
	return `journalctl migrate -db <path>

  Creates the database file if needed and applies every pending migration.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dbPath, "db", "./tradejournal.db", "path of the SQLite database")
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -db is required")
		return subcommands.ExitUsageError
	}
	db, err := database.Open(c.dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s is up to date\n", c.dbPath)
	return subcommands.ExitSuccess
}
