// Command journalctl reconciles brokerage exports offline and maintains the journal database.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&reconcileCmd{}, "")
	commander.Register(&migrateCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
