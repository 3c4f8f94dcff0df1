// Command ledgerctl prints balances and settlement plans straight from the
// ledger database, without going through the RPC server.
//
//	ledgerctl [-config file] balances -group <id>
//	ledgerctl plan -group <id>
//	ledgerctl members -group <id>
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "path to a YAML config file (defaults and env vars apply without one)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&balancesCmd{}, "ledger")
	commander.Register(&planCmd{}, "ledger")
	commander.Register(&membersCmd{}, "ledger")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
