package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"tradesim/cmd"
)

func main() {
	cmd.RegisterFlags(flag.CommandLine)

	// Answers shell completion requests (COMP_LINE) and exits. Install with
	// COMP_INSTALL=1 tradesim.
	cmd.Completion(flag.CommandLine).Complete("tradesim")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")
	cmd.Register(commander)

	flag.Parse()
	if flag.NArg() == 0 {
		// No command runs the terminal client.
		if err := flag.CommandLine.Parse(append(os.Args[1:], "tui")); err != nil {
			os.Exit(int(subcommands.ExitUsageError))
		}
	}

	status := commander.Execute(context.Background())
	glog.Flush()
	os.Exit(int(status))
}
