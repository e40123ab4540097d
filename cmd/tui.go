package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/google/subcommands"

	"tradesim/models"
	"tradesim/poll"
)

type tuiCmd struct{}

func (*tuiCmd) Name() string     { return "tui" }
func (*tuiCmd) Synopsis() string { return "run the interactive terminal client (default)" }
func (*tuiCmd) Usage() string {
	return `tradesim [tui]

  Opens the full screen client: dashboard, market browser, stock details,
  reports and settings. A stored session skips the login screen.
`
}

func (*tuiCmd) SetFlags(*flag.FlagSet) {}

func (*tuiCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}

	rates := e.refresher()
	if err := rates.Start(); err != nil {
		glog.Warningf("Exchange rates unavailable: %v", err)
	}
	defer rates.Stop()

	model := models.NewAppModel(models.Deps{
		Client:     e.client,
		Currency:   e.cur,
		Prefs:      e.store,
		Intervals:  e.cfg.Intervals,
		Visibility: poll.NewVisibility(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
