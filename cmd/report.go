package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"tradesim/models"
)

type reportCmd struct {
	raw   bool
	width int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the portfolio report and transaction history" }
func (*reportCmd) Usage() string {
	return `tradesim report [-raw] [-w <width>]

  Totals and transactions are shown in the display currency, holding prices
  in each instrument's own currency.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print the markdown source.")
	f.IntVar(&c.width, "w", 0, "Wrap width (defaults to the terminal width).")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	if err := e.requireLogin(); err != nil {
		return fail(err)
	}
	e.loadRates(ctx)

	report, err := e.client.Report(ctx)
	if err != nil {
		return fail(err)
	}
	txs, err := e.client.Transactions(ctx)
	if err != nil {
		return fail(err)
	}

	md := models.ReportMarkdown(report, txs, e.cur)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}

	width := c.width
	if width <= 0 {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}
	out, err := models.RenderMarkdown(md, width)
	if err != nil {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}
