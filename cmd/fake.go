package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/subcommands"

	"tradesim/fakeapi"
)

type serveFakeCmd struct {
	addr    string
	tick    time.Duration
	seed    int64
	balance float64
}

func (*serveFakeCmd) Name() string     { return "serve-fake" }
func (*serveFakeCmd) Synopsis() string { return "run an in-memory trading simulator server" }
func (*serveFakeCmd) Usage() string {
	return `tradesim serve-fake [-addr <host:port>] [-tick <duration>]

  Serves the trading simulator API under /api with an in-memory catalog
  and random walk prices. Accounts live until the process exits.
`
}

func (c *serveFakeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "localhost:8000", "Listen address.")
	f.DurationVar(&c.tick, "tick", 2*time.Second, "Price walk interval, 0 to freeze prices.")
	f.Int64Var(&c.seed, "seed", 0, "Random walk seed (0 picks one from the clock).")
	f.Float64Var(&c.balance, "balance", 0, "Starting balance of new accounts.")
}

func (c *serveFakeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	seed := c.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	srv := fakeapi.New(fakeapi.WithSeed(seed), fakeapi.WithStartingBalance(c.balance))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Printf("Serving on http://%s/api\n", c.addr)
	if err := srv.ListenAndServe(ctx, c.addr, c.tick); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
