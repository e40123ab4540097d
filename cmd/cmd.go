// Package cmd implements the tradesim command line.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tradesim/api"
	"tradesim/config"
	"tradesim/currency"
	"tradesim/storage"
)

var globalFlags config.Flags

// RegisterFlags binds the flags shared by every command on fs.
func RegisterFlags(fs *flag.FlagSet) {
	globalFlags.Register(fs)
}

// Commands are the tradesim subcommands, in help order.
var Commands = []subcommands.Command{
	&tuiCmd{},
	&loginCmd{},
	&logoutCmd{},
	&quoteCmd{},
	&watchCmd{},
	&ratesCmd{},
	&tradeCmd{},
	&depositCmd{},
	&reportCmd{},
	&serveFakeCmd{},
}

// Register adds the subcommands to c.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		group := "client"
		if cmd.Name() == "serve-fake" {
			group = "development"
		}
		c.Register(cmd, group)
	}
}

var errNotLoggedIn = errors.New("not logged in, run 'tradesim login' first")

// env is what a command needs to talk to the server.
type env struct {
	cfg    *config.Config
	store  *storage.Store
	client *api.Client
	cur    *currency.Service
}

// openEnv resolves the configuration and restores the stored session.
func openEnv() (*env, error) {
	cfg, err := config.Load(globalFlags)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	client := api.NewClient(cfg.APIURL, cfg.Timeout)
	if token, ok := store.Get(storage.KeyToken); ok {
		client.SetToken(token)
	}
	return &env{
		cfg:    cfg,
		store:  store,
		client: client,
		cur:    currency.New(store),
	}, nil
}

func (e *env) requireLogin() error {
	if e.client.Token() == "" {
		return errNotLoggedIn
	}
	return nil
}

// refresher keeps the rate table of e.cur fresh.
func (e *env) refresher() *currency.Refresher {
	src := currency.RateSourceFunc(func(ctx context.Context) (map[string]float64, error) {
		return e.client.Currencies(ctx)
	})
	return currency.NewRefresher(e.cur, src, e.cfg.Intervals.Rates, e.cfg.Timeout)
}

// loadRates fetches the rate table once. On failure amounts are shown in
// base currency.
func (e *env) loadRates(ctx context.Context) {
	e.refresher().Refresh(ctx)
}

// fail prints err the way the server phrased it and returns ExitFailure.
func fail(err error) subcommands.ExitStatus {
	msg := api.Detail(err)
	if msg == "" {
		msg = err.Error()
	}
	if errors.Is(err, api.ErrAuth) {
		msg += " (run 'tradesim login')"
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	return subcommands.ExitFailure
}

func usageError(f *flag.FlagSet, format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	f.Usage()
	return subcommands.ExitUsageError
}
