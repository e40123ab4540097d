package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/poll"
	"tradesim/ui"
)

// quoteLine shows the native price and, for foreign instruments, its value
// in the display currency.
func quoteLine(cur *currency.Service, q api.Quote) string {
	price := "n/a"
	if q.Price != nil {
		price = cur.FormatNative(q.Price, q.Currency, currency.Decimals)
	}
	line := fmt.Sprintf("%s %s %s",
		ui.Pad(q.Symbol, 10), ui.Pad(price, 14), ui.FormatPercentage(q.Change))
	if q.Price != nil && q.Currency != "" && q.Currency != cur.Selected() {
		line += "  ≈ " + cur.FormatConverted(*q.Price, q.Currency, currency.Decimals)
	}
	return line
}

func symbolArgs(f *flag.FlagSet) []string {
	var out []string
	seen := map[string]bool{}
	for _, a := range f.Args() {
		sym := api.NormalizeSymbol(a)
		if sym != "" && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print the latest price of symbols" }
func (*quoteCmd) Usage() string {
	return `tradesim quote <symbol>...

  Prints one line per symbol. Prices are in the instrument's own currency,
  followed by the value in the display currency when it differs.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := symbolArgs(f)
	if len(symbols) == 0 {
		return usageError(f, "quote needs at least one symbol")
	}
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	e.loadRates(ctx)

	status := subcommands.ExitSuccess
	for _, sym := range symbols {
		q, err := e.client.Quote(ctx, sym)
		if err != nil {
			fail(fmt.Errorf("%s: %w", sym, err))
			status = subcommands.ExitFailure
			continue
		}
		fmt.Println(quoteLine(e.cur, *q))
	}
	return status
}

type watchCmd struct {
	every  time.Duration
	closed bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "stream quotes of symbols until interrupted" }
func (*watchCmd) Usage() string {
	return `tradesim watch [-i <interval>] [-closed] <symbol>...

  Every symbol is quoted once, then only while its exchange is open.
  Stop with Ctrl-C.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.every, "i", 0, "Quote interval (defaults to the client quote interval).")
	f.BoolVar(&c.closed, "closed", false, "Keep polling symbols whose exchange is closed.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := symbolArgs(f)
	if len(symbols) == 0 {
		return usageError(f, "watch needs at least one symbol")
	}
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	every := c.every
	if every <= 0 {
		every = e.cfg.Intervals.Quote
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	rates := e.refresher()
	if err := rates.Start(); err != nil {
		glog.Warningf("Exchange rates unavailable: %v", err)
	}
	defer rates.Stop()

	w := &watcher{symbols: symbols, known: map[string]api.Quote{}, closed: c.closed}

	status := poll.NewScoped(ctx, poll.Task{Interval: e.cfg.Intervals.Markets})
	status.Switch("all", func(ctx context.Context, _ string, gen uint64) {
		markets, err := e.client.Markets(ctx)
		if err != nil {
			glog.V(1).Infof("watch: market status: %v", err)
			return
		}
		if status.Guard(gen) {
			w.setMarkets(markets)
		}
	})
	defer status.Stop()

	quotes := poll.NewScoped(ctx, poll.Task{Interval: every})
	quotes.Switch(strings.Join(symbols, ","), func(ctx context.Context, _ string, gen uint64) {
		w.round(ctx, e.client.Quote, e.cur, os.Stdout, func() bool { return quotes.Guard(gen) })
	})
	defer quotes.Stop()

	<-ctx.Done()
	return subcommands.ExitSuccess
}

// watcher tracks what watch has seen so far.
type watcher struct {
	symbols []string
	closed  bool

	mu      sync.Mutex
	known   map[string]api.Quote
	markets []api.Market
}

func (w *watcher) setMarkets(m []api.Market) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markets = m
}

// due returns the symbols to quote now: the ones never quoted, then the
// ones whose exchange is open.
func (w *watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	var known []api.Quote
	for _, sym := range w.symbols {
		q, ok := w.known[sym]
		switch {
		case !ok:
			out = append(out, sym)
		case w.closed:
			out = append(out, sym)
		default:
			known = append(known, q)
		}
	}
	return append(out, poll.OpenSymbols(known, w.markets)...)
}

// round quotes the due symbols and prints one line per fresh quote. Failed
// quotes are logged and retried on the next round. live reports whether the
// round still belongs to the current scope.
func (w *watcher) round(ctx context.Context, quote func(context.Context, string) (*api.Quote, error), cur *currency.Service, out io.Writer, live func() bool) {
	for _, sym := range w.due() {
		q, err := quote(ctx, sym)
		if err != nil {
			glog.V(1).Infof("watch: quote %s: %s", sym, errorMessage(err))
			continue
		}
		if !live() {
			return
		}
		fmt.Fprintf(out, "%s %s\n", time.Now().Format("15:04:05"), quoteLine(cur, w.update(*q)))
	}
}

// update merges a fresh quote into the last known one.
func (w *watcher) update(q api.Quote) api.Quote {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.known[q.Symbol]; ok {
		q = old.MergePrice(q)
	}
	w.known[q.Symbol] = q
	return q
}

func errorMessage(err error) string {
	if d := api.Detail(err); d != "" {
		return d
	}
	return err.Error()
}

type ratesCmd struct {
	set string
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "show exchange rates or change the display currency" }
func (*ratesCmd) Usage() string {
	return `tradesim rates [-set <code>]

  Lists the rate table as units per 1 USD. The display currency is marked.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.set, "set", "", "Select the display currency (for example EUR).")
}

func (c *ratesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	if c.set != "" {
		code, ok := currency.Normalize(c.set)
		if !ok {
			return usageError(f, "unknown currency code %q", c.set)
		}
		if err := e.cur.SetCurrency(code); err != nil {
			return fail(err)
		}
		fmt.Printf("Display currency: %s\n", code)
	}

	e.loadRates(ctx)
	st := e.cur.State()
	if len(st.Rates) <= 1 {
		return fail(fmt.Errorf("exchange rates unavailable"))
	}

	codes := make([]string, 0, len(st.Rates))
	for code := range st.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		mark := "  "
		if code == st.Selected {
			mark = "✓ "
		}
		fmt.Printf("%s%s %s %12.4f\n", mark, ui.Pad(code, 4), ui.Pad(currency.Symbol(code), 3), st.Rates[code])
	}
	return subcommands.ExitSuccess
}
