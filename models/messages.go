package models

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/poll"
)

// Message types for Bubble Tea
type userLoadedMsg struct {
	user *api.User
	err  error
}

type currencyMsg struct {
	sig currency.Signal
	ok  bool
}

type loggedInMsg struct {
	username string
	token    string
}

type navigateMsg struct {
	state  int
	symbol string
}

type accountChangedMsg struct{}

type logoutMsg struct{}

// quotesMsg carries the quotes fetched for one tick of a named loop.
type quotesMsg struct {
	loop   string
	gen    uint64
	quotes []api.Quote
}

type marketsMsg struct {
	loop    string
	gen     uint64
	markets []api.Market
	err     error
}

func navigate(state int, symbol string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{state: state, symbol: symbol} }
}

func accountChanged() tea.Msg { return accountChangedMsg{} }

func logout() tea.Msg { return logoutMsg{} }

// waitForCurrency blocks on the next currency signal. The channel closes when
// the subscription is cancelled.
func waitForCurrency(ch <-chan currency.Signal) tea.Cmd {
	return func() tea.Msg {
		sig, ok := <-ch
		return currencyMsg{sig: sig, ok: ok}
	}
}

func loadUserCmd(c *api.Client) tea.Cmd {
	return func() tea.Msg {
		user, err := c.Me(context.Background())
		return userLoadedMsg{user: user, err: err}
	}
}

// fetchQuotesCmd fetches symbols in parallel for loop l. Failed symbols are
// logged and left out so the view keeps their last known price.
func fetchQuotesCmd(c *api.Client, l *poll.Loop, symbols []string) tea.Cmd {
	if len(symbols) == 0 {
		return nil
	}
	name, gen := l.Name, l.Gen()
	return func() tea.Msg {
		ctx := context.Background()
		got := make([]*api.Quote, len(symbols))
		var wg sync.WaitGroup
		for i, sym := range symbols {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q, err := c.Quote(ctx, sym)
				if err != nil {
					glog.V(1).Infof("%s: quote %s: %v", name, sym, err)
					return
				}
				got[i] = q
			}()
		}
		wg.Wait()

		msg := quotesMsg{loop: name, gen: gen}
		for _, q := range got {
			if q != nil {
				msg.quotes = append(msg.quotes, *q)
			}
		}
		return msg
	}
}

func fetchMarketsCmd(c *api.Client, l *poll.Loop) tea.Cmd {
	name, gen := l.Name, l.Gen()
	return func() tea.Msg {
		markets, err := c.Markets(context.Background())
		if err != nil {
			glog.V(1).Infof("%s: %v", name, err)
		}
		return marketsMsg{loop: name, gen: gen, markets: markets, err: err}
	}
}

// accepts reports whether a result tagged loop/gen belongs to l's current
// generation.
func accepts(l *poll.Loop, loop string, gen uint64) bool {
	return loop == l.Name && l.Accept(gen)
}

// mergeQuotes applies fresh prices to list and returns the updated copy.
func mergeQuotes(list, fresh []api.Quote) []api.Quote {
	bySymbol := make(map[string]api.Quote, len(fresh))
	for _, q := range fresh {
		bySymbol[q.Symbol] = q
	}
	out := make([]api.Quote, len(list))
	for i, q := range list {
		if f, ok := bySymbol[q.Symbol]; ok {
			q = q.MergePrice(f)
		}
		out[i] = q
	}
	return out
}

// keepLastKnown fills prices missing from a reloaded list with the ones
// shown before.
func keepLastKnown(prev, fresh []api.Quote) []api.Quote {
	old := make(map[string]api.Quote, len(prev))
	for _, q := range prev {
		old[q.Symbol] = q
	}
	for i, q := range fresh {
		if o, ok := old[q.Symbol]; ok && q.Price == nil && o.Price != nil {
			fresh[i].Price = o.Price
			fresh[i].Change = o.Change
		}
	}
	return fresh
}

// errorText is the message shown for a failed foreground request.
func errorText(err error, action string) string {
	if d := api.Detail(err); d != "" {
		return d
	}
	return fmt.Sprintf("%s: %v", action, err)
}
