package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"sort"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/trading"
)

func TestSymbolArgs(t *testing.T) {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	if err := fs.Parse([]string{"aapl", " msft ", "AAPL", "", "sber.me"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"AAPL", "MSFT", "SBER.ME"}
	if diff := pretty.Compare(want, symbolArgs(fs)); diff != "" {
		t.Errorf("symbolArgs(): -want/+got:\n%s", diff)
	}
}

func TestWatcherDue(t *testing.T) {
	price := 100.0
	tests := []struct {
		name    string
		closed  bool
		known   []string
		markets []api.Market
		want    []string
	}{
		{
			name: "first round quotes everything",
			want: []string{"AAPL", "SBER.ME"},
		},
		{
			name:  "no market status yet",
			known: []string{"AAPL", "SBER.ME"},
		},
		{
			name:    "only open exchanges",
			known:   []string{"AAPL", "SBER.ME"},
			markets: []api.Market{{Exchange: "NASDAQ", IsOpen: true}, {Exchange: "MOEX"}},
			want:    []string{"AAPL"},
		},
		{
			name:    "closed flag polls everything",
			closed:  true,
			known:   []string{"AAPL", "SBER.ME"},
			markets: []api.Market{{Exchange: "NASDAQ"}, {Exchange: "MOEX"}},
			want:    []string{"AAPL", "SBER.ME"},
		},
	}
	exchanges := map[string]string{"AAPL": "NASDAQ", "SBER.ME": "MOEX"}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := &watcher{symbols: []string{"AAPL", "SBER.ME"}, closed: tc.closed, known: map[string]api.Quote{}}
			for _, sym := range tc.known {
				w.update(api.Quote{Symbol: sym, Exchange: exchanges[sym], Price: &price})
			}
			w.setMarkets(tc.markets)
			if diff := pretty.Compare(tc.want, w.due()); diff != "" {
				t.Errorf("Test(%s): -want/+got:\n%s", tc.name, diff)
			}
		})
	}
}

func TestWatcherUpdateKeepsIdentity(t *testing.T) {
	old, fresh := 100.0, 101.5
	w := &watcher{known: map[string]api.Quote{}}
	w.update(api.Quote{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Currency: "USD", Price: &old})

	got := w.update(api.Quote{Symbol: "AAPL", Price: &fresh, Change: 1.5})
	if got.Name != "Apple Inc." || got.Exchange != "NASDAQ" || got.PriceOr(0) != 101.5 {
		t.Errorf("update() = %+v", got)
	}
	if got := w.update(api.Quote{Symbol: "AAPL"}); got.PriceOr(0) != 101.5 {
		t.Errorf("a quote without price replaced the last known one: %+v", got)
	}
}

func TestWatcherRoundSkipsFailures(t *testing.T) {
	cur := currency.New(nil)
	price := 100.0
	quote := func(_ context.Context, sym string) (*api.Quote, error) {
		if sym == "TSLA" {
			return nil, &api.Error{Kind: api.KindTransport, Detail: "connection refused"}
		}
		return &api.Quote{Symbol: sym, Exchange: "NASDAQ", Currency: "USD", Price: &price}, nil
	}
	w := &watcher{symbols: []string{"AAPL", "TSLA"}, known: map[string]api.Quote{}}

	var out bytes.Buffer
	w.round(context.Background(), quote, cur, &out, func() bool { return true })
	if got := out.String(); !strings.Contains(got, "AAPL") || strings.Contains(got, "TSLA") {
		t.Errorf("round() printed %q, want only AAPL", got)
	}
	if diff := pretty.Compare([]string{"TSLA"}, w.due()); diff != "" {
		t.Errorf("due() after a failed quote: -want/+got:\n%s", diff)
	}

	out.Reset()
	w.round(context.Background(), func(context.Context, string) (*api.Quote, error) {
		return nil, errors.New("unreachable")
	}, cur, &out, func() bool { return false })
	if out.Len() != 0 {
		t.Errorf("round() printed %q for failed quotes", out.String())
	}
}

func TestQuoteLine(t *testing.T) {
	cur := currency.New(nil)
	cur.SetRates(map[string]float64{"USD": 1, "RUB": 90, "EUR": 0.92})
	if err := cur.SetCurrency("EUR"); err != nil {
		t.Fatal(err)
	}
	rub, usd := 270.0, 100.0

	tests := []struct {
		name  string
		quote api.Quote
		want  []string
		skip  string
	}{
		{
			name:  "foreign instrument",
			quote: api.Quote{Symbol: "SBER.ME", Currency: "RUB", Price: &rub},
			want:  []string{"SBER.ME", "₽270.00", "≈ €2.76"},
		},
		{
			name:  "no price",
			quote: api.Quote{Symbol: "ZZZ", Currency: "USD"},
			want:  []string{"ZZZ", "n/a"},
			skip:  "≈",
		},
		{
			name:  "usd instrument",
			quote: api.Quote{Symbol: "AAPL", Currency: "USD", Price: &usd},
			want:  []string{"$100.00", "≈ €92.00"},
		},
	}
	for _, tc := range tests {
		got := quoteLine(cur, tc.quote)
		for _, w := range tc.want {
			if !strings.Contains(got, w) {
				t.Errorf("Test(%s): %q missing %q", tc.name, got, w)
			}
		}
		if tc.skip != "" && strings.Contains(got, tc.skip) {
			t.Errorf("Test(%s): %q contains %q", tc.name, got, tc.skip)
		}
	}
}

func TestTradeEstimate(t *testing.T) {
	cur := currency.New(nil)
	cur.SetRates(map[string]float64{"USD": 1, "RUB": 90})
	price := 270.0

	got := (&tradeCmd{}).estimate(cur, trading.Order{Symbol: "SBER.ME", Quantity: 10, Action: api.ActionBuy},
		api.Quote{Symbol: "SBER.ME", Currency: "RUB", Price: &price})
	want := "buy 10 SBER.ME at about ₽270.00, estimated ₽2,700.00 (≈ $30.00)"
	if got != want {
		t.Errorf("estimate() = %q, want %q", got, want)
	}
}

func TestCompletion(t *testing.T) {
	global := flag.NewFlagSet("tradesim", flag.ContinueOnError)
	var f struct{ APIURL string }
	global.StringVar(&f.APIURL, "api-url", "", "")

	c := Completion(global)

	var subs []string
	for name := range c.Sub {
		subs = append(subs, name)
	}
	sort.Strings(subs)
	want := []string{"deposit", "login", "logout", "quote", "rates", "report", "serve-fake", "trade", "tui", "watch"}
	if diff := pretty.Compare(want, subs); diff != "" {
		t.Errorf("Completion() commands: -want/+got:\n%s", diff)
	}
	if _, ok := c.Flags["api-url"]; !ok {
		t.Error("global flag api-url not completed")
	}
	for name, flags := range map[string][]string{
		"trade":      {"y"},
		"login":      {"u", "register"},
		"serve-fake": {"addr", "tick", "seed", "balance"},
		"rates":      {"set"},
	} {
		for _, fl := range flags {
			if _, ok := c.Sub[name].Flags[fl]; !ok {
				t.Errorf("%s: flag -%s not completed", name, fl)
			}
		}
	}
}
