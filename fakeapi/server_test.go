package fakeapi

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kylelemons/godebug/pretty"

	"tradesim/api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newSession starts s and returns a client logged in as a fresh user.
func newSession(t *testing.T, s *Server) *api.Client {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	c := api.NewClient(ts.URL+"/api", 5*time.Second)
	if err := c.Register(ctx, "trader", "hunter22"); err != nil {
		t.Fatalf("Register() unexpected error = %v", err)
	}
	if _, err := c.Login(ctx, "trader", "hunter22"); err != nil {
		t.Fatalf("Login() unexpected error = %v", err)
	}
	return c
}

func TestTrade(t *testing.T) {
	ctx := context.Background()
	s := New(WithStartingBalance(1000))
	s.SetPrice("AAPL", 100)
	c := newSession(t, s)

	steps := []struct {
		name        string
		trade       api.TradeRequest
		price       float64 // set before the trade
		wantDetail  string
		wantBalance float64
		wantPos     []api.Position
	}{
		{
			name:        "buy",
			trade:       api.TradeRequest{Symbol: "AAPL", Quantity: 4, Action: api.ActionBuy},
			price:       100,
			wantBalance: 600,
			wantPos:     []api.Position{{Symbol: "AAPL", Quantity: 4, AvgPrice: 100, Currency: "USD"}},
		},
		{
			name:        "buy more averages the price",
			trade:       api.TradeRequest{Symbol: "AAPL", Quantity: 4, Action: api.ActionBuy},
			price:       50,
			wantBalance: 400,
			wantPos:     []api.Position{{Symbol: "AAPL", Quantity: 8, AvgPrice: 75, Currency: "USD"}},
		},
		{
			name:        "insufficient funds",
			trade:       api.TradeRequest{Symbol: "AAPL", Quantity: 100, Action: api.ActionBuy},
			price:       50,
			wantDetail:  "Insufficient funds",
			wantBalance: 400,
			wantPos:     []api.Position{{Symbol: "AAPL", Quantity: 8, AvgPrice: 75, Currency: "USD"}},
		},
		{
			name:        "not enough shares",
			trade:       api.TradeRequest{Symbol: "AAPL", Quantity: 9, Action: api.ActionSell},
			price:       50,
			wantDetail:  "Not enough shares",
			wantBalance: 400,
			wantPos:     []api.Position{{Symbol: "AAPL", Quantity: 8, AvgPrice: 75, Currency: "USD"}},
		},
		{
			name:        "sell everything removes the position",
			trade:       api.TradeRequest{Symbol: "AAPL", Quantity: 8, Action: api.ActionSell},
			price:       60,
			wantBalance: 880,
			wantPos:     []api.Position{},
		},
	}

	for _, step := range steps {
		s.SetPrice("AAPL", step.price)
		resp, err := c.Trade(ctx, step.trade)
		switch {
		case step.wantDetail != "":
			if !errors.Is(err, api.ErrBusiness) || api.Detail(err) != step.wantDetail {
				t.Errorf("Test(%s): Trade() error = %v, want business error %q", step.name, err, step.wantDetail)
			}
		case err != nil:
			t.Fatalf("Test(%s): Trade() unexpected error = %v", step.name, err)
		case resp.Price != step.price:
			t.Errorf("Test(%s): Trade().Price = %v, want %v", step.name, resp.Price, step.price)
		}

		me, err := c.Me(ctx)
		if err != nil {
			t.Fatalf("Test(%s): Me() unexpected error = %v", step.name, err)
		}
		if me.Balance != step.wantBalance {
			t.Errorf("Test(%s): balance = %v, want %v", step.name, me.Balance, step.wantBalance)
		}
		if diff := pretty.Compare(step.wantPos, me.Portfolio); diff != "" {
			t.Errorf("Test(%s): portfolio -want/+got:\n%s", step.name, diff)
		}
	}

	txs, err := c.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions() unexpected error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("Transactions() returned %d entries, want 3", len(txs))
	}
	if txs[0].Action != api.ActionSell || txs[2].Action != api.ActionBuy {
		t.Errorf("Transactions() not newest first: %+v", txs)
	}
}

func TestTradeConvertsToBase(t *testing.T) {
	ctx := context.Background()
	s := New(WithStartingBalance(1000))
	s.SetRates(api.Rates{"USD": 1, "RUB": 100})
	s.SetPrice("SBER.ME", 250)
	c := newSession(t, s)

	resp, err := c.Trade(ctx, api.TradeRequest{Symbol: "sber.me", Quantity: 2, Action: api.ActionBuy})
	if err != nil {
		t.Fatalf("Trade() unexpected error = %v", err)
	}
	if resp.Price != 2.5 || resp.Balance != 995 {
		t.Errorf("Trade() = price %v balance %v, want 2.5 and 995", resp.Price, resp.Balance)
	}
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	c := newSession(t, New(WithStartingBalance(100)))

	steps := []struct {
		amount      float64
		wantDetail  string
		wantBalance float64
	}{
		{amount: 50, wantBalance: 150},
		{amount: -40, wantBalance: 110},
		{amount: -500, wantDetail: "Insufficient funds", wantBalance: 110},
		{amount: -110, wantBalance: 0},
	}
	for _, step := range steps {
		balance, err := c.Deposit(ctx, step.amount)
		if step.wantDetail != "" {
			if !errors.Is(err, api.ErrBusiness) || api.Detail(err) != step.wantDetail {
				t.Errorf("Deposit(%v) error = %v, want %q", step.amount, err, step.wantDetail)
			}
		} else if err != nil {
			t.Errorf("Deposit(%v) unexpected error = %v", step.amount, err)
		} else if math.Abs(balance-step.wantBalance) > 1e-9 {
			t.Errorf("Deposit(%v) = %v, want %v", step.amount, balance, step.wantBalance)
		}

		me, err := c.Me(ctx)
		if err != nil {
			t.Fatalf("Me() unexpected error = %v", err)
		}
		if math.Abs(me.Balance-step.wantBalance) > 1e-9 {
			t.Errorf("after Deposit(%v) balance = %v, want %v", step.amount, me.Balance, step.wantBalance)
		}
	}
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	s := New(WithStartingBalance(1000))
	s.SetPrice("MSFT", 100)
	c := newSession(t, s)

	if _, err := c.Trade(ctx, api.TradeRequest{Symbol: "MSFT", Quantity: 2, Action: api.ActionBuy}); err != nil {
		t.Fatalf("Trade() unexpected error = %v", err)
	}
	s.SetPrice("MSFT", 110)

	report, err := c.Report(ctx)
	if err != nil {
		t.Fatalf("Report() unexpected error = %v", err)
	}
	want := &api.Report{
		Balance:       800,
		TotalInvested: 200,
		TotalCurrent:  220,
		TotalProfit:   20,
		Holdings: []api.Holding{{
			Symbol:        "MSFT",
			Quantity:      2,
			AvgPrice:      100,
			CurrentPrice:  110,
			Invested:      200,
			Current:       220,
			Profit:        20,
			ProfitPercent: 10,
			Currency:      "USD",
		}},
	}
	if diff := pretty.Compare(want, report); diff != "" {
		t.Errorf("Report(): -want/+got:\n%s", diff)
	}
}

func TestAuthErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newSession(t, s)

	if err := c.Register(ctx, "trader", "another"); api.Detail(err) != "Username exists" {
		t.Errorf("Register(duplicate) error = %v, want %q", err, "Username exists")
	}

	c.SetToken("bogus")
	_, err := c.Me(ctx)
	if !errors.Is(err, api.ErrAuth) || api.Detail(err) != "Invalid token" {
		t.Errorf("Me(bogus token) error = %v, want auth error %q", err, "Invalid token")
	}
}

func TestAccountSettings(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newSession(t, s)

	if err := c.ChangePassword(ctx, "wrong", "newpass1"); api.Detail(err) != "Invalid old password" {
		t.Errorf("ChangePassword(wrong old) error = %v", err)
	}
	if err := c.ChangePassword(ctx, "hunter22", "newpass1"); err != nil {
		t.Errorf("ChangePassword() unexpected error = %v", err)
	}
	resp, err := c.ChangeUsername(ctx, "renamed")
	if err != nil {
		t.Fatalf("ChangeUsername() unexpected error = %v", err)
	}
	if c.Token() != resp.Token {
		t.Error("ChangeUsername() did not install the new token")
	}
	if name, err := c.ChangeDisplayName(ctx, " Trader Joe "); err != nil || name != "Trader Joe" {
		t.Errorf("ChangeDisplayName() = %q, %v", name, err)
	}
	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() unexpected error = %v", err)
	}
	if me.Username != "renamed" || me.DisplayName != "Trader Joe" {
		t.Errorf("Me() = %+v, want renamed user with display name", me)
	}
	if _, err := c.Login(ctx, "renamed", "newpass1"); err != nil {
		t.Errorf("Login(new credentials) unexpected error = %v", err)
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newSession(t, s)

	for _, sym := range []string{"nvda", "BTC-USD", "NVDA"} {
		if err := c.AddFavorite(ctx, sym); err != nil {
			t.Fatalf("AddFavorite(%s) unexpected error = %v", sym, err)
		}
	}
	if err := c.AddFavorite(ctx, "NOPE"); api.KindOf(err) != api.KindBusiness {
		t.Errorf("AddFavorite(unknown) error = %v, want business error", err)
	}
	favs, err := c.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites() unexpected error = %v", err)
	}
	var got []string
	for _, q := range favs {
		got = append(got, q.Symbol)
	}
	if diff := pretty.Compare([]string{"NVDA", "BTC-USD"}, got); diff != "" {
		t.Errorf("Favorites(): -want/+got:\n%s", diff)
	}
	if err := c.RemoveFavorite(ctx, "NVDA"); err != nil {
		t.Fatalf("RemoveFavorite() unexpected error = %v", err)
	}
	if favs, _ := c.Favorites(ctx); len(favs) != 1 {
		t.Errorf("Favorites() after remove = %d entries, want 1", len(favs))
	}
}

func TestStocksPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newSession(t, s)

	var all []string
	for offset := 0; ; offset += 3 {
		page, err := c.Stocks(ctx, "popular", 3, offset)
		if err != nil {
			t.Fatalf("Stocks() unexpected error = %v", err)
		}
		for _, q := range page.Stocks {
			all = append(all, q.Symbol)
		}
		if !page.HasMore {
			break
		}
	}
	want := []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX"}
	if diff := pretty.Compare(want, all); diff != "" {
		t.Errorf("paged popular list: -want/+got:\n%s", diff)
	}

	if _, err := c.Stocks(ctx, "bonds", 3, 0); api.KindOf(err) != api.KindBusiness {
		t.Errorf("Stocks(unknown category) error = %v, want business error", err)
	}
}

func TestFailingQuote(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := newSession(t, s)

	s.SetFailing("TSLA", true)
	if _, err := c.Quote(ctx, "TSLA"); api.Detail(err) != "No data for TSLA" {
		t.Errorf("Quote(failing) error = %v", err)
	}
	page, err := c.Stocks(ctx, "popular", 20, 0)
	if err != nil {
		t.Fatalf("Stocks() unexpected error = %v", err)
	}
	for _, q := range page.Stocks {
		if q.Symbol == "TSLA" && q.Price != nil {
			t.Errorf("failing TSLA listed with price %v, want null", *q.Price)
		}
	}
}

func TestHistoryDeterministic(t *testing.T) {
	now := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	in := s.instruments["AAPL"]

	a := history(in, "3mo", now)
	b := history(in, "3mo", now)
	if diff := pretty.Compare(a, b); diff != "" {
		t.Errorf("history() not deterministic: -first/+second:\n%s", diff)
	}
	if len(a) != 63 {
		t.Errorf("history(3mo) = %d points, want 63", len(a))
	}
	if last := a[len(a)-1]; last.Price != in.price || last.Date != "2024-03-01" {
		t.Errorf("history(3mo) last point = %+v, want current price on 2024-03-01", last)
	}
}

func TestStepStaysPositive(t *testing.T) {
	s := New(WithSeed(7))
	for i := 0; i < 500; i++ {
		s.Step()
	}
	for _, in := range s.order {
		if in.price <= 0 || math.IsNaN(in.price) {
			t.Errorf("%s price = %v after walk", in.symbol, in.price)
		}
		if in.low > in.price || in.high < in.price {
			t.Errorf("%s price %v outside day range [%v, %v]", in.symbol, in.price, in.low, in.high)
		}
	}
}
