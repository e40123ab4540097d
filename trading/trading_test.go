package trading

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kylelemons/godebug/pretty"

	"tradesim/api"
	"tradesim/fakeapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		quantity string
		action   string
		want     Order
		wantErr  string
	}{
		{name: "buy", symbol: " aapl ", quantity: "5", action: "buy", want: Order{Symbol: "AAPL", Quantity: 5, Action: "buy"}},
		{name: "fractional sell", symbol: "BTC-USD", quantity: "0.25", action: "SELL", want: Order{Symbol: "BTC-USD", Quantity: 0.25, Action: "sell"}},
		{name: "negative", symbol: "AAPL", quantity: "-5", action: "buy", wantErr: "Quantity must be positive"},
		{name: "zero", symbol: "AAPL", quantity: "0", action: "buy", wantErr: "Quantity must be positive"},
		{name: "garbage", symbol: "AAPL", quantity: "five", action: "buy", wantErr: "Quantity must be a number"},
		{name: "empty", symbol: "AAPL", quantity: "", action: "buy", wantErr: "Quantity must be a number"},
		{name: "infinite", symbol: "AAPL", quantity: "Inf", action: "buy", wantErr: "Quantity must be a number"},
		{name: "no symbol", symbol: " ", quantity: "1", action: "buy", wantErr: "Enter a symbol"},
		{name: "bad action", symbol: "AAPL", quantity: "1", action: "short", wantErr: "Action must be buy or sell"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOrder(tc.symbol, tc.quantity, tc.action)
			if tc.wantErr != "" {
				if !errors.Is(err, api.ErrValidation) || Message(err) != tc.wantErr {
					t.Errorf("ParseOrder() error = %v, want validation error %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOrder() unexpected error = %v", err)
			}
			if diff := pretty.Compare(tc.want, got); diff != "" {
				t.Errorf("ParseOrder(): -want/+got:\n%s", diff)
			}
		})
	}
}

type session struct {
	srv    *fakeapi.Server
	client *api.Client
}

func newSession(t *testing.T, balance float64) session {
	t.Helper()
	srv := fakeapi.New(fakeapi.WithStartingBalance(balance))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	c := api.NewClient(ts.URL+"/api", 5*time.Second)
	if err := c.Register(ctx, "trader", "hunter22"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, "trader", "hunter22"); err != nil {
		t.Fatal(err)
	}
	return session{srv: srv, client: c}
}

// A rejected quantity never reaches the network.
func TestNegativeQuantityNotSubmitted(t *testing.T) {
	s := newSession(t, 1000)

	order, err := ParseOrder("AAPL", "-5", "buy")
	if err == nil {
		if _, err := Execute(context.Background(), s.client, order); err != nil {
			t.Logf("Execute() error = %v", err)
		}
		t.Fatal("ParseOrder(-5) accepted the order")
	}
	if n := s.srv.Hits("/api/trade"); n != 0 {
		t.Errorf("trade endpoint hit %d times, want 0", n)
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, 1000)
	s.srv.SetPrice("AAPL", 100)

	order, err := ParseOrder("AAPL", "3", "buy")
	if err != nil {
		t.Fatal(err)
	}
	res, err := Execute(ctx, s.client, order)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	want := &Result{Price: 100, Balance: 700, Message: "Trade executed"}
	if diff := pretty.Compare(want, res); diff != "" {
		t.Errorf("Execute(): -want/+got:\n%s", diff)
	}
	if n := s.srv.Hits("/api/trade"); n != 1 {
		t.Errorf("trade endpoint hit %d times, want 1", n)
	}
}

func TestExecuteFailureLeavesAccount(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, 50)
	s.srv.SetPrice("AAPL", 100)

	order, err := ParseOrder("AAPL", "1", "buy")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Execute(ctx, s.client, order)
	if got := Message(err); got != "Insufficient funds" {
		t.Errorf("Message() = %q, want %q", got, "Insufficient funds")
	}

	me, err := s.client.Me(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if me.Balance != 50 || len(me.Portfolio) != 0 {
		t.Errorf("account changed after failed trade: %+v", me)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"server detail", &api.Error{Kind: api.KindBusiness, Status: 400, Detail: "Not enough shares"}, "Not enough shares"},
		{"no detail", &api.Error{Kind: api.KindBusiness, Status: 500}, GenericFailure},
		{"transport", &api.Error{Kind: api.KindTransport, Err: errors.New("connection refused")}, GenericFailure},
		{"plain error", errors.New("boom"), GenericFailure},
	}
	for _, tc := range tests {
		if got := Message(tc.err); got != tc.want {
			t.Errorf("Test(%s): Message() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		qty   string
		price float64
		want  float64
	}{
		{"3", 100.1, 300.3},
		{"0.5", 43250, 21625},
		{"", 10, 0},
		{"-2", 10, 0},
		{"abc", 10, 0},
	}
	for _, tc := range tests {
		if got := EstimateCost(tc.qty, tc.price); got != tc.want {
			t.Errorf("EstimateCost(%q, %v) = %v, want %v", tc.qty, tc.price, got, tc.want)
		}
	}
}
