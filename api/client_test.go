package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   api.Kind
		wantDetail string
		sentinel   error
	}{
		{
			name:       "invalid token",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Invalid token"}`,
			wantKind:   api.KindAuth,
			wantDetail: "Invalid token",
			sentinel:   api.ErrAuth,
		},
		{
			name:       "validation array",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["query","token"],"msg":"field required","type":"value_error"}]}`,
			wantKind:   api.KindValidation,
			wantDetail: "field required",
			sentinel:   api.ErrValidation,
		},
		{
			name:       "business rule",
			status:     http.StatusBadRequest,
			body:       `{"detail":"Not enough shares"}`,
			wantKind:   api.KindBusiness,
			wantDetail: "Not enough shares",
			sentinel:   api.ErrBusiness,
		},
		{
			name:     "server error without detail",
			status:   http.StatusInternalServerError,
			body:     `Internal Server Error`,
			wantKind: api.KindBusiness,
			sentinel: api.ErrBusiness,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			c := api.NewClient(ts.URL, time.Second)
			_, err := c.Quote(context.Background(), "AAPL")
			if err == nil {
				t.Fatal("Quote() returned no error")
			}
			if got := api.KindOf(err); got != tc.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tc.wantKind)
			}
			if got := api.Detail(err); got != tc.wantDetail {
				t.Errorf("Detail() = %q, want %q", got, tc.wantDetail)
			}
			if !errors.Is(err, tc.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tc.sentinel)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := api.NewClient(url, time.Second)
	_, err := c.Markets(context.Background())
	if !errors.Is(err, api.ErrTransport) {
		t.Errorf("Markets() on closed server error = %v, want transport error", err)
	}
}

func TestDecodeFailureIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	c := api.NewClient(ts.URL, time.Second)
	if _, err := c.Indices(context.Background()); !errors.Is(err, api.ErrTransport) {
		t.Errorf("Indices() error = %v, want transport error", err)
	}
}

func TestProtectedCallWithoutToken(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	c := api.NewClient(ts.URL, time.Second)
	_, err := c.Me(context.Background())
	if !errors.Is(err, api.ErrAuth) {
		t.Errorf("Me() without token error = %v, want auth error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Me() without token issued %d requests, want 0", n)
	}
}

func TestRequestShape(t *testing.T) {
	var gotToken, gotID, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		gotID = r.Header.Get("X-Request-Id")
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := api.NewClient(ts.URL+"/", time.Second)
	c.SetToken("tok-1")
	if _, err := c.Transactions(context.Background()); err != nil {
		t.Fatalf("Transactions() unexpected error = %v", err)
	}
	if gotToken != "tok-1" {
		t.Errorf("token query = %q, want %q", gotToken, "tok-1")
	}
	if gotID == "" {
		t.Error("X-Request-Id header missing")
	}
	if gotPath != "/transactions" {
		t.Errorf("path = %q, want %q", gotPath, "/transactions")
	}
}

func TestQuoteNullPrice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","name":"AAPL","price":null,"change":null}`))
	}))
	defer ts.Close()

	c := api.NewClient(ts.URL, time.Second)
	q, err := c.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Quote() unexpected error = %v", err)
	}
	if q.Price != nil {
		t.Errorf("Quote().Price = %v, want nil", *q.Price)
	}
	if got := q.PriceOr(-1); got != -1 {
		t.Errorf("PriceOr(-1) = %v, want -1", got)
	}
}

func TestClientAgainstFake(t *testing.T) {
	srv := fakeapi.New(fakeapi.WithStartingBalance(0))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	c := api.NewClient(ts.URL+"/api", 5*time.Second)

	if err := c.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Register() unexpected error = %v", err)
	}
	if _, err := c.Login(ctx, "alice", "wrong"); !errors.Is(err, api.ErrAuth) || api.Detail(err) != "Invalid credentials" {
		t.Errorf("Login(wrong password) error = %v, want auth error with detail", err)
	}
	login, err := c.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login() unexpected error = %v", err)
	}
	if c.Token() != login.Token || login.Token == "" {
		t.Errorf("Login() did not install token: client %q, response %q", c.Token(), login.Token)
	}

	balance, err := c.Deposit(ctx, 1000)
	if err != nil {
		t.Fatalf("Deposit() unexpected error = %v", err)
	}
	if balance != 1000 {
		t.Errorf("Deposit(1000) balance = %v, want 1000", balance)
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() unexpected error = %v", err)
	}
	want := &api.User{Username: "alice", Balance: 1000, Portfolio: []api.Position{}}
	if diff := pretty.Compare(want, me); diff != "" {
		t.Errorf("Me(): -want/+got:\n%s", diff)
	}

	page, err := c.Stocks(ctx, "popular", 5, 0)
	if err != nil {
		t.Fatalf("Stocks() unexpected error = %v", err)
	}
	if len(page.Stocks) != 5 || !page.HasMore {
		t.Errorf("Stocks(popular, 5, 0) = %d stocks, has_more %v; want 5, true", len(page.Stocks), page.HasMore)
	}

	points, err := c.History(ctx, "AAPL", "10y")
	if err != nil {
		t.Fatalf("History() unexpected error = %v", err)
	}
	if len(points) != 22 {
		t.Errorf("History(unknown period) returned %d points, want the 1mo series of 22", len(points))
	}

	rates, err := c.Currencies(ctx)
	if err != nil {
		t.Fatalf("Currencies() unexpected error = %v", err)
	}
	if rates["USD"] != 1 {
		t.Errorf("Currencies()[USD] = %v, want 1", rates["USD"])
	}
}

func TestMergePrice(t *testing.T) {
	p1, p2 := 100.0, 101.5
	prev := api.Quote{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Currency: "USD", Price: &p1, Change: 0.1, Volume: 10}
	fresh := api.Quote{Symbol: "AAPL", Price: &p2, Change: 1.5, Timestamp: 42}

	got := prev.MergePrice(fresh)
	want := api.Quote{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Currency: "USD", Price: &p2, Change: 1.5, Volume: 10, Timestamp: 42}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("MergePrice(): -want/+got:\n%s", diff)
	}

	if got := prev.MergePrice(api.Quote{Symbol: "AAPL", Change: 9}); *got.Price != p1 || got.Change != 0.1 {
		t.Errorf("MergePrice(no price) changed the quote: %+v", got)
	}
}

func TestNormalizePeriod(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1d", "1d"},
		{"5y", "5y"},
		{"", "1mo"},
		{"2w", "1mo"},
	}
	for _, tc := range tests {
		if got := api.NormalizePeriod(tc.in); got != tc.want {
			t.Errorf("NormalizePeriod(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
