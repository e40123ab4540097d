// Package fakeapi is an in-memory implementation of the trading simulator
// REST API. It backs the serve-fake command and the package tests.
package fakeapi

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"

	"tradesim/api"
)

type position struct {
	symbol   string
	quantity decimal.Decimal
	avgPrice decimal.Decimal // native currency
	currency string
}

type transaction struct {
	api.Transaction
	at time.Time
}

type account struct {
	username    string
	displayName string
	password    string
	balance     decimal.Decimal
	positions   []*position
	txs         []transaction
	favorites   []string
}

func (a *account) position(symbol string) (int, *position) {
	for i, p := range a.positions {
		if p.symbol == symbol {
			return i, p
		}
	}
	return -1, nil
}

// Server holds the simulated market and accounts.
type Server struct {
	mu          sync.Mutex
	accounts    map[string]*account
	tokens      map[string]*account
	instruments map[string]*instrument
	order       []*instrument // catalog order
	markets     []api.Market
	rates       api.Rates
	rnd         *rand.Rand
	now         func() time.Time
	hits        map[string]int
	startCash   decimal.Decimal
}

type Option func(*Server)

// WithSeed fixes the random walk.
func WithSeed(seed int64) Option {
	return func(s *Server) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithStartingBalance sets the balance of newly registered accounts.
func WithStartingBalance(amount float64) Option {
	return func(s *Server) { s.startCash = decimal.NewFromFloat(amount) }
}

func New(opts ...Option) *Server {
	s := &Server{
		accounts:    map[string]*account{},
		tokens:      map[string]*account{},
		instruments: map[string]*instrument{},
		markets:     append([]api.Market(nil), defaultMarkets...),
		rates:       defaultRates(),
		rnd:         rand.New(rand.NewSource(1)),
		now:         time.Now,
		hits:        map[string]int{},
		startCash:   decimal.Zero,
	}
	for _, sd := range stockSeeds {
		in := newInstrument(sd, false)
		s.instruments[in.symbol] = in
		s.order = append(s.order, in)
	}
	for _, sd := range indexSeeds {
		in := newInstrument(sd, true)
		s.instruments[in.symbol] = in
		s.order = append(s.order, in)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API mounted under /api.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	g := r.Group("/api")
	g.POST("/register", s.register)
	g.POST("/login", s.login)
	g.GET("/stocks", s.stocks)
	g.GET("/stock/:symbol", s.stock)
	g.GET("/stock/:symbol/history", s.history)
	g.GET("/quote/:symbol", s.quote)
	g.GET("/search", s.search)
	g.GET("/currencies", s.currencies)
	g.GET("/markets", s.marketStatus)
	g.GET("/indices", s.indices)

	authed := g.Group("", s.requireToken())
	authed.GET("/me", s.me)
	authed.POST("/deposit", s.deposit)
	authed.POST("/trade", s.trade)
	authed.GET("/transactions", s.transactions)
	authed.GET("/report", s.report)
	authed.PUT("/account/username", s.changeUsername)
	authed.PUT("/account/password", s.changePassword)
	authed.PUT("/account/display_name", s.changeDisplayName)
	authed.GET("/favorites", s.favorites)
	authed.POST("/favorites/:symbol", s.addFavorite)
	authed.DELETE("/favorites/:symbol", s.removeFavorite)
	return r
}

// ListenAndServe serves on addr until ctx is done. Prices walk every tick
// when tick is positive.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tick time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	if tick > 0 {
		go s.walkEvery(ctx, tick)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("fakeapi: shutdown: %v", err)
		}
	}()

	glog.Infof("fakeapi: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) walkEvery(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances the random walk once.
func (s *Server) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	walk(s.rnd, s.order)
}

// SetPrice pins the price of symbol. Unknown symbols are ignored.
func (s *Server) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.instruments[symbol]; ok {
		in.setPrice(price)
	}
}

// SetFailing makes quotes for symbol fail until reset.
func (s *Server) SetFailing(symbol string, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.instruments[symbol]; ok {
		in.failing = failing
	}
}

func (s *Server) SetMarketOpen(exchange string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.markets {
		if s.markets[i].Exchange == exchange {
			s.markets[i].IsOpen = open
		}
	}
}

// SetRates replaces the exchange rate table. A nil table makes the rates
// endpoint fail.
func (s *Server) SetRates(rates api.Rates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = rates
}

// Hits returns how many requests reached route, e.g. "/api/trade".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.mu.Lock()
		s.hits[route]++
		s.mu.Unlock()

		c.Next()

		glog.V(1).Infof("fakeapi: %s %s -> %d in %v (request %s)",
			c.Request.Method, route, c.Writer.Status(), time.Since(start), c.GetHeader("X-Request-Id"))
	}
}

const accountKey = "account"

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			validationError(c, "query.token", "field required")
			c.Abort()
			return
		}
		s.mu.Lock()
		acct, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			detail(c, http.StatusUnauthorized, "Invalid token")
			c.Abort()
			return
		}
		c.Set(accountKey, acct)
		c.Next()
	}
}

func current(c *gin.Context) *account {
	return c.MustGet(accountKey).(*account)
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// validationError answers in the shape of a request validation failure.
func validationError(c *gin.Context, loc, msg string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"detail": []gin.H{{"loc": loc, "msg": msg, "type": "value_error"}},
	})
}

// bind decodes the JSON body into v, answering 422 on failure.
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		validationError(c, "body", err.Error())
		return false
	}
	return true
}

func (s *Server) sortedMarkets() []api.Market {
	out := append([]api.Market(nil), s.markets...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}
