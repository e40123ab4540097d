package fakeapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesim/api"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	searchLimit  = 10
)

func (s *Server) register(c *gin.Context) {
	var req api.Credentials
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[req.Username]; ok {
		detail(c, http.StatusBadRequest, "Username exists")
		return
	}
	s.accounts[req.Username] = &account{
		username: req.Username,
		password: req.Password,
		balance:  s.startCash,
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Registered"})
}

func (s *Server) login(c *gin.Context) {
	var req api.Credentials
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[req.Username]
	if !ok || acct.password != req.Password {
		detail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = acct
	c.JSON(http.StatusOK, api.LoginResponse{Token: token, Username: acct.username})
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	user := api.User{
		Username:    acct.username,
		DisplayName: acct.displayName,
		Balance:     acct.balance.InexactFloat64(),
		Portfolio:   []api.Position{},
	}
	for _, p := range acct.positions {
		user.Portfolio = append(user.Portfolio, api.Position{
			Symbol:   p.symbol,
			Quantity: p.quantity.InexactFloat64(),
			AvgPrice: p.avgPrice.InexactFloat64(),
			Currency: p.currency,
		})
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deposit(c *gin.Context) {
	var req api.DepositRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	next := acct.balance.Add(decimal.NewFromFloat(req.Amount))
	if next.IsNegative() {
		detail(c, http.StatusBadRequest, "Insufficient funds")
		return
	}
	acct.balance = next
	c.JSON(http.StatusOK, api.BalanceResponse{Balance: acct.balance.InexactFloat64()})
}

// toBase converts a native amount into USD with the current table.
func (s *Server) toBase(amount decimal.Decimal, currency string) decimal.Decimal {
	rate, ok := s.rates[currency]
	if !ok || rate <= 0 {
		return amount
	}
	return amount.Div(decimal.NewFromFloat(rate))
}

func (s *Server) trade(c *gin.Context) {
	var req api.TradeRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := api.NormalizeSymbol(req.Symbol)
	if req.Quantity <= 0 {
		detail(c, http.StatusBadRequest, "Quantity must be positive")
		return
	}
	if req.Action != api.ActionBuy && req.Action != api.ActionSell {
		detail(c, http.StatusBadRequest, "Invalid action")
		return
	}
	in, ok := s.instruments[symbol]
	if !ok || in.index || in.failing {
		detail(c, http.StatusNotFound, fmt.Sprintf("No data for %s", symbol))
		return
	}

	acct := current(c)
	qty := decimal.NewFromFloat(req.Quantity)
	native := decimal.NewFromFloat(in.price)
	price := s.toBase(native, in.currency).Round(2)
	total := price.Mul(qty)

	switch req.Action {
	case api.ActionBuy:
		if acct.balance.LessThan(total) {
			detail(c, http.StatusBadRequest, "Insufficient funds")
			return
		}
		acct.balance = acct.balance.Sub(total)
		if _, p := acct.position(symbol); p != nil {
			newQty := p.quantity.Add(qty)
			p.avgPrice = p.avgPrice.Mul(p.quantity).Add(native.Mul(qty)).Div(newQty)
			p.quantity = newQty
		} else {
			acct.positions = append(acct.positions, &position{
				symbol:   symbol,
				quantity: qty,
				avgPrice: native,
				currency: in.currency,
			})
		}
	case api.ActionSell:
		i, p := acct.position(symbol)
		if p == nil || p.quantity.LessThan(qty) {
			detail(c, http.StatusBadRequest, "Not enough shares")
			return
		}
		p.quantity = p.quantity.Sub(qty)
		acct.balance = acct.balance.Add(total)
		if p.quantity.IsZero() {
			acct.positions = append(acct.positions[:i], acct.positions[i+1:]...)
		}
	}

	now := s.now()
	acct.txs = append(acct.txs, transaction{
		Transaction: api.Transaction{
			Symbol:   symbol,
			Action:   req.Action,
			Quantity: req.Quantity,
			Price:    price.InexactFloat64(),
			Total:    total.InexactFloat64(),
			Date:     now.UTC().Format("2006-01-02 15:04:05"),
		},
		at: now,
	})
	c.JSON(http.StatusOK, api.TradeResponse{
		Message: "Trade executed",
		Balance: acct.balance.InexactFloat64(),
		Price:   price.InexactFloat64(),
	})
}

func (s *Server) transactions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	out := make([]api.Transaction, 0, len(acct.txs))
	for i := len(acct.txs) - 1; i >= 0; i-- {
		out = append(out, acct.txs[i].Transaction)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) report(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	var invested, currentValue decimal.Decimal
	holdings := []api.Holding{}
	for _, p := range acct.positions {
		in, ok := s.instruments[p.symbol]
		if !ok || in.failing {
			continue
		}
		cost := s.toBase(p.avgPrice.Mul(p.quantity), p.currency)
		value := s.toBase(decimal.NewFromFloat(in.price).Mul(p.quantity), p.currency)
		profit := value.Sub(cost)
		pct := decimal.Zero
		if cost.IsPositive() {
			pct = profit.Div(cost).Mul(decimal.NewFromInt(100))
		}
		invested = invested.Add(cost)
		currentValue = currentValue.Add(value)
		holdings = append(holdings, api.Holding{
			Symbol:        p.symbol,
			Quantity:      p.quantity.InexactFloat64(),
			AvgPrice:      p.avgPrice.InexactFloat64(),
			CurrentPrice:  in.price,
			Invested:      cost.Round(2).InexactFloat64(),
			Current:       value.Round(2).InexactFloat64(),
			Profit:        profit.Round(2).InexactFloat64(),
			ProfitPercent: pct.Round(2).InexactFloat64(),
			Currency:      p.currency,
		})
	}
	c.JSON(http.StatusOK, api.Report{
		Balance:       acct.balance.InexactFloat64(),
		TotalInvested: invested.Round(2).InexactFloat64(),
		TotalCurrent:  currentValue.Round(2).InexactFloat64(),
		TotalProfit:   currentValue.Sub(invested).Round(2).InexactFloat64(),
		Holdings:      holdings,
	})
}

func (s *Server) changeUsername(c *gin.Context) {
	var req api.UsernameRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	name := strings.TrimSpace(req.Username)
	if len(name) < 3 {
		detail(c, http.StatusBadRequest, "Username too short")
		return
	}
	if other, ok := s.accounts[name]; ok && other != acct {
		detail(c, http.StatusBadRequest, "Username exists")
		return
	}
	delete(s.accounts, acct.username)
	acct.username = name
	s.accounts[name] = acct

	token := uuid.NewString()
	s.tokens[token] = acct
	c.JSON(http.StatusOK, api.UsernameResponse{Username: name, Token: token})
}

func (s *Server) changePassword(c *gin.Context) {
	var req api.PasswordRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	if acct.password != req.OldPassword {
		detail(c, http.StatusBadRequest, "Invalid old password")
		return
	}
	if len(req.NewPassword) < 6 {
		detail(c, http.StatusBadRequest, "Password too short")
		return
	}
	acct.password = req.NewPassword
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Password changed"})
}

func (s *Server) changeDisplayName(c *gin.Context) {
	var req api.DisplayNameRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	acct.displayName = strings.TrimSpace(req.DisplayName)
	c.JSON(http.StatusOK, api.DisplayNameRequest{DisplayName: acct.displayName})
}

func (s *Server) favorites(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := current(c)
	now := s.now()
	out := []api.Quote{}
	for _, sym := range acct.favorites {
		if in, ok := s.instruments[sym]; ok {
			out = append(out, s.quoteOf(in, now))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) addFavorite(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := api.NormalizeSymbol(c.Param("symbol"))
	if _, ok := s.instruments[symbol]; !ok {
		detail(c, http.StatusNotFound, fmt.Sprintf("No data for %s", symbol))
		return
	}
	acct := current(c)
	for _, f := range acct.favorites {
		if f == symbol {
			c.JSON(http.StatusOK, api.MessageResponse{Message: "Already in favorites"})
			return
		}
	}
	acct.favorites = append(acct.favorites, symbol)
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Added to favorites"})
}

func (s *Server) removeFavorite(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := api.NormalizeSymbol(c.Param("symbol"))
	acct := current(c)
	for i, f := range acct.favorites {
		if f == symbol {
			acct.favorites = append(acct.favorites[:i], acct.favorites[i+1:]...)
			break
		}
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Removed from favorites"})
}

// quoteOf returns the quote of in, with a null price when it is failing.
func (s *Server) quoteOf(in *instrument, now time.Time) api.Quote {
	q := in.quote(now)
	if in.failing {
		q.Price = nil
		q.Change = 0
	}
	return q
}

func (s *Server) stocks(c *gin.Context) {
	category := c.DefaultQuery("category", "popular")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		validationError(c, "query.limit", "value is not a valid integer")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		validationError(c, "query.offset", "value is not a valid integer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*instrument
	for _, in := range s.order {
		if !in.index && in.inCategory(category) {
			matched = append(matched, in)
		}
	}
	if len(matched) == 0 {
		detail(c, http.StatusNotFound, fmt.Sprintf("Unknown category %s", category))
		return
	}

	page := api.StockPage{Stocks: []api.Quote{}, Total: len(matched)}
	now := s.now()
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		page.Stocks = append(page.Stocks, s.quoteOf(matched[i], now))
	}
	page.HasMore = offset+limit < len(matched)
	c.JSON(http.StatusOK, page)
}

func (s *Server) lookup(c *gin.Context) (*instrument, bool) {
	symbol := api.NormalizeSymbol(c.Param("symbol"))
	in, ok := s.instruments[symbol]
	if !ok || in.failing {
		detail(c, http.StatusServiceUnavailable, fmt.Sprintf("No data for %s", symbol))
		return nil, false
	}
	return in, true
}

func (s *Server) stock(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.lookup(c)
	if !ok {
		return
	}
	now := s.now()
	c.JSON(http.StatusOK, api.StockDetail{
		Quote:   in.quote(now),
		History: history(in, api.DefaultPeriod, now),
	})
}

func (s *Server) history(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := api.NormalizeSymbol(c.Param("symbol"))
	in, ok := s.instruments[symbol]
	if !ok || in.failing {
		c.JSON(http.StatusOK, []api.HistoryPoint{})
		return
	}
	c.JSON(http.StatusOK, history(in, api.NormalizePeriod(c.Query("period")), s.now()))
}

func (s *Server) quote(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, in.quote(s.now()))
}

func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	out := []api.SearchResult{}
	if q == "" {
		c.JSON(http.StatusOK, out)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range s.order {
		if in.index || !matches(in, q) {
			continue
		}
		out = append(out, api.SearchResult{Symbol: in.symbol, Name: in.name, Exchange: in.exchange})
		if len(out) == searchLimit {
			break
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) currencies(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rates == nil {
		detail(c, http.StatusServiceUnavailable, "Rates unavailable")
		return
	}
	c.JSON(http.StatusOK, s.rates)
}

func (s *Server) marketStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.sortedMarkets())
}

func (s *Server) indices(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []api.Index{}
	for _, in := range s.order {
		if !in.index {
			continue
		}
		q := in.quote(s.now())
		out = append(out, api.Index{Symbol: in.symbol, Name: in.name, Price: in.price, Change: q.Change})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	c.JSON(http.StatusOK, out)
}
