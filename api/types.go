package api

import "strings"

// Categories are the server defined stock list categories.
var Categories = []string{"popular", "tech", "finance", "russian", "crypto"}

// Periods are the accepted history periods, shortest first.
var Periods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "5y"}

const DefaultPeriod = "1mo"

// NormalizePeriod maps unknown periods to DefaultPeriod, as the server does.
func NormalizePeriod(p string) string {
	for _, v := range Periods {
		if v == p {
			return p
		}
	}
	return DefaultPeriod
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	// Currency is the instrument's native currency. Empty means base.
	Currency string `json:"currency,omitempty"`
}

type User struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	Balance     float64    `json:"balance"`
	Portfolio   []Position `json:"portfolio"`
}

// Symbols returns the held symbols in portfolio order.
func (u *User) Symbols() []string {
	out := make([]string, 0, len(u.Portfolio))
	for _, p := range u.Portfolio {
		out = append(out, p.Symbol)
	}
	return out
}

type DepositRequest struct {
	Amount float64 `json:"amount"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// Quote is a price snapshot. Price is nil when the server could not price
// the symbol.
type Quote struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name,omitempty"`
	Exchange  string   `json:"exchange,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Price     *float64 `json:"price"`
	Change    float64  `json:"change"`
	PrevClose float64  `json:"prev_close,omitempty"`
	Open      float64  `json:"open,omitempty"`
	High      float64  `json:"high,omitempty"`
	Low       float64  `json:"low,omitempty"`
	Volume    float64  `json:"volume,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// PriceOr returns the price, or def when it is unknown.
func (q Quote) PriceOr(def float64) float64 {
	if q.Price == nil {
		return def
	}
	return *q.Price
}

// MergePrice returns q with the price fields of fresh applied. Identity
// fields (name, exchange, currency) are kept from q. A fresh quote without a
// price leaves q untouched.
func (q Quote) MergePrice(fresh Quote) Quote {
	if fresh.Price == nil {
		return q
	}
	p := *fresh.Price
	q.Price = &p
	q.Change = fresh.Change
	if fresh.Timestamp != 0 {
		q.Timestamp = fresh.Timestamp
	}
	if fresh.PrevClose != 0 {
		q.PrevClose = fresh.PrevClose
	}
	if fresh.Open != 0 {
		q.Open = fresh.Open
	}
	if fresh.High != 0 {
		q.High = fresh.High
	}
	if fresh.Low != 0 {
		q.Low = fresh.Low
	}
	if fresh.Volume != 0 {
		q.Volume = fresh.Volume
	}
	return q
}

type StockPage struct {
	Stocks  []Quote `json:"stocks"`
	HasMore bool    `json:"has_more"`
	Total   int     `json:"total"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type StockDetail struct {
	Quote
	History []HistoryPoint `json:"history"`
}

type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Rates maps a currency code to units of that currency per 1 USD.
type Rates map[string]float64

type Market struct {
	Exchange string `json:"exchange"`
	Name     string `json:"name"`
	IsOpen   bool   `json:"is_open"`
}

type Index struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

type TradeRequest struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Action   string  `json:"action"`
}

type TradeResponse struct {
	Message string  `json:"message"`
	Balance float64 `json:"balance"`
	Price   float64 `json:"price"`
}

type Transaction struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
	Date     string  `json:"date"`
}

type Holding struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	CurrentPrice  float64 `json:"current_price"`
	Invested      float64 `json:"invested"`
	Current       float64 `json:"current"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profit_percent"`
	// Currency is the native currency of AvgPrice and CurrentPrice. The
	// other amounts are in the base currency.
	Currency string `json:"currency,omitempty"`
}

type Report struct {
	Balance       float64   `json:"balance"`
	TotalInvested float64   `json:"total_invested"`
	TotalCurrent  float64   `json:"total_current"`
	TotalProfit   float64   `json:"total_profit"`
	Holdings      []Holding `json:"holdings"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

type UsernameResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type PasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type DisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
