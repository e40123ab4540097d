package fakeapi

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/api"
)

type instrument struct {
	symbol     string
	name       string
	exchange   string
	currency   string
	categories []string
	index      bool

	price     float64
	prevClose float64
	open      float64
	high      float64
	low       float64
	volume    float64
	failing   bool
}

func (in *instrument) quote(now time.Time) api.Quote {
	q := api.Quote{
		Symbol:    in.symbol,
		Name:      in.name,
		Exchange:  in.exchange,
		Currency:  in.currency,
		PrevClose: in.prevClose,
		Open:      in.open,
		High:      in.high,
		Low:       in.low,
		Volume:    in.volume,
		Timestamp: now.Unix(),
	}
	p := in.price
	q.Price = &p
	if in.prevClose != 0 {
		q.Change = round2((in.price - in.prevClose) / in.prevClose * 100)
	}
	return q
}

func (in *instrument) inCategory(category string) bool {
	for _, c := range in.categories {
		if c == category {
			return true
		}
	}
	return false
}

// setPrice moves the instrument to p and updates the day range.
func (in *instrument) setPrice(p float64) {
	in.price = round2(p)
	if in.price > in.high {
		in.high = in.price
	}
	if in.low == 0 || in.price < in.low {
		in.low = in.price
	}
}

type seed struct {
	symbol, name, exchange, currency string
	price                            float64
	categories                       []string
}

var stockSeeds = []seed{
	{"AAPL", "Apple Inc.", "NASDAQ", "USD", 189.50, []string{"popular", "tech"}},
	{"GOOGL", "Alphabet Inc.", "NASDAQ", "USD", 141.20, []string{"popular", "tech"}},
	{"MSFT", "Microsoft Corporation", "NASDAQ", "USD", 378.90, []string{"popular", "tech"}},
	{"AMZN", "Amazon.com, Inc.", "NASDAQ", "USD", 153.40, []string{"popular"}},
	{"TSLA", "Tesla, Inc.", "NASDAQ", "USD", 242.10, []string{"popular"}},
	{"META", "Meta Platforms, Inc.", "NASDAQ", "USD", 352.60, []string{"popular", "tech"}},
	{"NVDA", "NVIDIA Corporation", "NASDAQ", "USD", 481.30, []string{"popular", "tech"}},
	{"NFLX", "Netflix, Inc.", "NASDAQ", "USD", 486.80, []string{"popular"}},
	{"ORCL", "Oracle Corporation", "NYSE", "USD", 105.20, []string{"tech"}},
	{"AMD", "Advanced Micro Devices, Inc.", "NASDAQ", "USD", 138.70, []string{"tech"}},
	{"INTC", "Intel Corporation", "NASDAQ", "USD", 43.60, []string{"tech"}},
	{"JPM", "JPMorgan Chase & Co.", "NYSE", "USD", 170.10, []string{"finance"}},
	{"BAC", "Bank of America Corporation", "NYSE", "USD", 33.40, []string{"finance"}},
	{"GS", "The Goldman Sachs Group, Inc.", "NYSE", "USD", 382.50, []string{"finance"}},
	{"V", "Visa Inc.", "NYSE", "USD", 260.30, []string{"finance"}},
	{"MA", "Mastercard Incorporated", "NYSE", "USD", 425.80, []string{"finance"}},
	{"SBER.ME", "Sberbank of Russia", "MOEX", "RUB", 272.40, []string{"russian"}},
	{"GAZP.ME", "Gazprom", "MOEX", "RUB", 162.30, []string{"russian"}},
	{"LKOH.ME", "LUKOIL", "MOEX", "RUB", 7120.00, []string{"russian"}},
	{"YDEX.ME", "Yandex", "MOEX", "RUB", 4050.00, []string{"russian"}},
	{"BTC-USD", "Bitcoin USD", "CCC", "USD", 43250.00, []string{"crypto"}},
	{"ETH-USD", "Ethereum USD", "CCC", "USD", 2280.00, []string{"crypto"}},
	{"SOL-USD", "Solana USD", "CCC", "USD", 98.40, []string{"crypto"}},
}

var indexSeeds = []seed{
	{"^GSPC", "S&P 500", "INDEX", "USD", 4780.20, nil},
	{"^IXIC", "NASDAQ Composite", "INDEX", "USD", 15011.30, nil},
	{"^DJI", "Dow Jones Industrial Average", "INDEX", "USD", 37545.30, nil},
	{"IMOEX.ME", "MOEX Russia Index", "INDEX", "RUB", 3099.10, nil},
}

var defaultMarkets = []api.Market{
	{Exchange: "NASDAQ", Name: "Nasdaq Stock Market", IsOpen: true},
	{Exchange: "NYSE", Name: "New York Stock Exchange", IsOpen: true},
	{Exchange: "MOEX", Name: "Moscow Exchange", IsOpen: true},
	{Exchange: "CCC", Name: "Crypto", IsOpen: true},
}

func defaultRates() api.Rates {
	return api.Rates{"USD": 1, "RUB": 90.5, "EUR": 0.92, "GBP": 0.79, "CNY": 7.18}
}

func newInstrument(s seed, index bool) *instrument {
	return &instrument{
		symbol:     s.symbol,
		name:       s.name,
		exchange:   s.exchange,
		currency:   s.currency,
		categories: s.categories,
		index:      index,
		price:      s.price,
		prevClose:  s.price,
		open:       s.price,
		high:       s.price,
		low:        s.price,
	}
}

// walk moves every price by up to 1% in either direction.
func walk(rnd *rand.Rand, instruments []*instrument) {
	for _, in := range instruments {
		r := (rnd.Float64()*2 - 1) * 0.01
		in.setPrice(in.price * (1 + r))
		in.volume += float64(rnd.Intn(1000))
	}
}

type periodShape struct {
	points int
	step   time.Duration
	layout string
}

var periodShapes = map[string]periodShape{
	"1d":  {78, 5 * time.Minute, "15:04"},
	"5d":  {130, 15 * time.Minute, "15:04"},
	"1mo": {22, 24 * time.Hour, "2006-01-02"},
	"3mo": {63, 24 * time.Hour, "2006-01-02"},
	"6mo": {126, 24 * time.Hour, "2006-01-02"},
	"1y":  {252, 24 * time.Hour, "2006-01-02"},
	"5y":  {260, 7 * 24 * time.Hour, "2006-01-02"},
}

// history builds a deterministic series ending at the current price. The
// same symbol and period always produce the same shape.
func history(in *instrument, period string, now time.Time) []api.HistoryPoint {
	shape := periodShapes[api.NormalizePeriod(period)]

	h := fnv.New64a()
	h.Write([]byte(in.symbol + "/" + period))
	rnd := rand.New(rand.NewSource(int64(h.Sum64())))

	prices := make([]float64, shape.points)
	p := in.price
	for i := shape.points - 1; i >= 0; i-- {
		prices[i] = round2(p)
		p = p / (1 + (rnd.Float64()*2-1)*0.015)
	}

	out := make([]api.HistoryPoint, shape.points)
	for i := range prices {
		at := now.Add(-time.Duration(shape.points-1-i) * shape.step)
		out[i] = api.HistoryPoint{Date: at.Format(shape.layout), Price: prices[i]}
	}
	return out
}

func matches(in *instrument, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(in.symbol), q) || strings.Contains(strings.ToLower(in.name), q)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
