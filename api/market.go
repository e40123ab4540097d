package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Stocks returns one page of a category listing.
func (c *Client) Stocks(ctx context.Context, category string, limit, offset int) (*StockPage, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var page StockPage
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/stocks", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Stock returns a quote with the default history attached.
func (c *Client) Stock(ctx context.Context, symbol string) (*StockDetail, error) {
	var detail StockDetail
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: symbolPath("/stock/%s", symbol)}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) History(ctx context.Context, symbol, period string) ([]HistoryPoint, error) {
	q := url.Values{"period": {NormalizePeriod(period)}}
	var points []HistoryPoint
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: symbolPath("/stock/%s/history", symbol),
		query:    q,
	}, &points)
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var quote Quote
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: symbolPath("/quote/%s", symbol)}, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := url.Values{"q": {query}}
	var results []SearchResult
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/search", query: q}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) Currencies(ctx context.Context) (Rates, error) {
	var rates Rates
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/currencies"}, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	var markets []Market
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/markets"}, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *Client) Indices(ctx context.Context) ([]Index, error) {
	var indices []Index
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/indices"}, &indices); err != nil {
		return nil, err
	}
	return indices, nil
}
