// Package api is a typed client for the trading simulator REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// request describes one API call.
type request struct {
	method   string
	endpoint string
	query    url.Values
	auth     bool
	body     interface{}
}

// do issues r and decodes the response into out when out is not nil.
// All failures are *Error.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	query := r.query
	if query == nil {
		query = url.Values{}
	}
	if r.auth {
		token := c.Token()
		if token == "" {
			return &Error{Kind: KindAuth, Detail: "Not authenticated"}
		}
		query.Set("token", token)
	}

	var reqBody io.Reader
	if r.body != nil {
		bodyContent, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Kind: KindTransport, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(bodyContent)
	}

	fullURL := c.BaseURL + r.endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, reqBody)
	if err != nil {
		return &Error{Kind: KindTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	id := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", id)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		glog.V(2).Infof("api %s: %s %s failed: %v", id, r.method, r.endpoint, err)
		return &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	glog.V(2).Infof("api %s: %s %s -> %d in %v", id, r.method, r.endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode %s response: %w", r.endpoint, err)}
	}
	return nil
}

func symbolPath(format, symbol string) string {
	return fmt.Sprintf(format, url.PathEscape(NormalizeSymbol(symbol)))
}
