package api

import (
	"context"
	"net/http"
)

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/register",
		body:     Credentials{Username: username, Password: password},
	}, nil)
}

// Login authenticates and installs the returned token on c.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/login",
		body:     Credentials{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/me", auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Deposit adds amount (base currency, negative withdraws) to the balance and
// returns the new balance.
func (c *Client) Deposit(ctx context.Context, amount float64) (float64, error) {
	var resp BalanceResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/deposit",
		auth:     true,
		body:     DepositRequest{Amount: amount},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) Trade(ctx context.Context, t TradeRequest) (*TradeResponse, error) {
	var resp TradeResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/trade",
		auth:     true,
		body:     t,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transactions returns the trade history, newest first.
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/transactions", auth: true}, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) Report(ctx context.Context) (*Report, error) {
	var report Report
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/report", auth: true}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ChangeUsername renames the account. The server issues a new token, which
// replaces the current one.
func (c *Client) ChangeUsername(ctx context.Context, username string) (*UsernameResponse, error) {
	var resp UsernameResponse
	err := c.do(ctx, request{
		method:   http.MethodPut,
		endpoint: "/account/username",
		auth:     true,
		body:     UsernameRequest{Username: username},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetToken(resp.Token)
	}
	return &resp, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, request{
		method:   http.MethodPut,
		endpoint: "/account/password",
		auth:     true,
		body:     PasswordRequest{OldPassword: oldPassword, NewPassword: newPassword},
	}, nil)
}

func (c *Client) ChangeDisplayName(ctx context.Context, name string) (string, error) {
	var resp DisplayNameRequest
	err := c.do(ctx, request{
		method:   http.MethodPut,
		endpoint: "/account/display_name",
		auth:     true,
		body:     DisplayNameRequest{DisplayName: name},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.DisplayName, nil
}

func (c *Client) Favorites(ctx context.Context) ([]Quote, error) {
	var quotes []Quote
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/favorites", auth: true}, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (c *Client) AddFavorite(ctx context.Context, symbol string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: symbolPath("/favorites/%s", symbol),
		auth:     true,
	}, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, symbol string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		endpoint: symbolPath("/favorites/%s", symbol),
		auth:     true,
	}, nil)
}
