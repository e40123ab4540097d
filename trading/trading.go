// Package trading validates and submits buy/sell orders.
package trading

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/shopspring/decimal"

	"tradesim/api"
)

// GenericFailure is shown when a failed trade carries no server detail.
const GenericFailure = "Trade failed"

// Order is a validated trade request.
type Order struct {
	Symbol   string
	Quantity float64
	Action   string
}

// Result is the server's answer to an executed order. Price is in the base
// currency.
type Result struct {
	Price   float64
	Balance float64
	Message string
}

// Executor submits orders.
type Executor interface {
	Trade(ctx context.Context, t api.TradeRequest) (*api.TradeResponse, error)
}

// ParseOrder validates the raw form values. Failures are validation errors
// and nothing is sent.
func ParseOrder(symbol, quantity, action string) (Order, error) {
	symbol = api.NormalizeSymbol(symbol)
	if symbol == "" {
		return Order{}, api.Invalid("Enter a symbol")
	}

	qty, err := strconv.ParseFloat(strings.TrimSpace(quantity), 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return Order{}, api.Invalid("Quantity must be a number")
	}
	if qty <= 0 {
		return Order{}, api.Invalid("Quantity must be positive")
	}

	action = strings.ToLower(strings.TrimSpace(action))
	if action != api.ActionBuy && action != api.ActionSell {
		return Order{}, api.Invalid("Action must be buy or sell")
	}
	return Order{Symbol: symbol, Quantity: qty, Action: action}, nil
}

// Execute sends exactly one trade request for o. Nothing is updated
// locally; callers refresh the account from the server on success.
func Execute(ctx context.Context, ex Executor, o Order) (*Result, error) {
	resp, err := ex.Trade(ctx, api.TradeRequest{
		Symbol:   o.Symbol,
		Quantity: o.Quantity,
		Action:   o.Action,
	})
	if err != nil {
		glog.V(1).Infof("trading: %s %v %s failed: %v", o.Action, o.Quantity, o.Symbol, err)
		return nil, err
	}
	glog.Infof("trading: %s %v %s at %v", o.Action, o.Quantity, o.Symbol, resp.Price)
	return &Result{Price: resp.Price, Balance: resp.Balance, Message: resp.Message}, nil
}

// Message returns the text to show for a failed trade: the server or
// validation detail verbatim when there is one, GenericFailure otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if d := api.Detail(err); d != "" {
		return d
	}
	return GenericFailure
}

// EstimateCost is quantity times price, rounded to cents. Unparsable or
// non-positive quantities estimate to zero.
func EstimateCost(quantity string, price float64) float64 {
	qty, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil || !qty.IsPositive() {
		return 0
	}
	return qty.Mul(decimal.NewFromFloat(price)).Round(2).InexactFloat64()
}
