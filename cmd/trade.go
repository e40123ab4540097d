package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/trading"
)

type tradeCmd struct {
	yes bool
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "buy or sell a symbol at the market price" }
func (*tradeCmd) Usage() string {
	return `tradesim trade [-y] buy|sell <symbol> <quantity>

  Shows the estimated cost and asks for confirmation before the order is
  sent, unless -y is given. The fill price is decided by the server.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "Do not ask for confirmation.")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		return usageError(f, "trade takes an action, a symbol and a quantity")
	}
	order, err := trading.ParseOrder(f.Arg(1), f.Arg(2), f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, trading.Message(err))
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	if err := e.requireLogin(); err != nil {
		return fail(err)
	}
	e.loadRates(ctx)

	if !c.yes {
		q, err := e.client.Quote(ctx, order.Symbol)
		if err != nil {
			return fail(err)
		}
		fmt.Println(c.estimate(e.cur, order, *q))
		if !confirm("Proceed? [y/N] ") {
			fmt.Println("Cancelled")
			return subcommands.ExitSuccess
		}
	}

	res, err := trading.Execute(ctx, e.client, order)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", trading.Message(err))
		return subcommands.ExitFailure
	}
	verb := "Bought"
	if order.Action == api.ActionSell {
		verb = "Sold"
	}
	fmt.Printf("%s %v %s at %s. Balance: %s\n", verb, order.Quantity, order.Symbol,
		e.cur.Format(res.Price, currency.Decimals), e.cur.Format(res.Balance, currency.Decimals))
	return subcommands.ExitSuccess
}

func (*tradeCmd) estimate(cur *currency.Service, o trading.Order, q api.Quote) string {
	price := q.PriceOr(0)
	cost := trading.EstimateCost(fmt.Sprint(o.Quantity), price)
	line := fmt.Sprintf("%s %v %s at about %s, estimated %s", o.Action, o.Quantity, o.Symbol,
		cur.FormatNative(&price, q.Currency, currency.Decimals),
		cur.FormatNative(&cost, q.Currency, currency.Decimals))
	if q.Currency != "" && q.Currency != cur.Selected() {
		line += " (≈ " + cur.FormatConverted(cost, q.Currency, currency.Decimals) + ")"
	}
	return line
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
