package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/storage"
)

type loginCmd struct {
	username string
	register bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and store the session token" }
func (*loginCmd) Usage() string {
	return `tradesim login [-u <username>] [-register]

  Prompts for the password without echoing it. With -register the account is
  created first.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "Username (prompted when empty).")
	f.BoolVar(&c.register, "register", false, "Create the account before logging in.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}

	username := strings.TrimSpace(c.username)
	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fail(fmt.Errorf("failed to read username: %w", err))
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fail(fmt.Errorf("failed to read password: %w", err))
	}
	password := string(raw)

	if len(username) < 3 {
		return fail(api.Invalid("Username must be at least 3 characters"))
	}
	if len(password) < 6 {
		return fail(api.Invalid("Password must be at least 6 characters"))
	}

	if c.register {
		if err := e.client.Register(ctx, username, password); err != nil {
			return fail(err)
		}
		fmt.Printf("Registered %s\n", username)
	}
	resp, err := e.client.Login(ctx, username, password)
	if err != nil {
		return fail(err)
	}
	if resp.Username != "" {
		username = resp.Username
	}
	if err := e.store.Set(storage.KeyToken, resp.Token); err != nil {
		return fail(err)
	}
	if err := e.store.Set(storage.KeyUsername, username); err != nil {
		return fail(err)
	}
	fmt.Printf("Logged in as %s\n", username)
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "forget the stored session" }
func (*logoutCmd) Usage() string {
	return `tradesim logout

  Removes the session token and username. Display preferences are kept.
`
}

func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (*logoutCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	if err := e.store.Delete(storage.KeyToken, storage.KeyUsername); err != nil {
		return fail(err)
	}
	fmt.Println("Logged out")
	return subcommands.ExitSuccess
}

type depositCmd struct {
	withdraw bool
	inBase   bool
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "add or withdraw cash" }
func (*depositCmd) Usage() string {
	return `tradesim deposit [-withdraw] [-base] <amount>

  The amount is read in the display currency and converted to USD before it
  is sent, unless -base is given.
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.withdraw, "withdraw", false, "Withdraw the amount instead.")
	f.BoolVar(&c.inBase, "base", false, "The amount is in USD.")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError(f, "deposit takes exactly one amount")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Arg(0)))
	if err != nil {
		return fail(api.Invalid("Enter an amount"))
	}
	if !amount.IsPositive() {
		return fail(api.Invalid("Amount must be positive"))
	}

	e, err := openEnv()
	if err != nil {
		return fail(err)
	}
	if err := e.requireLogin(); err != nil {
		return fail(err)
	}

	from := currency.Base
	if !c.inBase {
		e.loadRates(ctx)
		from = e.cur.Selected()
		if _, ok := e.cur.State().Rates[from]; !ok && from != currency.Base {
			return fail(fmt.Errorf("no exchange rate for %s, retry later or pass -base", from))
		}
	}
	base := e.cur.ToBase(amount.InexactFloat64(), from)
	if c.withdraw {
		base = -base
	}

	balance, err := e.client.Deposit(ctx, base)
	if err != nil {
		return fail(err)
	}
	verb := "Deposited"
	if c.withdraw {
		verb = "Withdrew"
	}
	fmt.Printf("%s %s. Balance: %s\n", verb,
		currency.Amount(amount.InexactFloat64(), currency.Symbol(from), currency.Decimals),
		e.cur.Format(balance, currency.Decimals))
	return subcommands.ExitSuccess
}
