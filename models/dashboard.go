package models

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/poll"
	"tradesim/ui"
)

type depositMode int

const (
	depositClosed depositMode = iota
	depositOpen
	withdrawOpen
)

// depositDoneMsg reports a deposit or withdrawal. base is the signed amount
// sent, in the base currency.
type depositDoneMsg struct {
	base    float64
	balance float64
	err     error
}

type indicesMsg struct {
	gen     uint64
	indices []api.Index
	err     error
}

type dashboardModel struct {
	quotes  map[string]api.Quote
	markets []api.Market
	indices []api.Index

	quoteLoop  *poll.Loop
	marketLoop *poll.Loop
	indexLoop  *poll.Loop
	loops      poll.Group

	mode   depositMode
	amount textinput.Model
	busy   bool
	err    string
	status string
}

func newDashboard(d Deps) dashboardModel {
	amount := textinput.New()
	amount.Placeholder = "amount"
	amount.CharLimit = 16

	quotes := poll.NewLoop("dashboard.quotes", d.Intervals.Quote, d.Visibility)
	markets := poll.NewLoop("dashboard.markets", d.Intervals.Markets, d.Visibility)
	indices := poll.NewLoop("dashboard.indices", d.Intervals.Indices, d.Visibility)

	return dashboardModel{
		quotes:     map[string]api.Quote{},
		quoteLoop:  quotes,
		marketLoop: markets,
		indexLoop:  indices,
		loops:      poll.Group{quotes, markets, indices},
		amount:     amount,
	}
}

func (m *dashboardModel) enter(user *api.User) tea.Cmd {
	m.quotes = map[string]api.Quote{}
	m.markets = nil
	m.mode = depositClosed
	m.amount.Blur()
	m.busy = false
	m.err, m.status = "", ""

	return tea.Batch(
		m.marketLoop.Start("all"),
		m.indexLoop.Start("all"),
		m.quoteLoop.Start(holdingScope(user)),
	)
}

func holdingScope(user *api.User) string {
	if user == nil {
		return ""
	}
	return strings.Join(user.Symbols(), ",")
}

// holdingsChanged rescopes the quote loop when the held symbols change.
func (m *dashboardModel) holdingsChanged(user *api.User) tea.Cmd {
	scope := holdingScope(user)
	if m.quoteLoop.Running() && m.quoteLoop.Scope() == scope {
		return nil
	}
	return m.quoteLoop.Start(scope)
}

func (m dashboardModel) modal() bool {
	return m.mode != depositClosed
}

// pollSymbols picks the held symbols to quote on this tick: symbols without a
// quote yet, then symbols on an open exchange.
func (m dashboardModel) pollSymbols(user *api.User) []string {
	if user == nil {
		return nil
	}
	var known []api.Quote
	var out []string
	for _, sym := range user.Symbols() {
		if q, ok := m.quotes[sym]; ok {
			known = append(known, q)
			continue
		}
		out = append(out, sym)
	}
	return append(out, poll.OpenSymbols(known, m.markets)...)
}

func (m dashboardModel) update(msg tea.Msg, d Deps, user *api.User) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case poll.TickMsg:
		return m.tick(msg, d, user)

	case quotesMsg:
		if accepts(m.quoteLoop, msg.loop, msg.gen) {
			for _, q := range msg.quotes {
				if old, ok := m.quotes[q.Symbol]; ok {
					q = old.MergePrice(q)
				}
				m.quotes[q.Symbol] = q
			}
		}
		return m, nil

	case marketsMsg:
		if accepts(m.marketLoop, msg.loop, msg.gen) && msg.err == nil {
			m.markets = msg.markets
		}
		return m, nil

	case indicesMsg:
		if m.indexLoop.Accept(msg.gen) && msg.err == nil {
			m.indices = msg.indices
		}
		return m, nil

	case depositDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Deposit failed")
			return m, nil
		}
		m.mode = depositClosed
		m.amount.Blur()
		m.err = ""
		verb := "Deposited"
		if msg.base < 0 {
			verb = "Withdrew"
		}
		m.status = fmt.Sprintf("%s %s", verb, d.Currency.Format(math.Abs(msg.base), currency.Decimals))
		return m, accountChanged

	case tea.KeyMsg:
		if m.modal() {
			return m.updateForm(msg, d)
		}
		switch {
		case msg.String() == "d":
			return m.openForm(depositOpen)
		case msg.String() == "w":
			return m.openForm(withdrawOpen)
		case key.Matches(msg, keys.Refresh):
			m.err = ""
			return m, tea.Batch(accountChanged, m.marketLoop.Start("all"), m.indexLoop.Start("all"))
		}
	}
	return m, nil
}

func (m dashboardModel) tick(msg poll.TickMsg, d Deps, user *api.User) (dashboardModel, tea.Cmd) {
	switch {
	case m.quoteLoop.Owns(msg):
		fetch, next := m.quoteLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		return m, tea.Batch(next, fetchQuotesCmd(d.Client, m.quoteLoop, m.pollSymbols(user)))

	case m.marketLoop.Owns(msg):
		fetch, next := m.marketLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		return m, tea.Batch(next, fetchMarketsCmd(d.Client, m.marketLoop))

	case m.indexLoop.Owns(msg):
		fetch, next := m.indexLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		return m, tea.Batch(next, fetchIndicesCmd(d.Client, m.indexLoop.Gen()))
	}
	return m, nil
}

func (m dashboardModel) openForm(mode depositMode) (dashboardModel, tea.Cmd) {
	m.mode = mode
	m.err, m.status = "", ""
	m.amount.SetValue("")
	return m, m.amount.Focus()
}

func (m dashboardModel) updateForm(msg tea.KeyMsg, d Deps) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		if m.busy {
			return m, nil
		}
		m.mode = depositClosed
		m.amount.Blur()
		m.err = ""
		return m, nil

	case key.Matches(msg, keys.Enter):
		if m.busy {
			return m, nil
		}
		amount, err := parseAmount(m.amount.Value())
		if err != nil {
			m.err = api.Detail(err)
			return m, nil
		}
		// Typed in the display currency, sent in base.
		base := d.Currency.ToBase(amount, d.Currency.Selected())
		if m.mode == withdrawOpen {
			base = -base
		}
		m.busy = true
		m.err = ""
		return m, depositCmd(d.Client, base)
	}

	var cmd tea.Cmd
	m.amount, cmd = m.amount.Update(msg)
	return m, cmd
}

// parseAmount reads a positive amount typed by the user.
func parseAmount(s string) (float64, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, api.Invalid("Enter an amount")
	}
	if !v.IsPositive() {
		return 0, api.Invalid("Amount must be positive")
	}
	return v.InexactFloat64(), nil
}

func depositCmd(c *api.Client, base float64) tea.Cmd {
	return func() tea.Msg {
		balance, err := c.Deposit(context.Background(), base)
		return depositDoneMsg{base: base, balance: balance, err: err}
	}
}

func fetchIndicesCmd(c *api.Client, gen uint64) tea.Cmd {
	return func() tea.Msg {
		indices, err := c.Indices(context.Background())
		if err != nil {
			glog.V(1).Infof("dashboard.indices: %v", err)
		}
		return indicesMsg{gen: gen, indices: indices, err: err}
	}
}

var positionWidths = []int{10, 10, 14, 16, 16}

func (m dashboardModel) view(d Deps, user *api.User) string {
	var b strings.Builder
	cur := d.Currency

	feedback(&b, m.err, m.status)

	if user == nil {
		b.WriteString(ui.LoadingStyle.Render("🔄 Loading account...") + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "💰 Cash balance: %s\n\n", ui.ValueStyle.Render(cur.Format(user.Balance, currency.Decimals)))

	if m.mode != depositClosed {
		title := "Deposit"
		if m.mode == withdrawOpen {
			title = "Withdraw"
		}
		fmt.Fprintf(&b, "%s (%s)\n%s\n", title, cur.Selected(), m.amount.View())
		if m.busy {
			b.WriteString(ui.LoadingStyle.Render("🔄 Submitting...") + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("📈 POSITIONS\n")
	if len(user.Portfolio) == 0 {
		b.WriteString(ui.DisabledStyle.Render("No positions yet. Open the market to buy your first stock.") + "\n")
	} else {
		b.WriteString(header([]string{"SYMBOL", "QTY", "PRICE", "VALUE", "P/L"}, positionWidths) + "\n")
		for _, p := range user.Portfolio {
			native := p.Currency
			price := p.AvgPrice
			if q, ok := m.quotes[p.Symbol]; ok {
				if q.Currency != "" {
					native = q.Currency
				}
				price = q.PriceOr(p.AvgPrice)
			}
			value := price * p.Quantity
			pnl := (price - p.AvgPrice) * p.Quantity

			b.WriteString(row([]string{
				ui.ValueStyle.Render(p.Symbol),
				formatQty(p.Quantity),
				ui.FormatPrice(cur.FormatNative(&price, native, currency.Decimals)),
				ui.FormatMarketValue(cur.FormatConverted(value, native, currency.Decimals)),
				ui.Signed(pnl, cur.FormatConverted(pnl, native, currency.Decimals)),
			}, positionWidths) + "\n")
		}
	}

	if len(m.indices) > 0 {
		b.WriteString("\n🌍 INDICES\n")
		for _, idx := range m.indices {
			b.WriteString(row([]string{
				ui.ValueStyle.Render(idx.Name),
				fmt.Sprintf("%.2f", idx.Price),
				ui.FormatPercentage(idx.Change),
			}, []int{24, 12, 10}) + "\n")
		}
	}

	b.WriteString("\n" + marketStatusLine(m.markets))
	return b.String()
}

func (m dashboardModel) footer(d Deps) string {
	if m.modal() {
		return "Enter to submit • Esc to cancel"
	}
	return fmt.Sprintf("'d' deposit • 'w' withdraw • 'r' refresh • 'Esc' menu • Prices refresh every %s while markets are open", d.Intervals.Quote)
}

func marketStatusLine(markets []api.Market) string {
	if markets == nil {
		return ui.LoadingStyle.Render("⏳ Market status loading")
	}
	parts := make([]string, 0, len(markets))
	for _, mk := range markets {
		dot := "🔴"
		if mk.IsOpen {
			dot = "🟢"
		}
		parts = append(parts, dot+" "+mk.Exchange)
	}
	return "Markets: " + strings.Join(parts, "  ")
}
