package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/poll"
	"tradesim/trading"
	"tradesim/ui"
)

// Trading steps
const (
	tradeClosed = iota
	tradeQuantity
	tradeConfirm
)

type stockLoadedMsg struct {
	gen    uint64
	detail *api.StockDetail
	err    error
}

type historyMsg struct {
	symbol string
	period string
	points []api.HistoryPoint
	err    error
}

type tradeDoneMsg struct {
	order  trading.Order
	result *trading.Result
	err    error
}

type copiedMsg struct {
	text string
	err  error
}

type stockModel struct {
	symbol  string
	from    int
	quote   api.Quote
	loaded  bool
	history []api.HistoryPoint
	period  int
	histErr string

	quoteLoop *poll.Loop
	loops     poll.Group

	step   int
	action string
	qty    textinput.Model
	order  trading.Order
	busy   bool
	err    string
	status string
}

func newStock(d Deps) stockModel {
	qty := textinput.New()
	qty.Placeholder = "quantity"
	qty.CharLimit = 16

	period := 0
	for i, p := range api.Periods {
		if p == api.DefaultPeriod {
			period = i
		}
	}

	quote := poll.NewLoop("stock.quote", d.Intervals.Quote, d.Visibility)
	return stockModel{
		from:      StateMarket,
		period:    period,
		quoteLoop: quote,
		loops:     poll.Group{quote},
		qty:       qty,
		action:    api.ActionBuy,
	}
}

func (m *stockModel) enter(d Deps, symbol string, from int) tea.Cmd {
	m.symbol = api.NormalizeSymbol(symbol)
	m.from = from
	if from == StateStock || from == StateAuth {
		m.from = StateMenu
	}
	m.quote = api.Quote{Symbol: m.symbol}
	m.loaded = false
	m.history, m.histErr = nil, ""
	m.step = tradeClosed
	m.qty.Blur()
	m.busy = false
	m.err, m.status = "", ""

	return tea.Batch(
		m.quoteLoop.Start(m.symbol),
		loadHistoryCmd(d.Client, m.symbol, api.Periods[m.period]),
	)
}

func (m stockModel) modal() bool {
	return m.step != tradeClosed
}

func (m stockModel) update(msg tea.Msg, d Deps) (stockModel, tea.Cmd) {
	switch msg := msg.(type) {
	case poll.TickMsg:
		fetch, next := m.quoteLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		if !m.loaded {
			return m, tea.Batch(next, loadStockCmd(d.Client, m.symbol, m.quoteLoop.Gen()))
		}
		return m, tea.Batch(next, fetchQuotesCmd(d.Client, m.quoteLoop, []string{m.symbol}))

	case stockLoadedMsg:
		if !m.quoteLoop.Accept(msg.gen) {
			return m, nil
		}
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to load "+m.symbol)
			return m, nil
		}
		m.quote = msg.detail.Quote
		m.loaded = true
		m.err = ""
		return m, nil

	case quotesMsg:
		if !accepts(m.quoteLoop, msg.loop, msg.gen) {
			return m, nil
		}
		for _, q := range msg.quotes {
			if q.Symbol == m.symbol {
				m.quote = m.quote.MergePrice(q)
			}
		}
		return m, nil

	case historyMsg:
		if msg.symbol != m.symbol || msg.period != api.Periods[m.period] {
			return m, nil
		}
		if msg.err != nil {
			m.histErr = errorText(msg.err, "Chart unavailable")
			return m, nil
		}
		m.history, m.histErr = msg.points, ""
		return m, nil

	case tradeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = trading.Message(msg.err)
			m.step = tradeQuantity
			return m, m.qty.Focus()
		}
		m.step = tradeClosed
		m.qty.Blur()
		m.err = ""
		verb := "Bought"
		if msg.order.Action == api.ActionSell {
			verb = "Sold"
		}
		m.status = fmt.Sprintf("%s %s %s at %s", verb, formatQty(msg.order.Quantity), msg.order.Symbol,
			d.Currency.Format(msg.result.Price, currency.Decimals))
		return m, accountChanged

	case copiedMsg:
		if msg.err != nil {
			m.err = "Clipboard unavailable: " + msg.err.Error()
			return m, nil
		}
		m.status = "📋 Copied: " + msg.text
		return m, nil

	case tea.KeyMsg:
		switch m.step {
		case tradeQuantity:
			return m.updateQuantity(msg)
		case tradeConfirm:
			return m.updateConfirm(msg, d)
		}
		return m.handleKeys(msg, d)
	}

	if m.step == tradeQuantity {
		var cmd tea.Cmd
		m.qty, cmd = m.qty.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m stockModel) handleKeys(msg tea.KeyMsg, d Deps) (stockModel, tea.Cmd) {
	switch s := msg.String(); {
	case s == "b":
		return m.openTrade(api.ActionBuy)
	case s == "s":
		return m.openTrade(api.ActionSell)
	case s == "y":
		return m, copyCmd(m.quoteLine(d))
	case key.Matches(msg, keys.Refresh):
		m.loaded = false
		m.err = ""
		return m, tea.Batch(m.quoteLoop.Start(m.symbol), loadHistoryCmd(d.Client, m.symbol, api.Periods[m.period]))
	case key.Matches(msg, keys.Left):
		return m.setPeriod(m.period-1, d)
	case key.Matches(msg, keys.Right):
		return m.setPeriod(m.period+1, d)
	}

	if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(api.Periods) {
		return m.setPeriod(n-1, d)
	}
	return m, nil
}

func (m stockModel) setPeriod(i int, d Deps) (stockModel, tea.Cmd) {
	if i < 0 || i >= len(api.Periods) || i == m.period {
		return m, nil
	}
	m.period = i
	m.history, m.histErr = nil, ""
	return m, loadHistoryCmd(d.Client, m.symbol, api.Periods[i])
}

func (m stockModel) openTrade(action string) (stockModel, tea.Cmd) {
	m.action = action
	m.step = tradeQuantity
	m.err, m.status = "", ""
	m.qty.SetValue("")
	return m, m.qty.Focus()
}

func (m stockModel) updateQuantity(msg tea.KeyMsg) (stockModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.step = tradeClosed
		m.qty.Blur()
		m.err = ""
		return m, nil

	case msg.String() == "tab":
		if m.action == api.ActionBuy {
			m.action = api.ActionSell
		} else {
			m.action = api.ActionBuy
		}
		return m, nil

	case key.Matches(msg, keys.Enter):
		order, err := trading.ParseOrder(m.symbol, m.qty.Value(), m.action)
		if err != nil {
			m.err = trading.Message(err)
			return m, nil
		}
		m.order = order
		m.err = ""
		m.step = tradeConfirm
		m.qty.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.qty, cmd = m.qty.Update(msg)
	return m, cmd
}

func (m stockModel) updateConfirm(msg tea.KeyMsg, d Deps) (stockModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Confirm):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, executeCmd(d.Client, m.order)

	case key.Matches(msg, keys.Cancel):
		if m.busy {
			return m, nil
		}
		m.step = tradeQuantity
		return m, m.qty.Focus()
	}
	return m, nil
}

// quoteLine is the one line summary copied to the clipboard.
func (m stockModel) quoteLine(d Deps) string {
	price := d.Currency.FormatNative(m.quote.Price, m.quote.Currency, currency.Decimals)
	line := fmt.Sprintf("%s %s (%+.2f%%)", m.symbol, price, m.quote.Change)
	if m.quote.Name != "" {
		line = m.quote.Name + " " + line
	}
	return line
}

func loadStockCmd(c *api.Client, symbol string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		detail, err := c.Stock(context.Background(), symbol)
		return stockLoadedMsg{gen: gen, detail: detail, err: err}
	}
}

func loadHistoryCmd(c *api.Client, symbol, period string) tea.Cmd {
	return func() tea.Msg {
		points, err := c.History(context.Background(), symbol, period)
		return historyMsg{symbol: symbol, period: period, points: points, err: err}
	}
}

func executeCmd(ex trading.Executor, order trading.Order) tea.Cmd {
	return func() tea.Msg {
		res, err := trading.Execute(context.Background(), ex, order)
		return tradeDoneMsg{order: order, result: res, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{text: text, err: clipboard.WriteAll(text)}
	}
}

func (m stockModel) view(d Deps, user *api.User, width int) string {
	var b strings.Builder
	cur := d.Currency
	q := m.quote

	feedback(&b, m.err, m.status)

	if !m.loaded {
		if m.err == "" {
			b.WriteString(ui.LoadingStyle.Render("🔄 Loading "+m.symbol+"...") + "\n")
		}
		return b.String()
	}

	title := ui.ValueStyle.Render(m.symbol)
	if q.Name != "" {
		title += "  " + q.Name
	}
	if q.Exchange != "" {
		title += "  " + ui.DisabledStyle.Render(q.Exchange)
	}
	b.WriteString(title + "\n\n")

	fmt.Fprintf(&b, "Price: %s  %s\n",
		ui.FormatPrice(cur.FormatNative(q.Price, q.Currency, currency.Decimals)),
		ui.FormatPercentage(q.Change))
	if q.Open != 0 || q.High != 0 || q.Low != 0 {
		fmt.Fprintf(&b, "Open %s • High %s • Low %s • Prev close %s • Volume %s\n",
			cur.FormatNative(&q.Open, q.Currency, currency.Decimals),
			cur.FormatNative(&q.High, q.Currency, currency.Decimals),
			cur.FormatNative(&q.Low, q.Currency, currency.Decimals),
			cur.FormatNative(&q.PrevClose, q.Currency, currency.Decimals),
			ui.FormatCompact(q.Volume))
	}

	b.WriteString("\n" + ui.Tabs(api.Periods, m.period) + "\n")
	switch {
	case m.histErr != "":
		b.WriteString(ui.NegativeStyle.Render(m.histErr) + "\n")
	case m.history == nil:
		b.WriteString(ui.LoadingStyle.Render("🔄 Loading chart...") + "\n")
	case len(m.history) == 0:
		b.WriteString(ui.DisabledStyle.Render("No history for this period.") + "\n")
	default:
		b.WriteString(m.chartView(d, width) + "\n")
	}

	if user != nil {
		for _, p := range user.Portfolio {
			if p.Symbol == m.symbol {
				avg := p.AvgPrice
				fmt.Fprintf(&b, "\nYou hold %s at an average of %s\n", formatQty(p.Quantity), cur.FormatNative(&avg, p.Currency, currency.Decimals))
			}
		}
	}

	if m.step != tradeClosed {
		b.WriteString("\n" + m.tradeView(d))
	}
	return b.String()
}

func (m stockModel) chartView(d Deps, width int) string {
	chartWidth := width - 12
	if chartWidth <= 0 || chartWidth > 120 {
		chartWidth = 60
	}
	values := make([]float64, len(m.history))
	lo, hi := m.history[0].Price, m.history[0].Price
	for i, p := range m.history {
		values[i] = p.Price
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}
	first, last := m.history[0], m.history[len(m.history)-1]
	return fmt.Sprintf("%s\n%s → %s • low %s • high %s",
		ui.Chart(values, chartWidth),
		first.Date, last.Date,
		d.Currency.FormatNative(&lo, m.quote.Currency, currency.Decimals),
		d.Currency.FormatNative(&hi, m.quote.Currency, currency.Decimals))
}

func (m stockModel) tradeView(d Deps) string {
	var b strings.Builder
	cur := d.Currency

	side := ui.PositiveStyle.Render("BUY")
	if m.action == api.ActionSell {
		side = ui.NegativeStyle.Render("SELL")
	}

	if m.step == tradeConfirm {
		est := trading.EstimateCost(formatQty(m.order.Quantity), m.quote.PriceOr(0))
		fmt.Fprintf(&b, "🛒 Confirm: %s %s %s for about %s? (y/n)\n",
			side, formatQty(m.order.Quantity), m.symbol, cur.FormatNative(&est, m.quote.Currency, currency.Decimals))
		if m.busy {
			b.WriteString(ui.LoadingStyle.Render("🔄 Placing order...") + "\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "🛒 %s %s\n", side, m.symbol)
	b.WriteString("Quantity: " + m.qty.View() + "\n")
	est := trading.EstimateCost(m.qty.Value(), m.quote.PriceOr(0))
	fmt.Fprintf(&b, "Estimated cost: %s\n", cur.FormatNative(&est, m.quote.Currency, currency.Decimals))
	return b.String()
}

func (m stockModel) footer() string {
	switch m.step {
	case tradeQuantity:
		return "Enter to review • Tab switches buy/sell • Esc to cancel"
	case tradeConfirm:
		return "'y' to place the order • 'n' to edit"
	}
	return "'b' buy • 's' sell • ←/→ or 1-7 period • 'y' copy quote • 'r' refresh • 'Esc' back"
}
