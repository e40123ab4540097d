package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/ui"
)

type reportMsg struct {
	report *api.Report
	txs    []api.Transaction
	err    error
}

type reportsModel struct {
	report  *api.Report
	txs     []api.Transaction
	loading bool
	err     string
	vp      viewport.Model
}

func newReports() reportsModel {
	return reportsModel{vp: viewport.New(74, 16)}
}

func (m *reportsModel) enter(d Deps, width, height int) tea.Cmd {
	m.loading = true
	m.err = ""
	m.resize(width, height)
	return loadReportCmd(d.Client)
}

func (m *reportsModel) resize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	m.vp.Width = max(width-6, 20)
	m.vp.Height = max(height-10, 5)
}

func (m *reportsModel) render(d Deps) {
	if m.report == nil {
		return
	}
	md := ReportMarkdown(m.report, m.txs, d.Currency)
	out, err := RenderMarkdown(md, m.vp.Width)
	if err != nil {
		glog.V(1).Infof("reports: render: %v", err)
		out = md
	}
	m.vp.SetContent(out)
}

func (m reportsModel) update(msg tea.Msg, d Deps) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportMsg:
		m.loading = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to load report")
			return m, nil
		}
		m.err = ""
		m.report, m.txs = msg.report, msg.txs
		m.render(d)
		m.vp.GotoTop()
		return m, nil

	case currencyMsg:
		m.render(d)
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.render(d)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Refresh) {
			m.loading = true
			m.err = ""
			return m, loadReportCmd(d.Client)
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func loadReportCmd(c *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		report, err := c.Report(ctx)
		if err != nil {
			return reportMsg{err: err}
		}
		txs, err := c.Transactions(ctx)
		return reportMsg{report: report, txs: txs, err: err}
	}
}

func (m reportsModel) view() string {
	var b strings.Builder
	feedback(&b, m.err, "")
	switch {
	case m.loading && m.report == nil:
		b.WriteString(ui.LoadingStyle.Render("🔄 Loading report...") + "\n")
	case m.report != nil:
		b.WriteString(m.vp.View())
		fmt.Fprintf(&b, "\n%3.0f%%", m.vp.ScrollPercent()*100)
	}
	return b.String()
}

func (m reportsModel) footer() string {
	return "↑/↓ scroll • 'r' refresh • 'Esc' to return to menu"
}

// ReportMarkdown renders a portfolio report as markdown. Totals and
// transaction amounts are in the base currency and shown in the selected
// one; holding prices are shown in the instrument's own currency.
func ReportMarkdown(r *api.Report, txs []api.Transaction, cur *currency.Service) string {
	money := func(v float64) string { return cur.Format(v, currency.Decimals) }
	signed := func(v float64) string {
		if v > 0 {
			return "+" + money(v)
		}
		return money(v)
	}

	var b strings.Builder
	b.WriteString("# Portfolio report\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Cash | %s |\n", money(r.Balance))
	fmt.Fprintf(&b, "| Invested | %s |\n", money(r.TotalInvested))
	fmt.Fprintf(&b, "| Current value | %s |\n", money(r.TotalCurrent))
	fmt.Fprintf(&b, "| Profit | %s |\n", signed(r.TotalProfit))
	fmt.Fprintf(&b, "| Net worth | %s |\n\n", money(r.Balance+r.TotalCurrent))

	b.WriteString("## Holdings\n\n")
	if len(r.Holdings) == 0 {
		b.WriteString("No open positions.\n\n")
	} else {
		b.WriteString("| Symbol | Qty | Avg price | Price | Invested | Current | Profit | % |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, h := range r.Holdings {
			avg, price := h.AvgPrice, h.CurrentPrice
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %+.2f%% |\n",
				h.Symbol, formatQty(h.Quantity),
				cur.FormatNative(&avg, h.Currency, currency.Decimals),
				cur.FormatNative(&price, h.Currency, currency.Decimals),
				money(h.Invested), money(h.Current), signed(h.Profit), h.ProfitPercent)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Transactions\n\n")
	if len(txs) == 0 {
		b.WriteString("No transactions yet.\n")
		return b.String()
	}
	b.WriteString("| Date | Action | Symbol | Qty | Price | Total |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			t.Date, t.Action, t.Symbol, formatQty(t.Quantity), money(t.Price), money(t.Total))
	}
	return b.String()
}
