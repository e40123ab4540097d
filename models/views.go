package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"tradesim/currency"
	"tradesim/ui"
)

// frame lays out the header, a titled content box and the footer.
func (m *AppModel) frame(title, body, footer string) string {
	var content strings.Builder

	if m.Error != "" {
		content.WriteString(ui.NegativeStyle.Render("❌ "+m.Error) + "\n\n")
	}
	content.WriteString(body)

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		m.headerView(),
		ui.HeaderStyle.Render(title),
		ui.MenuStyle.Render(content.String()),
		ui.InfoStyle.Render(footer))
}

// headerView shows who is logged in, the balance in the display currency and
// whether exchange rates have loaded.
func (m *AppModel) headerView() string {
	cur := m.deps.Currency

	user := ui.DisabledStyle.Render("not logged in")
	balance := ""
	if m.User != nil {
		name := m.User.Username
		if m.User.DisplayName != "" {
			name = m.User.DisplayName
		}
		user = ui.ValueStyle.Render("👤 " + name)
		balance = "💰 " + ui.PriceStyle.Render(cur.Format(m.User.Balance, currency.Decimals))
	}

	rates := ui.LoadingStyle.Render("⏳ rates loading")
	if !cur.Loading() {
		rates = ui.PositiveStyle.Render("✓ rates") + " " + cur.Selected()
	}
	return strings.Join([]string{user, balance, rates}, "   ")
}

func (m *AppModel) menuView() string {
	title := ui.TitleStyle.Render("📈 TRADESIM 📈\nTrading Simulator Terminal")

	var menu strings.Builder
	if m.Error != "" {
		menu.WriteString(ui.NegativeStyle.Render("❌ "+m.Error) + "\n\n")
	}
	menu.WriteString("Choose an option:\n\n")

	for i, choice := range m.Choices {
		cursor := " "
		if m.Cursor == i {
			cursor = ">"
			choice = ui.SelectedStyle.Render(choice)
		} else {
			choice = ui.UnselectedStyle.Render(choice)
		}
		fmt.Fprintf(&menu, "%s %s\n", cursor, choice)
	}

	footer := ui.InfoStyle.Render("\nPress 'q' to quit • Use ↑↓ to navigate • Enter to select • 1-7 shortcuts • '?' help")

	return fmt.Sprintf("%s\n%s\n\n%s\n%s", m.headerView(), title, ui.MenuStyle.Render(menu.String()), footer)
}

// feedback renders a screen's error and status lines.
func feedback(b *strings.Builder, err, status string) {
	if err != "" {
		b.WriteString(ui.NegativeStyle.Render("❌ "+err) + "\n\n")
	}
	if status != "" {
		b.WriteString(ui.PositiveStyle.Render("✅ "+status) + "\n\n")
	}
}

// row pads styled cells to fixed widths.
func row(cells []string, widths []int) string {
	var b strings.Builder
	for i, c := range cells {
		if i < len(widths) {
			c = ui.Pad(c, widths[i])
		}
		b.WriteString(c)
		b.WriteString(" ")
	}
	return strings.TrimRight(b.String(), " ")
}

func header(cells []string, widths []int) string {
	styled := make([]string, len(cells))
	for i, c := range cells {
		styled[i] = ui.TableHeaderStyle.Render(c)
	}
	return row(styled, widths)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RenderMarkdown renders md for a terminal of the given width.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
