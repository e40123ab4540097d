package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Main styles
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Background(lipgloss.Color("#000000")).
		Padding(1, 2).
		Align(lipgloss.Center)

	MenuStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2).
		MarginTop(1)

	SelectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EE6FF8")).
		Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA"))

	DisabledStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666"))

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(lipgloss.Color("#874BFD"))

	// Data display styles
	ValueStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA"))

	PositiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Bold(true)

	NegativeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F87")).
		Bold(true)

	NeutralStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA"))

	// Table styles
	TableHeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Align(lipgloss.Center)

	// Loading styles
	LoadingStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")).
		Bold(true)

	TabStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#874BFD")).
		Padding(0, 1)

	// Portfolio specific styles
	PriceStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")).
		Bold(true)

	MarketValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00CED1")).
		Bold(true)
)

// Signed colors an already formatted amount by the sign of value.
func Signed(value float64, formatted string) string {
	switch {
	case value > 0:
		return PositiveStyle.Render("+" + formatted)
	case value < 0:
		return NegativeStyle.Render(formatted)
	}
	return NeutralStyle.Render(formatted)
}

func FormatPercentage(value float64) string {
	if value >= 0 {
		return PositiveStyle.Render(fmt.Sprintf("+%.2f%%", value))
	}
	return NegativeStyle.Render(fmt.Sprintf("%.2f%%", value))
}

// FormatCompact shortens large counts such as volume: 1.2K, 3.4M, 5.6B.
func FormatCompact(value float64) string {
	switch {
	case value >= 1e12:
		return fmt.Sprintf("%.1fT", value/1e12)
	case value >= 1e9:
		return fmt.Sprintf("%.1fB", value/1e9)
	case value >= 1e6:
		return fmt.Sprintf("%.1fM", value/1e6)
	case value >= 1e3:
		return fmt.Sprintf("%.1fK", value/1e3)
	}
	return fmt.Sprintf("%.0f", value)
}

func FormatPrice(formatted string) string {
	return PriceStyle.Render(formatted)
}

func FormatMarketValue(formatted string) string {
	return MarketValueStyle.Render(formatted)
}

// Tabs renders a tab bar with the active tab highlighted.
func Tabs(names []string, active int) string {
	parts := make([]string, len(names))
	for i, n := range names {
		if i == active {
			parts[i] = ActiveTabStyle.Render(n)
		} else {
			parts[i] = TabStyle.Render(n)
		}
	}
	return strings.Join(parts, " ")
}

// Pad right-pads s to width cells, ignoring ANSI styling.
func Pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
