package models

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
)

type helpModel struct {
	rendered string
}

func (m *helpModel) enter(d Deps, width int) tea.Cmd {
	m.render(d, width)
	return nil
}

func (m *helpModel) render(d Deps, width int) {
	md := helpMarkdown(d)
	out, err := RenderMarkdown(md, max(width-6, 40))
	if err != nil {
		glog.V(1).Infof("help: render: %v", err)
		out = md
	}
	m.rendered = out
}

func (m helpModel) update(msg tea.Msg, d Deps) (helpModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.render(d, msg.Width)
	}
	return m, nil
}

func (m helpModel) view() string {
	return m.rendered
}

func helpMarkdown(d Deps) string {
	iv := d.Intervals
	return fmt.Sprintf(`# tradesim

A terminal client for the trading simulator.

## Everywhere

| Key | Action |
|---|---|
| esc | back |
| q | menu, or quit from the menu |
| ? | this help |
| ctrl+c | quit |

## Dashboard

| Key | Action |
|---|---|
| d / w | deposit / withdraw, typed in the display currency |
| r | refresh |

## Market

| Key | Action |
|---|---|
| ←/→ | switch category |
| enter | open stock |
| / | search |
| f | toggle favorite |
| n | load more |

## Stock

| Key | Action |
|---|---|
| b / s | buy / sell |
| ←/→, 1-7 | chart period |
| y | copy quote |

## Refresh

Quotes refresh every %s while their exchange is open, market status every
%s, lists and favorites every %s, indices every %s and exchange rates every
%s. Nothing refreshes while the terminal is out of focus.
`, iv.Quote, iv.Markets, iv.Favorites, iv.Indices, iv.Rates)
}
