package models

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *AppModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	// Forms and search boxes get every key, including q and esc.
	if m.modal() {
		return m, m.updateScreen(msg)
	}

	switch msg.String() {
	case "q":
		if m.State == StateMenu {
			return m.quit()
		}
		// Only quit from menu, otherwise go back
		return m, m.switchTo(StateMenu, "")

	case "esc":
		switch m.State {
		case StateMenu:
			return m, nil
		case StateStock:
			return m, m.switchTo(m.stock.from, "")
		}
		return m, m.switchTo(StateMenu, "")

	case "?":
		if m.State != StateHelp {
			return m, m.switchTo(StateHelp, "")
		}
		return m, nil
	}

	if m.State == StateMenu {
		return m.handleMenuKeys(msg)
	}
	return m, m.updateScreen(msg)
}

func (m *AppModel) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.Cursor < len(m.Choices)-1 {
			m.Cursor++
		}
		return m, nil

	case key.Matches(msg, keys.Enter):
		return m.selectChoice(m.Cursor)
	}

	// Number shortcuts
	if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.Choices) {
		m.Cursor = n - 1
		return m.selectChoice(m.Cursor)
	}
	return m, nil
}

func (m *AppModel) selectChoice(i int) (tea.Model, tea.Cmd) {
	switch target := m.targets[i]; target {
	case choiceLogout:
		return m, m.logout("")
	case choiceExit:
		return m.quit()
	default:
		return m, m.switchTo(target, "")
	}
}
