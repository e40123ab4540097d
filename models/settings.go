package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/storage"
	"tradesim/ui"
)

// Settings steps
const (
	settingsList = iota
	settingsUsername
	settingsPassword
	settingsDisplayName
)

// DisplayCurrencies are the currencies offered by the picker.
var DisplayCurrencies = []string{"USD", "RUB", "EUR", "GBP", "CNY"}

var settingsActions = []string{"Change username", "Change password", "Change display name", "Log out"}

type usernameChangedMsg struct {
	resp *api.UsernameResponse
	err  error
}

type passwordChangedMsg struct {
	err error
}

type displayNameChangedMsg struct {
	name string
	err  error
}

type settingsModel struct {
	cursor      int
	step        int
	username    textinput.Model
	oldPassword textinput.Model
	newPassword textinput.Model
	displayName textinput.Model
	focus       int
	busy        bool
	err         string
	status      string
}

func newSettings() settingsModel {
	username := textinput.New()
	username.Placeholder = "new username"
	username.CharLimit = 32

	oldPassword := textinput.New()
	oldPassword.Placeholder = "current password"
	oldPassword.CharLimit = 64
	oldPassword.EchoMode = textinput.EchoPassword
	oldPassword.EchoCharacter = '•'

	newPassword := textinput.New()
	newPassword.Placeholder = "new password"
	newPassword.CharLimit = 64
	newPassword.EchoMode = textinput.EchoPassword
	newPassword.EchoCharacter = '•'

	displayName := textinput.New()
	displayName.Placeholder = "display name"
	displayName.CharLimit = 48

	return settingsModel{
		username:    username,
		oldPassword: oldPassword,
		newPassword: newPassword,
		displayName: displayName,
	}
}

func (m *settingsModel) enter(d Deps) tea.Cmd {
	m.step = settingsList
	m.busy = false
	m.err, m.status = "", ""
	m.cursor = 0
	for i, c := range DisplayCurrencies {
		if c == d.Currency.Selected() {
			m.cursor = i
		}
	}
	return nil
}

func (m settingsModel) modal() bool {
	return m.step != settingsList
}

func (m settingsModel) items() int {
	return len(DisplayCurrencies) + len(settingsActions)
}

func (m settingsModel) update(msg tea.Msg, d Deps) (settingsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case usernameChangedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to change username")
			return m, nil
		}
		if err := d.Prefs.Set(storage.KeyToken, msg.resp.Token); err != nil {
			glog.Errorf("Failed to save session: %v", err)
		}
		if err := d.Prefs.Set(storage.KeyUsername, msg.resp.Username); err != nil {
			glog.Errorf("Failed to save session: %v", err)
		}
		m.closeForm()
		m.status = "Username changed to " + msg.resp.Username
		return m, accountChanged

	case passwordChangedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to change password")
			return m, nil
		}
		m.closeForm()
		m.status = "Password changed"
		return m, nil

	case displayNameChangedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to change display name")
			return m, nil
		}
		m.closeForm()
		m.status = fmt.Sprintf("Display name set to %q", msg.name)
		return m, accountChanged

	case tea.KeyMsg:
		if m.step == settingsList {
			return m.handleListKeys(msg, d)
		}
		return m.handleFormKeys(msg, d)
	}

	return m.updateInput(msg)
}

func (m settingsModel) handleListKeys(msg tea.KeyMsg, d Deps) (settingsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < m.items()-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Enter):
		return m.choose(d)
	}
	return m, nil
}

func (m settingsModel) choose(d Deps) (settingsModel, tea.Cmd) {
	m.err, m.status = "", ""

	if m.cursor < len(DisplayCurrencies) {
		code := DisplayCurrencies[m.cursor]
		if err := d.Currency.SetCurrency(code); err != nil {
			m.err = "Failed to save currency: " + err.Error()
			return m, nil
		}
		m.status = "Display currency: " + code
		return m, nil
	}

	switch m.cursor - len(DisplayCurrencies) {
	case 0:
		m.step = settingsUsername
		m.username.SetValue("")
		return m, m.username.Focus()
	case 1:
		m.step = settingsPassword
		m.focus = 0
		m.oldPassword.SetValue("")
		m.newPassword.SetValue("")
		m.newPassword.Blur()
		return m, m.oldPassword.Focus()
	case 2:
		m.step = settingsDisplayName
		m.displayName.SetValue("")
		return m, m.displayName.Focus()
	default:
		return m, logout
	}
}

func (m settingsModel) handleFormKeys(msg tea.KeyMsg, d Deps) (settingsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		if !m.busy {
			m.closeForm()
			m.err = ""
		}
		return m, nil

	case m.step == settingsPassword && msg.String() == "tab":
		return m, m.focusPassword(1 - m.focus)

	case key.Matches(msg, keys.Enter):
		if m.busy {
			return m, nil
		}
		return m.submit(d)
	}
	return m.updateInput(msg)
}

func (m *settingsModel) focusPassword(i int) tea.Cmd {
	m.focus = i
	if i == 0 {
		m.newPassword.Blur()
		return m.oldPassword.Focus()
	}
	m.oldPassword.Blur()
	return m.newPassword.Focus()
}

func (m settingsModel) submit(d Deps) (settingsModel, tea.Cmd) {
	c := d.Client
	switch m.step {
	case settingsUsername:
		name := strings.TrimSpace(m.username.Value())
		if len(name) < minUsername {
			m.err = "Username must be at least 3 characters"
			return m, nil
		}
		m.busy, m.err = true, ""
		return m, func() tea.Msg {
			resp, err := c.ChangeUsername(context.Background(), name)
			return usernameChangedMsg{resp: resp, err: err}
		}

	case settingsPassword:
		if m.focus == 0 {
			return m, m.focusPassword(1)
		}
		oldPassword, newPassword := m.oldPassword.Value(), m.newPassword.Value()
		switch {
		case oldPassword == "":
			m.err = "Enter your current password"
			return m, nil
		case len(newPassword) < minPassword:
			m.err = "Password must be at least 6 characters"
			return m, nil
		}
		m.busy, m.err = true, ""
		return m, func() tea.Msg {
			return passwordChangedMsg{err: c.ChangePassword(context.Background(), oldPassword, newPassword)}
		}

	case settingsDisplayName:
		name := strings.TrimSpace(m.displayName.Value())
		m.busy, m.err = true, ""
		return m, func() tea.Msg {
			got, err := c.ChangeDisplayName(context.Background(), name)
			return displayNameChangedMsg{name: got, err: err}
		}
	}
	return m, nil
}

func (m *settingsModel) closeForm() {
	m.step = settingsList
	m.username.Blur()
	m.oldPassword.Blur()
	m.newPassword.Blur()
	m.displayName.Blur()
}

// updateInput feeds msg to the focused input.
func (m settingsModel) updateInput(msg tea.Msg) (settingsModel, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case settingsUsername:
		m.username, cmd = m.username.Update(msg)
	case settingsPassword:
		if m.focus == 0 {
			m.oldPassword, cmd = m.oldPassword.Update(msg)
		} else {
			m.newPassword, cmd = m.newPassword.Update(msg)
		}
	case settingsDisplayName:
		m.displayName, cmd = m.displayName.Update(msg)
	}
	return m, cmd
}

func (m settingsModel) view(d Deps, user *api.User) string {
	var b strings.Builder
	feedback(&b, m.err, m.status)

	if user != nil {
		fmt.Fprintf(&b, "Logged in as %s", ui.ValueStyle.Render(user.Username))
		if user.DisplayName != "" {
			fmt.Fprintf(&b, " (%s)", user.DisplayName)
		}
		b.WriteString("\n\n")
	}

	switch m.step {
	case settingsUsername:
		b.WriteString("New username\n" + m.username.View() + "\n")
		return b.String()
	case settingsPassword:
		b.WriteString("Current password\n" + m.oldPassword.View() + "\n\n")
		b.WriteString("New password\n" + m.newPassword.View() + "\n")
		return b.String()
	case settingsDisplayName:
		b.WriteString("Display name\n" + m.displayName.View() + "\n")
		return b.String()
	}

	b.WriteString("💱 DISPLAY CURRENCY\n")
	selected := d.Currency.Selected()
	for i, code := range DisplayCurrencies {
		mark := "  "
		if code == selected {
			mark = "✓ "
		}
		b.WriteString(m.item(i, fmt.Sprintf("%s%s  %s", mark, code, currency.Symbol(code))) + "\n")
	}

	b.WriteString("\n👤 ACCOUNT\n")
	for i, action := range settingsActions {
		b.WriteString(m.item(len(DisplayCurrencies)+i, action) + "\n")
	}
	return b.String()
}

func (m settingsModel) item(i int, label string) string {
	if i == m.cursor {
		return "> " + ui.SelectedStyle.Render(label)
	}
	return "  " + ui.UnselectedStyle.Render(label)
}

func (m settingsModel) footer() string {
	switch m.step {
	case settingsList:
		return "↑/↓ to navigate • Enter to select • 'Esc' to return to menu"
	case settingsPassword:
		return "Tab to switch field • Enter to save • Esc to cancel"
	}
	return "Enter to save • Esc to cancel"
}
