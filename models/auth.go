package models

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tradesim/api"
	"tradesim/ui"
)

const (
	minUsername = 3
	minPassword = 6
)

type authDoneMsg struct {
	username string
	token    string
	err      error
}

type authModel struct {
	register bool
	username textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	err      string
}

func newAuth() authModel {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return authModel{username: username, password: password}
}

func (m *authModel) init() tea.Cmd {
	m.focus = 0
	m.password.Blur()
	return m.username.Focus()
}

func (m *authModel) focusField() tea.Cmd {
	if m.focus == 0 {
		m.password.Blur()
		return m.username.Focus()
	}
	m.username.Blur()
	return m.password.Focus()
}

func (m authModel) update(msg tea.Msg, d Deps) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Login failed")
			return m, nil
		}
		m.err = ""
		return m, func() tea.Msg { return loggedInMsg{username: msg.username, token: msg.token} }

	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+t":
			m.register = !m.register
			m.err = ""
			return m, nil

		case key.Matches(msg, keys.NextField):
			m.focus = 1 - m.focus
			return m, m.focusField()

		case key.Matches(msg, keys.Enter):
			if m.focus == 0 {
				m.focus = 1
				return m, m.focusField()
			}
			return m.submit(d)
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

// submit validates the form locally before anything is sent.
func (m authModel) submit(d Deps) (authModel, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	username := strings.TrimSpace(m.username.Value())
	password := m.password.Value()

	switch {
	case len(username) < minUsername:
		m.err = "Username must be at least 3 characters"
		return m, nil
	case len(password) < minPassword:
		m.err = "Password must be at least 6 characters"
		return m, nil
	}

	m.busy = true
	m.err = ""
	return m, authCmd(d.Client, username, password, m.register)
}

func authCmd(c *api.Client, username, password string, register bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if register {
			if err := c.Register(ctx, username, password); err != nil {
				return authDoneMsg{err: err}
			}
		}
		resp, err := c.Login(ctx, username, password)
		if err != nil {
			return authDoneMsg{err: err}
		}
		if resp.Username != "" {
			username = resp.Username
		}
		return authDoneMsg{username: username, token: resp.Token}
	}
}

func (m authModel) view() string {
	var b strings.Builder

	b.WriteString(ui.Tabs([]string{"Login", "Register"}, boolIndex(m.register)) + "\n\n")
	feedback(&b, m.err, "")

	if m.busy {
		b.WriteString(ui.LoadingStyle.Render("🔄 Signing in...") + "\n")
		return b.String()
	}

	b.WriteString("Username\n")
	b.WriteString(m.username.View() + "\n\n")
	b.WriteString("Password\n")
	b.WriteString(m.password.View() + "\n")
	return b.String()
}

func (m authModel) footer() string {
	mode := "Register"
	if m.register {
		mode = "Login"
	}
	return "Tab to switch field • Enter to submit • Ctrl+T to " + mode + " instead • Ctrl+C to quit"
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}
