// Package models implements the tradesim terminal UI.
package models

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"tradesim/api"
	"tradesim/config"
	"tradesim/currency"
	"tradesim/poll"
	"tradesim/storage"
)

// Deps are the services shared by every screen.
type Deps struct {
	Client     *api.Client
	Currency   *currency.Service
	Prefs      *storage.Store
	Intervals  config.Intervals
	Visibility *poll.Visibility
}

// App states
const (
	StateAuth = iota
	StateMenu
	StateDashboard
	StateMarket
	StateStock
	StateReports
	StateSettings
	StateHelp
)

// Menu actions that are not screens.
const (
	choiceLogout = -1
	choiceExit   = -2
)

type AppModel struct {
	State   int
	Choices []string
	Cursor  int
	Width   int
	Height  int
	User    *api.User
	Error   string

	deps        Deps
	targets     []int
	signals     <-chan currency.Signal
	unsubscribe currency.CancelFunc

	auth      authModel
	dashboard dashboardModel
	market    marketModel
	stock     stockModel
	reports   reportsModel
	settings  settingsModel
	help      helpModel
}

// NewAppModel builds the root model. A stored session token skips the login
// screen; the token is checked by the first account load.
func NewAppModel(d Deps) *AppModel {
	if d.Visibility == nil {
		d.Visibility = poll.NewVisibility()
	}
	signals, cancel := d.Currency.Subscribe()

	m := &AppModel{
		State: StateAuth,
		Choices: []string{
			"📊 Dashboard",
			"📈 Market",
			"📋 Reports",
			"⚙️  Settings",
			"❓ Help",
			"🔓 Logout",
			"🚪 Exit",
		},
		targets:     []int{StateDashboard, StateMarket, StateReports, StateSettings, StateHelp, choiceLogout, choiceExit},
		deps:        d,
		signals:     signals,
		unsubscribe: cancel,
		auth:        newAuth(),
		dashboard:   newDashboard(d),
		market:      newMarket(d),
		stock:       newStock(d),
		reports:     newReports(),
		settings:    newSettings(),
	}

	if token, ok := d.Prefs.Get(storage.KeyToken); ok && token != "" {
		d.Client.SetToken(token)
		m.State = StateMenu
	}
	return m
}

func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForCurrency(m.signals)}
	if m.State == StateAuth {
		cmds = append(cmds, m.auth.init())
	} else {
		cmds = append(cmds, loadUserCmd(m.deps.Client))
	}
	return tea.Batch(cmds...)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, m.updateScreen(msg)

	case tea.FocusMsg:
		m.deps.Visibility.Set(true)
		return m, m.loops().Resume()

	case tea.BlurMsg:
		// Loops park on their next tick.
		m.deps.Visibility.Set(false)
		return m, nil

	case currencyMsg:
		if !msg.ok {
			return m, nil
		}
		return m, tea.Batch(m.updateScreen(msg), waitForCurrency(m.signals))

	case userLoadedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrAuth) {
				return m, m.logout("Session expired, please log in again")
			}
			m.Error = errorText(msg.err, "Failed to load account")
			return m, nil
		}
		m.User = msg.user
		m.Error = ""
		if m.State == StateDashboard {
			return m, m.dashboard.holdingsChanged(m.User)
		}
		return m, nil

	case loggedInMsg:
		if err := m.deps.Prefs.Set(storage.KeyToken, msg.token); err != nil {
			glog.Errorf("Failed to save session: %v", err)
		}
		if err := m.deps.Prefs.Set(storage.KeyUsername, msg.username); err != nil {
			glog.Errorf("Failed to save session: %v", err)
		}
		glog.Infof("Logged in as %s", msg.username)
		return m, tea.Batch(m.switchTo(StateMenu, ""), loadUserCmd(m.deps.Client))

	case navigateMsg:
		return m, m.switchTo(msg.state, msg.symbol)

	case accountChangedMsg:
		return m, loadUserCmd(m.deps.Client)

	case depositDoneMsg:
		if m.State == StateDashboard {
			return m, m.updateScreen(msg)
		}
		if msg.err != nil {
			m.Error = errorText(msg.err, "Deposit failed")
			return m, nil
		}
		return m, accountChanged

	case logoutMsg:
		return m, m.logout("")

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, m.updateScreen(msg)
}

func (m *AppModel) View() string {
	switch m.State {
	case StateAuth:
		return m.frame("🔐 TRADESIM LOGIN", m.auth.view(), m.auth.footer())
	case StateDashboard:
		return m.frame("📊 PORTFOLIO DASHBOARD", m.dashboard.view(m.deps, m.User), m.dashboard.footer(m.deps))
	case StateMarket:
		return m.frame("📈 MARKET", m.market.view(m.deps), m.market.footer(m.deps))
	case StateStock:
		return m.frame("💹 "+m.stock.symbol, m.stock.view(m.deps, m.User, m.Width), m.stock.footer())
	case StateReports:
		return m.frame("📋 REPORTS", m.reports.view(), m.reports.footer())
	case StateSettings:
		return m.frame("⚙️  SETTINGS", m.settings.view(m.deps, m.User), m.settings.footer())
	case StateHelp:
		return m.frame("❓ HELP", m.help.view(), "Press 'Esc' to return to menu")
	default:
		return m.menuView()
	}
}

// updateScreen routes msg to the active screen.
func (m *AppModel) updateScreen(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.State {
	case StateAuth:
		m.auth, cmd = m.auth.update(msg, m.deps)
	case StateDashboard:
		m.dashboard, cmd = m.dashboard.update(msg, m.deps, m.User)
	case StateMarket:
		m.market, cmd = m.market.update(msg, m.deps)
	case StateStock:
		m.stock, cmd = m.stock.update(msg, m.deps)
	case StateReports:
		m.reports, cmd = m.reports.update(msg, m.deps)
	case StateSettings:
		m.settings, cmd = m.settings.update(msg, m.deps)
	case StateHelp:
		m.help, cmd = m.help.update(msg, m.deps)
	}
	return cmd
}

// loops returns the poll loops of the active screen.
func (m *AppModel) loops() poll.Group {
	switch m.State {
	case StateDashboard:
		return m.dashboard.loops
	case StateMarket:
		return m.market.loops
	case StateStock:
		return m.stock.loops
	}
	return nil
}

func (m *AppModel) allLoops() poll.Group {
	var g poll.Group
	g = append(g, m.dashboard.loops...)
	g = append(g, m.market.loops...)
	return append(g, m.stock.loops...)
}

// modal reports whether the active screen wants every key, for example
// while a text input has focus.
func (m *AppModel) modal() bool {
	switch m.State {
	case StateAuth:
		return true
	case StateDashboard:
		return m.dashboard.modal()
	case StateMarket:
		return m.market.modal()
	case StateStock:
		return m.stock.modal()
	case StateSettings:
		return m.settings.modal()
	}
	return false
}

// switchTo leaves the active screen, stopping its loops, and enters state.
func (m *AppModel) switchTo(state int, symbol string) tea.Cmd {
	from := m.State
	m.loops().Stop()
	m.State = state
	m.Error = ""

	switch state {
	case StateAuth:
		return m.auth.init()
	case StateDashboard:
		return tea.Batch(m.dashboard.enter(m.User), loadUserCmd(m.deps.Client))
	case StateMarket:
		return m.market.enter(m.deps)
	case StateStock:
		return m.stock.enter(m.deps, symbol, from)
	case StateReports:
		return m.reports.enter(m.deps, m.Width, m.Height)
	case StateSettings:
		return m.settings.enter(m.deps)
	case StateHelp:
		return m.help.enter(m.deps, m.Width)
	}
	return nil
}

// logout forgets the session and returns to the login screen.
func (m *AppModel) logout(reason string) tea.Cmd {
	m.allLoops().Stop()
	if err := m.deps.Prefs.Delete(storage.KeyToken, storage.KeyUsername); err != nil {
		glog.Errorf("Failed to clear session: %v", err)
	}
	m.deps.Client.SetToken("")
	m.User = nil
	m.Cursor = 0
	m.auth = newAuth()
	m.State = StateAuth
	m.Error = reason
	return m.auth.init()
}

func (m *AppModel) quit() (tea.Model, tea.Cmd) {
	m.allLoops().Stop()
	m.unsubscribe()
	return m, tea.Quit
}
