package poll

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg wakes a Loop. Only the Loop with the same name, generation and
// sequence acts on it; every other TickMsg is stale.
type TickMsg struct {
	Loop string
	Gen  uint64
	Seq  uint64
}

// Loop is one scoped polling loop inside a bubbletea model. All methods are
// called from Update, so Loop needs no locking.
//
// Start and Stop bump the generation. Fetch commands capture Gen() when they
// are issued, and the result handler drops anything Accept rejects.
type Loop struct {
	Name     string
	Interval time.Duration

	gate    Gate
	gen     uint64
	seq     uint64
	scope   string
	running bool
	parked  bool
}

func NewLoop(name string, interval time.Duration, gate Gate) *Loop {
	if gate == nil {
		gate = Always
	}
	return &Loop{Name: name, Interval: interval, gate: gate}
}

// Start polls scope from now on, replacing any previous scope. The returned
// command ticks immediately.
func (l *Loop) Start(scope string) tea.Cmd {
	l.gen++
	l.seq++
	l.scope = scope
	l.running = true
	l.parked = false
	return l.tickNow()
}

// Stop ends the loop. Pending ticks and in-flight results become stale.
func (l *Loop) Stop() {
	if !l.running {
		return
	}
	l.gen++
	l.running = false
	l.parked = false
}

func (l *Loop) Gen() uint64   { return l.gen }
func (l *Loop) Scope() string { return l.scope }
func (l *Loop) Running() bool { return l.running }
func (l *Loop) Parked() bool  { return l.parked }

// Accept reports whether a result fetched under gen may be applied.
func (l *Loop) Accept(gen uint64) bool {
	return l.running && gen == l.gen
}

// Owns reports whether msg is addressed to this loop, stale or not.
func (l *Loop) Owns(msg TickMsg) bool {
	return msg.Loop == l.Name
}

// Tick handles a TickMsg. It reports whether the caller should fetch now
// and returns the command arming the next tick. While the gate is closed the
// loop parks instead and waits for Resume.
func (l *Loop) Tick(msg TickMsg) (fetch bool, next tea.Cmd) {
	if msg.Loop != l.Name || !l.running || msg.Gen != l.gen || msg.Seq != l.seq {
		return false, nil
	}
	if !l.gate.Visible() {
		l.parked = true
		return false, nil
	}
	return true, l.schedule()
}

// Resume restarts a parked loop with an immediate tick. It is a no-op for
// loops that are stopped or still have a live timer.
func (l *Loop) Resume() tea.Cmd {
	if !l.running || !l.parked {
		return nil
	}
	l.parked = false
	l.seq++
	return l.tickNow()
}

func (l *Loop) msg() TickMsg {
	return TickMsg{Loop: l.Name, Gen: l.gen, Seq: l.seq}
}

func (l *Loop) tickNow() tea.Cmd {
	m := l.msg()
	return func() tea.Msg { return m }
}

func (l *Loop) schedule() tea.Cmd {
	m := l.msg()
	return tea.Tick(l.Interval, func(time.Time) tea.Msg { return m })
}

// Group fans Stop and Resume out to several loops.
type Group []*Loop

func (g Group) Stop() {
	for _, l := range g {
		l.Stop()
	}
}

func (g Group) Resume() tea.Cmd {
	var cmds []tea.Cmd
	for _, l := range g {
		if cmd := l.Resume(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}
