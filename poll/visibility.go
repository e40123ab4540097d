// Package poll runs the best-effort refresh loops behind the live views.
//
// Two flavors share one contract. Loop is driven by bubbletea ticks and is
// used by the TUI screens. Task and Scoped run on goroutines and are used by
// the watch command. Both stop polling while the terminal is not focused, and
// both tag work with a generation so results from an old scope are dropped.
package poll

import "sync"

// Visibility tracks whether the user can see the screen. It starts visible.
type Visibility struct {
	mu      sync.Mutex
	visible bool
	changed chan struct{}
}

func NewVisibility() *Visibility {
	return &Visibility{visible: true, changed: make(chan struct{})}
}

func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Set records the new state and reports whether it changed.
func (v *Visibility) Set(visible bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.visible == visible {
		return false
	}
	v.visible = visible
	close(v.changed)
	v.changed = make(chan struct{})
	return true
}

// Changed returns a channel closed on the next change.
func (v *Visibility) Changed() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.changed
}

// Gate reports whether polling should happen now.
type Gate interface {
	Visible() bool
}

type always struct{}

func (always) Visible() bool { return true }

// Always is a Gate that never suspends.
var Always Gate = always{}
