package poll

import (
	"context"
	"sync"
	"time"
)

// Task polls on a goroutine.
type Task struct {
	Interval time.Duration
	Gate     Gate
}

// Run calls fn right away and then every Interval until ctx is done. Ticks
// are skipped while the gate is closed; when a Visibility gate opens again fn
// runs immediately. Run returns ctx.Err().
func (t Task) Run(ctx context.Context, fn func(ctx context.Context)) error {
	gate := t.Gate
	if gate == nil {
		gate = Always
	}
	vis, _ := gate.(*Visibility)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	if gate.Visible() {
		fn(ctx)
	}
	for {
		var changed <-chan struct{}
		if vis != nil {
			changed = vis.Changed()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			if vis.Visible() && ctx.Err() == nil {
				ticker.Reset(t.Interval)
				fn(ctx)
			}
		case <-ticker.C:
			if gate.Visible() && ctx.Err() == nil {
				fn(ctx)
			}
		}
	}
}

// Scoped runs a Task for one scope at a time. Switching scope cancels the
// previous run; Guard tells late results of an old run apart.
type Scoped struct {
	task   Task
	parent context.Context

	mu     sync.Mutex
	gen    uint64
	scope  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScoped(parent context.Context, task Task) *Scoped {
	return &Scoped{task: task, parent: parent}
}

// Switch cancels the current run and starts polling scope. fn receives the
// generation it must hand to Guard before applying a result.
func (s *Scoped) Switch(scope string, fn func(ctx context.Context, scope string, gen uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.scope = scope
	gen := s.gen

	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		defer cancel()
		s.task.Run(ctx, func(ctx context.Context) { fn(ctx, scope, gen) })
	}()
	return gen
}

// Guard reports whether gen is still the current generation.
func (s *Scoped) Guard(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil && gen == s.gen
}

func (s *Scoped) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Stop cancels the current run and waits for it to return.
func (s *Scoped) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.gen++
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
