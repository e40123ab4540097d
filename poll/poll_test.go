package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"

	"tradesim/api"
)

func tickOf(t *testing.T, l *Loop, cmd func() interface{}) TickMsg {
	t.Helper()
	msg, ok := cmd().(TickMsg)
	if !ok {
		t.Fatalf("%s: command did not produce a TickMsg", l.Name)
	}
	return msg
}

func TestLoopStartAndTick(t *testing.T) {
	l := NewLoop("quote", 3*time.Second, nil)

	cmd := l.Start("AAPL")
	if cmd == nil {
		t.Fatal("Start() returned no command")
	}
	msg := tickOf(t, l, func() interface{} { return cmd() })

	fetch, next := l.Tick(msg)
	if !fetch || next == nil {
		t.Errorf("Tick(current) = %v, %v; want fetch and a next tick", fetch, next != nil)
	}
	if !l.Accept(msg.Gen) {
		t.Error("Accept(current generation) = false")
	}

	fetch, next = l.Tick(TickMsg{Loop: "other", Gen: msg.Gen, Seq: msg.Seq})
	if fetch || next != nil {
		t.Error("Tick() acted on a message for another loop")
	}
}

// A response for AAPL that lands after the scope moved to MSFT must not be
// applied.
func TestLoopScopeChangeDropsStaleResponse(t *testing.T) {
	l := NewLoop("quote", 3*time.Second, nil)
	shown := map[string]float64{}
	apply := func(gen uint64, scope string, price float64) {
		if l.Accept(gen) && l.Scope() == scope {
			shown[scope] = price
		}
	}

	l.Start("AAPL")
	aaplGen := l.Gen()

	l.Start("MSFT")
	msftGen := l.Gen()

	apply(msftGen, "MSFT", 410)
	apply(aaplGen, "AAPL", 190)

	if diff := pretty.Compare(map[string]float64{"MSFT": 410}, shown); diff != "" {
		t.Errorf("applied results: -want/+got:\n%s", diff)
	}
}

func TestLoopStop(t *testing.T) {
	l := NewLoop("markets", 30*time.Second, nil)
	cmd := l.Start("all")
	msg := tickOf(t, l, func() interface{} { return cmd() })
	gen := l.Gen()

	l.Stop()
	if l.Running() {
		t.Error("Running() after Stop()")
	}
	if fetch, next := l.Tick(msg); fetch || next != nil {
		t.Error("Tick() after Stop() still fetches")
	}
	if l.Accept(gen) {
		t.Error("Accept() after Stop() accepted an in-flight result")
	}
	l.Stop()
}

func TestLoopParksWhileHidden(t *testing.T) {
	vis := NewVisibility()
	l := NewLoop("quote", 3*time.Second, vis)
	cmd := l.Start("AAPL")
	first := tickOf(t, l, func() interface{} { return cmd() })

	if cmd := l.Resume(); cmd != nil {
		t.Error("Resume() on a live loop returned a command")
	}

	vis.Set(false)
	if fetch, next := l.Tick(first); fetch || next != nil {
		t.Error("Tick() while hidden still fetches")
	}
	if !l.Parked() {
		t.Fatal("loop not parked while hidden")
	}

	vis.Set(true)
	resume := l.Resume()
	if resume == nil {
		t.Fatal("Resume() of a parked loop returned no command")
	}
	again := tickOf(t, l, func() interface{} { return resume() })
	if fetch, _ := l.Tick(again); !fetch {
		t.Error("Tick() after Resume() does not fetch")
	}
	if fetch, _ := l.Tick(first); fetch {
		t.Error("a tick from before the pause still fetches, timers would double up")
	}
}

func TestGroup(t *testing.T) {
	vis := NewVisibility()
	a := NewLoop("a", time.Second, vis)
	b := NewLoop("b", time.Second, vis)
	g := Group{a, b}

	for _, l := range g {
		cmd := l.Start("x")
		msg := cmd().(TickMsg)
		vis.Set(false)
		l.Tick(msg)
		vis.Set(true)
	}
	if cmd := g.Resume(); cmd == nil {
		t.Error("Group.Resume() with parked loops returned nil")
	}
	g.Stop()
	if a.Running() || b.Running() {
		t.Error("Group.Stop() left loops running")
	}
}

func TestTaskRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	enough := make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- Task{Interval: 5 * time.Millisecond}.Run(ctx, func(context.Context) {
			if atomic.AddInt32(&calls, 1) == 3 {
				close(enough)
			}
		})
	}()

	select {
	case <-enough:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not poll")
	}
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestTaskSuspendsWhileHidden(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vis := NewVisibility()
	vis.Set(false)

	ran := make(chan struct{}, 16)
	go Task{Interval: time.Hour, Gate: vis}.Run(ctx, func(context.Context) {
		ran <- struct{}{}
	})

	select {
	case <-ran:
		t.Fatal("Run() polled while hidden")
	case <-time.After(50 * time.Millisecond):
	}

	vis.Set(true)
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not resume immediately when visible again")
	}
}

func TestScopedDropsStaleResult(t *testing.T) {
	s := NewScoped(context.Background(), Task{Interval: time.Hour})
	defer s.Stop()

	var (
		mu    sync.Mutex
		shown []string
	)
	show := func(scope string) {
		mu.Lock()
		defer mu.Unlock()
		shown = append(shown, scope)
	}

	inFlight := make(chan struct{})
	release := make(chan struct{})
	aaplDone := make(chan struct{})
	s.Switch("AAPL", func(ctx context.Context, scope string, gen uint64) {
		defer close(aaplDone)
		close(inFlight)
		<-release
		if s.Guard(gen) {
			show(scope)
		}
	})
	<-inFlight

	msftDone := make(chan struct{})
	s.Switch("MSFT", func(ctx context.Context, scope string, gen uint64) {
		if s.Guard(gen) {
			show(scope)
		}
		close(msftDone)
	})
	<-msftDone

	close(release)
	<-aaplDone

	mu.Lock()
	defer mu.Unlock()
	if diff := pretty.Compare([]string{"MSFT"}, shown); diff != "" {
		t.Errorf("applied scopes: -want/+got:\n%s", diff)
	}
	if s.Scope() != "MSFT" {
		t.Errorf("Scope() = %q, want MSFT", s.Scope())
	}
}

func TestScopedStopCancels(t *testing.T) {
	s := NewScoped(context.Background(), Task{Interval: time.Hour})
	started := make(chan context.Context, 1)
	gen := s.Switch("AAPL", func(ctx context.Context, scope string, gen uint64) {
		started <- ctx
	})
	ctx := <-started

	s.Stop()
	if ctx.Err() == nil {
		t.Error("Stop() did not cancel the running scope")
	}
	if s.Guard(gen) {
		t.Error("Guard() accepts a generation after Stop()")
	}
	s.Stop()
}

func TestOpenSymbols(t *testing.T) {
	quotes := []api.Quote{
		{Symbol: "AAPL", Exchange: "NASDAQ"},
		{Symbol: "SBER.ME", Exchange: "MOEX"},
		{Symbol: "BTC-USD", Exchange: "CCC"},
		{Symbol: "XXX", Exchange: "OTC"},
		{Symbol: "JPM", Exchange: "NYSE"},
	}
	markets := []api.Market{
		{Exchange: "NASDAQ", IsOpen: true},
		{Exchange: "NYSE", IsOpen: true},
		{Exchange: "MOEX", IsOpen: false},
		{Exchange: "CCC", IsOpen: true},
	}

	tests := []struct {
		name    string
		markets []api.Market
		want    []string
	}{
		{name: "status not loaded", markets: nil, want: nil},
		{name: "closed and unknown venues skipped", markets: markets, want: []string{"AAPL", "BTC-USD", "JPM"}},
		{name: "everything closed", markets: []api.Market{}, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := OpenSymbols(quotes, tc.markets)
			if diff := pretty.Compare(tc.want, got); diff != "" {
				t.Errorf("OpenSymbols(): -want/+got:\n%s", diff)
			}
		})
	}
}
