package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"
)

// RateSource fetches the rate table.
type RateSource interface {
	Currencies(ctx context.Context) (map[string]float64, error)
}

// RateSourceFunc adapts a function to RateSource.
type RateSourceFunc func(ctx context.Context) (map[string]float64, error)

func (f RateSourceFunc) Currencies(ctx context.Context) (map[string]float64, error) {
	return f(ctx)
}

// Refresher keeps a Service's rate table fresh on a fixed schedule.
// Failures are logged and otherwise ignored; the last table stays in place.
type Refresher struct {
	svc     *Service
	src     RateSource
	every   time.Duration
	timeout time.Duration

	cron *cron.Cron
}

func NewRefresher(svc *Service, src RateSource, every, timeout time.Duration) *Refresher {
	return &Refresher{
		svc:     svc,
		src:     src,
		every:   every,
		timeout: timeout,
	}
}

// Start loads the table in the background right away and then on every
// tick until Stop.
func (r *Refresher) Start() error {
	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.every), r.refresh); err != nil {
		return fmt.Errorf("failed to schedule rate refresh: %w", err)
	}
	r.cron = c
	c.Start()
	go r.refresh()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
}

func (r *Refresher) refresh() {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.Refresh(ctx)
}

// Refresh fetches the table once. On success the table is replaced; either
// way the service leaves the loading state.
func (r *Refresher) Refresh(ctx context.Context) {
	rates, err := r.src.Currencies(ctx)
	if err != nil {
		glog.V(1).Infof("currency: rate refresh failed: %v", err)
		r.svc.FinishLoading()
		return
	}
	r.svc.SetRates(rates)
}
