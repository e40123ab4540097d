// Package currency holds the selected display currency and the exchange rate
// table, and does every amount conversion and formatting the views need.
//
// A Service is created once at startup and handed to every view. Views that
// render converted amounts Subscribe to it and redraw on each Signal.
package currency

import (
	"math"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Base is the currency all backend amounts are stored in.
const Base = "USD"

// Field names carried by a Signal.
const (
	FieldSelected = "Selected"
	FieldRates    = "Rates"
	FieldLoading  = "Loading"
)

// Table maps a currency code to units of that currency per 1 Base.
// Tables are never mutated after construction.
type Table map[string]float64

// NewTable cleans a rates payload: codes are upper-cased, non-positive or
// non-finite rates are dropped and Base is pinned to 1.
func NewTable(raw map[string]float64) Table {
	t := make(Table, len(raw)+1)
	for code, rate := range raw {
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		t[strings.ToUpper(code)] = rate
	}
	t[Base] = 1
	return t
}

// State is a snapshot of the service.
type State struct {
	Selected string
	Rates    Table
	// Loading is true until the first rate fetch has finished, either way.
	Loading bool
}

// Signal is sent to subscribers on every state change.
type Signal struct {
	Version uint64
	Fields  []string
	State   State
}

// FieldChanged reports whether f changed in this Signal.
func (s Signal) FieldChanged(f string) bool {
	for _, c := range s.Fields {
		if c == f {
			return true
		}
	}
	return false
}

// CancelFunc ends a subscription and closes its channel.
type CancelFunc func()

// Prefs persists the selected currency.
type Prefs interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// PrefsKey is the preference key holding the selected currency.
const PrefsKey = "currency"

type Service struct {
	prefs Prefs

	mu      sync.RWMutex
	state   State
	version uint64
	subs    map[int]chan Signal
	nextSub int
}

// New returns a service whose selected currency is read from prefs. The rate
// table starts as {USD: 1} and the service is loading until a Refresher (or
// SetRates/FinishLoading) settles it.
func New(prefs Prefs) *Service {
	selected := Base
	if prefs != nil {
		if v, ok := prefs.Get(PrefsKey); ok {
			if code, ok := Normalize(v); ok {
				selected = code
			}
		}
	}
	return &Service{
		prefs: prefs,
		state: State{
			Selected: selected,
			Rates:    Table{Base: 1},
			Loading:  true,
		},
		subs: map[int]chan Signal{},
	}
}

// Normalize upper-cases code and reports whether it looks like an ISO 4217
// code (three ASCII letters).
func Normalize(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return code, false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return code, false
		}
	}
	return code, true
}

// State returns the current snapshot.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Service) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Selected
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Loading
}

// Rate returns the rate of code, or 1 when the table does not know it.
func (s *Service) Rate(code string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rateIn(s.state.Rates, code)
}

func rateIn(t Table, code string) float64 {
	if r, ok := t[strings.ToUpper(code)]; ok {
		return r
	}
	return 1
}

// SetCurrency selects code for display and persists it. The code is not
// checked against the rate table. Setting the current value again persists
// it but notifies nobody.
func (s *Service) SetCurrency(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	changed := s.state.Selected != code
	if changed {
		s.state.Selected = code
		s.commit(FieldSelected)
	}
	s.mu.Unlock()

	if s.prefs == nil {
		return nil
	}
	return s.prefs.Set(PrefsKey, code)
}

// SetRates replaces the table wholesale and ends loading.
func (s *Service) SetRates(raw map[string]float64) {
	t := NewTable(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Rates = t
	fields := []string{FieldRates}
	if s.state.Loading {
		s.state.Loading = false
		fields = append(fields, FieldLoading)
	}
	s.commit(fields...)
}

// FinishLoading ends loading without touching the table.
func (s *Service) FinishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Loading {
		return
	}
	s.state.Loading = false
	s.commit(FieldLoading)
}

// Subscribe returns a channel receiving a Signal per state change. Signals
// are coalesced for slow readers: a reader always finds the latest one.
func (s *Service) Subscribe() (<-chan Signal, CancelFunc) {
	ch := make(chan Signal, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// commit must be called with mu held.
func (s *Service) commit(fields ...string) {
	s.version++
	sig := Signal{Version: s.version, Fields: fields, State: s.state}
	glog.V(2).Infof("currency: version %d changed %v", s.version, fields)

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- sig:
		default:
		}
	}
}

// Convert converts an amount in Base into the selected currency.
func (s *Service) Convert(amount float64) float64 {
	st := s.State()
	return amount * rateIn(st.Rates, st.Selected)
}

// ConvertFrom converts amount from the from currency into the selected
// currency, always through Base. Zero (and NaN) amounts and an empty from
// currency are returned unchanged, as is an amount already in the selected
// currency.
func (s *Service) ConvertFrom(amount float64, from string) float64 {
	if amount == 0 || math.IsNaN(amount) || from == "" {
		return amount
	}
	st := s.State()
	if strings.EqualFold(from, st.Selected) {
		return amount
	}
	return amount / rateIn(st.Rates, from) * rateIn(st.Rates, st.Selected)
}

// ToBase converts amount from the from currency into Base.
func (s *Service) ToBase(amount float64, from string) float64 {
	if from == "" {
		return amount
	}
	return amount / s.Rate(from)
}
