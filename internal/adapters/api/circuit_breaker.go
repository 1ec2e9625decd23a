package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed allows all requests
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests
	CircuitOpen
	// CircuitHalfOpen admits exactly one probe request to test recovery
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitBreaker.
// FailureThreshold failures within Window open the circuit; it stays open for OpenDuration.
type BreakerConfig struct {
	FailureThreshold int
	Window           time.Duration
	OpenDuration     time.Duration
}

// DefaultBreakerConfig returns the defaults applied to zero fields
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Window: 60 * time.Second, OpenDuration: 30 * time.Second}
}

// CircuitSnapshot is a point-in-time view of one breaker
type CircuitSnapshot struct {
	Name          string
	State         CircuitState
	FailureCount  int
	OpenedAt      time.Time
	ProbeInFlight bool
}

// StateChangeFunc is invoked (outside the breaker lock) on every transition
type StateChangeFunc func(name string, from, to CircuitState)

// CircuitBreaker implements the circuit breaker pattern.
//
// Unlike a plain Call wrapper, the half-open probe slot is claimed under the same
// lock that observes the state, so concurrent callers can never both become the probe.
type CircuitBreaker struct {
	name          string
	cfg           BreakerConfig
	state         CircuitState
	failureCount  int
	windowStart   time.Time
	openedAt      time.Time
	probeInFlight bool
	mu            sync.Mutex
	clock         shared.Clock
	onStateChange StateChangeFunc
}

// NewCircuitBreaker creates a new circuit breaker with optional clock injection
// If clock is nil, uses RealClock
func NewCircuitBreaker(name string, cfg BreakerConfig, clock shared.Clock) *CircuitBreaker {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = def.OpenDuration
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: CircuitClosed,
		clock: clock,
	}
}

// OnStateChange registers a transition listener
func (cb *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow asks permission to make one request.
//
// Returns probe=true when the caller holds the single half-open probe slot; that caller
// MUST report back through RecordSuccess, RecordFailure or ReleaseProbe.
// Returns an error wrapping ErrCircuitOpen when the request must be rejected.
func (cb *CircuitBreaker) Allow() (probe bool, err error) {
	cb.mu.Lock()
	var from, to CircuitState
	changed := false

	switch cb.state {
	case CircuitClosed:
		cb.mu.Unlock()
		return false, nil

	case CircuitOpen:
		remaining := cb.cfg.OpenDuration - cb.clock.Now().Sub(cb.openedAt)
		if remaining > 0 {
			cb.mu.Unlock()
			return false, fmt.Errorf("%w: %s (retry in %s)", ErrCircuitOpen, cb.name, remaining.Round(time.Millisecond))
		}
		from, to, changed = cb.transition(CircuitHalfOpen)
		cb.probeInFlight = true
		probe = true

	case CircuitHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return false, fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probeInFlight = true
		probe = true
	}

	listener := cb.onStateChange
	cb.mu.Unlock()
	cb.notify(listener, changed, from, to)
	return probe, nil
}

// RecordSuccess reports a completed request that reached a healthy upstream
func (cb *CircuitBreaker) RecordSuccess(probe bool) {
	cb.mu.Lock()
	var from, to CircuitState
	changed := false

	switch cb.state {
	case CircuitHalfOpen:
		if probe {
			cb.probeInFlight = false
			cb.failureCount = 0
			from, to, changed = cb.transition(CircuitClosed)
		}
	case CircuitClosed:
		cb.failureCount = 0
	}

	listener := cb.onStateChange
	cb.mu.Unlock()
	cb.notify(listener, changed, from, to)
}

// RecordFailure reports a request that failed in a way that counts against upstream health
func (cb *CircuitBreaker) RecordFailure(probe bool) {
	cb.mu.Lock()
	now := cb.clock.Now()
	var from, to CircuitState
	changed := false

	switch cb.state {
	case CircuitHalfOpen:
		if probe {
			cb.probeInFlight = false
			cb.openedAt = now
			from, to, changed = cb.transition(CircuitOpen)
		}
	case CircuitClosed:
		if cb.failureCount == 0 || now.Sub(cb.windowStart) > cb.cfg.Window {
			cb.windowStart = now
			cb.failureCount = 0
		}
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.openedAt = now
			from, to, changed = cb.transition(CircuitOpen)
		}
	case CircuitOpen:
		// late result from a request admitted before the circuit opened
		cb.failureCount++
	}

	listener := cb.onStateChange
	cb.mu.Unlock()
	cb.notify(listener, changed, from, to)
}

// ReleaseProbe gives the probe slot back without changing state.
// Used when the probe's caller cancelled before an outcome was known.
func (cb *CircuitBreaker) ReleaseProbe(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.probeInFlight = false
	}
}

// Call executes fn with circuit breaker protection. Every non-nil error except
// context cancellation counts as a failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.Allow()
	if err != nil {
		return err
	}

	// fn runs without the lock so slow calls never block other callers
	err = fn(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess(probe)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		cb.ReleaseProbe(probe)
	default:
		cb.RecordFailure(probe)
	}
	return err
}

// must hold cb.mu
func (cb *CircuitBreaker) transition(to CircuitState) (CircuitState, CircuitState, bool) {
	from := cb.state
	cb.state = to
	return from, to, from != to
}

func (cb *CircuitBreaker) notify(listener StateChangeFunc, changed bool, from, to CircuitState) {
	if changed && listener != nil {
		listener(cb.name, from, to)
	}
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailureCount returns the failure count in the current window
func (cb *CircuitBreaker) GetFailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Snapshot returns a consistent view of the breaker
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitSnapshot{
		Name:          cb.name,
		State:         cb.state,
		FailureCount:  cb.failureCount,
		OpenedAt:      cb.openedAt,
		ProbeInFlight: cb.probeInFlight,
	}
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from, to, changed := cb.transition(CircuitClosed)
	cb.failureCount = 0
	cb.probeInFlight = false
	listener := cb.onStateChange
	cb.mu.Unlock()
	cb.notify(listener, changed, from, to)
}

// BreakerSet lazily holds one CircuitBreaker per endpoint class
type BreakerSet struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	clock    shared.Clock
	listener StateChangeFunc
	breakers map[EndpointClass]*CircuitBreaker
}

// NewBreakerSet creates breakers for the known classes up front so health
// reports list them before any traffic.
func NewBreakerSet(cfg BreakerConfig, clock shared.Clock, listener StateChangeFunc) *BreakerSet {
	s := &BreakerSet{
		cfg:      cfg,
		clock:    clock,
		listener: listener,
		breakers: make(map[EndpointClass]*CircuitBreaker),
	}
	for _, class := range KnownClasses() {
		s.Get(class)
	}
	return s
}

// Get returns the breaker for class, creating it on first use
func (s *BreakerSet) Get(class EndpointClass) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[class]; ok {
		return cb
	}
	cb := NewCircuitBreaker(string(class), s.cfg, s.clock)
	if s.listener != nil {
		cb.OnStateChange(s.listener)
	}
	s.breakers[class] = cb
	return cb
}

// Snapshots returns every breaker's state keyed by class
func (s *BreakerSet) Snapshots() map[EndpointClass]CircuitSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[EndpointClass]CircuitSnapshot, len(s.breakers))
	for class, cb := range s.breakers {
		out[class] = cb.Snapshot()
	}
	return out
}
