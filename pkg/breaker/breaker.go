// Package breaker implements the per-name circuit breaker state
// machine from spec.md §4.1: closed/open/half-open, failure and
// slow-call counters, and a one-slot admission token in half-open.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of closed, open, half-open.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config configures a single breaker. Created once, on first use; not
// mutable thereafter.
type Config struct {
	FailureThreshold          int
	SuccessThreshold          int
	OpenTimeout               time.Duration
	SlowCallDurationThreshold time.Duration // 0 disables
	VolumeThreshold           int           // 0 disables
}

// DefaultConfig matches spec.md §4.1's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitOpenError is returned for every call rejected while the
// breaker is open, or while a half-open probe is already in flight.
type CircuitOpenError struct {
	Name        string
	RemainingMs int64
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open, retry after %dms", e.Name, e.RemainingMs)
}

// EventKind is the closed set of breaker events (spec.md §4.1).
type EventKind string

const (
	EventStateChange EventKind = "stateChange"
	EventSuccess     EventKind = "success"
	EventFailure     EventKind = "failure"
	EventRejected    EventKind = "rejected"
)

// Event is emitted on every breaker transition/call outcome.
type Event struct {
	Kind   EventKind
	Name   string
	From   State
	To     State
	At     time.Time
	Reason string
	Err    error
}

// Listener receives breaker events. Invoked synchronously under the
// breaker's lock; it must not call back into the breaker.
type Listener func(Event)

const durationWindow = 100

type metrics struct {
	calls        uint64
	successes    uint64
	failures     uint64
	rejections   uint64
	slowCalls    uint64
	stateChanges uint64

	durations    [durationWindow]time.Duration
	durationHead int
	durationLen  int
}

func (m *metrics) recordDuration(d time.Duration) {
	m.durations[m.durationHead] = d
	m.durationHead = (m.durationHead + 1) % durationWindow
	if m.durationLen < durationWindow {
		m.durationLen++
	}
}

func (m *metrics) averageDuration() time.Duration {
	if m.durationLen == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < m.durationLen; i++ {
		total += m.durations[i]
	}
	return total / time.Duration(m.durationLen)
}

// MetricsSnapshot is a point-in-time read of a breaker's counters.
type MetricsSnapshot struct {
	Calls          uint64
	Successes      uint64
	Failures       uint64
	Rejections     uint64
	SlowCalls      uint64
	StateChanges   uint64
	AvgCallLatency time.Duration
}

// Breaker is a single named circuit breaker.
type Breaker struct {
	name string
	cfg  Config

	mu                   sync.Mutex
	state                State
	failureCount         int
	halfOpenSuccessCount int
	halfOpenInFlight     bool
	totalCalls           int
	lastFailureAt        time.Time
	lastStateChangeAt    time.Time
	metrics              metrics
	listeners            []Listener

	logger zerolog.Logger
}

// New constructs a breaker in the closed state.
func New(name string, cfg Config, logger zerolog.Logger) *Breaker {
	return &Breaker{
		name:              name,
		cfg:               cfg,
		state:             StateClosed,
		lastStateChangeAt: time.Now(),
		logger:            logger.With().Str("breaker", name).Logger(),
	}
}

func (b *Breaker) Name() string { return b.name }

// Subscribe registers a listener and returns an unsubscribe func.
func (b *Breaker) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
	idx := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.listeners) {
			b.listeners[idx] = nil
		}
	}
}

func (b *Breaker) emitLocked(ev Event) {
	ev.Name = b.name
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, l := range b.listeners {
		if l != nil {
			l(ev)
		}
	}
}

// Execute runs fn through the breaker. It returns fn's own error
// unchanged on a normal failure, or *CircuitOpenError if the breaker
// rejected the call outright.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.before(); err != nil {
		return zero, err
	}
	start := time.Now()
	result, err := fn()
	b.after(err, time.Since(start))
	return result, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.totalCalls++
		return nil

	case StateOpen:
		remaining := b.cfg.OpenTimeout - time.Since(b.lastFailureAt)
		if remaining <= 0 {
			b.transitionLocked(StateHalfOpen, "open_timeout_elapsed")
			b.halfOpenInFlight = true
			b.totalCalls++
			return nil
		}
		b.metrics.rejections++
		b.emitLocked(Event{Kind: EventRejected, Reason: "circuit_open"})
		return &CircuitOpenError{Name: b.name, RemainingMs: remaining.Milliseconds()}

	case StateHalfOpen:
		if b.halfOpenInFlight {
			b.metrics.rejections++
			b.emitLocked(Event{Kind: EventRejected, Reason: "half_open_probe_in_flight"})
			return &CircuitOpenError{Name: b.name, RemainingMs: 0}
		}
		b.halfOpenInFlight = true
		b.totalCalls++
		return nil
	}
	return nil
}

func (b *Breaker) after(callErr error, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasHalfOpen := b.state == StateHalfOpen
	if wasHalfOpen {
		b.halfOpenInFlight = false
	}

	b.metrics.calls++
	b.metrics.recordDuration(duration)

	slow := b.cfg.SlowCallDurationThreshold > 0 && duration > b.cfg.SlowCallDurationThreshold

	if callErr != nil || slow {
		if callErr != nil {
			b.metrics.failures++
		} else {
			b.metrics.slowCalls++
		}
		b.failureCount++
		b.lastFailureAt = time.Now()

		volumeSatisfied := b.cfg.VolumeThreshold == 0 || b.totalCalls >= b.cfg.VolumeThreshold

		switch {
		case wasHalfOpen:
			b.transitionLocked(StateOpen, "half_open_probe_failed")
		case b.state == StateClosed && b.failureCount >= b.cfg.FailureThreshold && volumeSatisfied:
			b.transitionLocked(StateOpen, "failure_threshold_exceeded")
		}

		if callErr != nil {
			b.emitLocked(Event{Kind: EventFailure, Err: callErr})
		} else {
			// Slow but not erroring: the caller still receives the
			// success value (spec.md §4.1), only the threshold counts it.
			b.emitLocked(Event{Kind: EventSuccess})
		}
		return
	}

	b.metrics.successes++
	if wasHalfOpen {
		b.halfOpenSuccessCount++
		if b.halfOpenSuccessCount >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed, "success_threshold_reached")
		}
	} else {
		b.failureCount = 0
	}
	b.emitLocked(Event{Kind: EventSuccess})
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(to State, reason string) {
	from := b.state
	b.state = to
	b.lastStateChangeAt = time.Now()
	switch to {
	case StateClosed:
		b.failureCount = 0
		b.halfOpenSuccessCount = 0
		b.halfOpenInFlight = false
	case StateOpen:
		b.halfOpenSuccessCount = 0
		b.halfOpenInFlight = false
	}
	b.metrics.stateChanges++
	b.logger.Info().Str("from", string(from)).Str("to", string(to)).Str("reason", reason).Msg("breaker state change")
	b.emitLocked(Event{Kind: EventStateChange, From: from, To: to, Reason: reason, At: b.lastStateChangeAt})
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a point-in-time view of the breaker's counters.
func (b *Breaker) Snapshot() MetricsSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MetricsSnapshot{
		Calls:          b.metrics.calls,
		Successes:      b.metrics.successes,
		Failures:       b.metrics.failures,
		Rejections:     b.metrics.rejections,
		SlowCalls:      b.metrics.slowCalls,
		StateChanges:   b.metrics.stateChanges,
		AvgCallLatency: b.metrics.averageDuration(),
	}
}
