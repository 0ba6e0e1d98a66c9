// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package breaker

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/metrics"
	"github.com/tomtom215/ostium/internal/models"
)

// ErrOpen is the sentinel cause inside the ServiceUnavailable error a
// breaker returns when it rejects a call without invoking the wrapped
// function. Check with errors.Is(err, breaker.ErrOpen).
var ErrOpen = errors.New("circuit breaker is open")

// State is a breaker's position in its state machine.
type State int

const (
	// StateClosed is normal operation: calls pass through, failures
	// are counted.
	StateClosed State = iota

	// StateHalfOpen allows exactly one trial call to probe recovery.
	StateHalfOpen

	// StateOpen rejects every call until the reset timeout elapses.
	StateOpen
)

// String returns the wire form used in admin responses and metrics.
func (s State) String() string {
	switch s {
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// StateListener observes breaker transitions. Listeners are invoked
// synchronously on the goroutine that caused the transition, after the
// breaker's own state is settled; they must not call back into the
// breaker.
type StateListener interface {
	OnStateChange(backend string, from, to State)
}

// Breaker is a failure-aware gate around calls to one backend service.
//
// Transitions follow the classic three-state machine: CLOSED counts
// consecutive failures and opens at the threshold; OPEN rejects
// everything until the reset timeout; the first call at or after the
// retry time runs as the single HALF_OPEN trial, closing the breaker
// on success and reopening it on failure. All transitions are atomic
// under the breaker mutex; with two concurrent threshold hits the last
// writer's retry time wins.
type Breaker struct {
	backend      string
	threshold    int
	resetTimeout time.Duration

	// expectedErrors are substrings of error text indicating a
	// caller-side problem; matching failures never count toward the
	// threshold.
	expectedErrors []string

	listeners []StateListener

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	lastFailure   time.Time
	nextRetry     time.Time
	lastChange    time.Time
	trialInFlight bool
	forcedOpen    bool

	// now is the clock; tests substitute a fake.
	now func() time.Time
}

// New creates a closed breaker for the backend.
func New(backend string, threshold int, resetTimeout time.Duration, expectedErrors []string, listeners ...StateListener) *Breaker {
	b := &Breaker{
		backend:        backend,
		threshold:      threshold,
		resetTimeout:   resetTimeout,
		expectedErrors: expectedErrors,
		listeners:      listeners,
		now:            time.Now,
	}
	b.lastChange = b.now()
	metrics.SetBreakerState(backend, 0)
	return b
}

// Backend returns the backend service name this breaker guards.
func (b *Breaker) Backend() string {
	return b.backend
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn under the breaker.
//
// In OPEN before the retry time (or while force-opened, or while a
// half-open trial is already in flight) the call is rejected without
// invoking fn and a ServiceUnavailable error wrapping ErrOpen is
// returned. Otherwise fn runs and its error, if any, passes through
// unchanged after being accounted.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		metrics.RecordBreakerResult(b.backend, "rejected")
		return err
	}

	err := fn()
	b.afterCall(err)
	if err != nil {
		metrics.RecordBreakerResult(b.backend, "failure")
		return err
	}
	metrics.RecordBreakerResult(b.backend, "success")
	return nil
}

// beforeCall admits or rejects the call, applying the OPEN->HALF_OPEN
// transition when the reset timeout has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()

	if b.forcedOpen {
		b.mu.Unlock()
		return b.rejection("circuit breaker force-opened by operator")
	}

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return nil

	case StateOpen:
		if b.now().Before(b.nextRetry) {
			b.mu.Unlock()
			return b.rejection(fmt.Sprintf(
				"backend %s unavailable, retry after %s", b.backend,
				b.nextRetry.Format(time.RFC3339)))
		}
		// Reset timeout elapsed: this call becomes the single trial.
		transition := b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		b.mu.Unlock()
		b.notify(transition)
		return nil

	default: // StateHalfOpen
		if b.trialInFlight {
			b.mu.Unlock()
			return b.rejection(fmt.Sprintf("backend %s trial call already in flight", b.backend))
		}
		// A previous trial finished without resolving the state; only
		// reachable between afterCall transitions, admit as trial.
		b.trialInFlight = true
		b.mu.Unlock()
		return nil
	}
}

// afterCall applies the outcome of an admitted call.
func (b *Breaker) afterCall(err error) {
	failure := err != nil && !b.isExpected(err)

	b.mu.Lock()
	var transition *transitionRecord

	switch b.state {
	case StateClosed:
		if err == nil {
			b.successCount++
			b.failureCount = 0
		} else if failure {
			b.failureCount++
			b.lastFailure = b.now()
			if b.failureCount >= b.threshold {
				b.nextRetry = b.now().Add(b.resetTimeout)
				transition = b.transitionLocked(StateOpen)
			}
		}

	case StateHalfOpen:
		b.trialInFlight = false
		if err == nil {
			// Trial succeeded: close with both counters reset.
			b.failureCount = 0
			b.successCount = 0
			transition = b.transitionLocked(StateClosed)
		} else if failure {
			b.lastFailure = b.now()
			b.nextRetry = b.now().Add(b.resetTimeout)
			transition = b.transitionLocked(StateOpen)
		} else {
			// Expected error: treat the trial as inconclusive and
			// close without resetting counters.
			transition = b.transitionLocked(StateClosed)
		}

	case StateOpen:
		// A call admitted before a concurrent force-open landed;
		// nothing to account.
	}
	b.mu.Unlock()
	b.notify(transition)
}

// isExpected reports whether the error text matches the allow-list.
func (b *Breaker) isExpected(err error) bool {
	text := err.Error()
	for _, sub := range b.expectedErrors {
		if sub != "" && strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

// rejection builds the classified rejection error.
func (b *Breaker) rejection(msg string) error {
	return gwerr.Wrap(gwerr.KindServiceUnavailable, msg, ErrOpen)
}

// transitionRecord captures one state change for listener fan-out
// outside the mutex.
type transitionRecord struct {
	from, to State
}

// transitionLocked moves to the new state. Callers hold b.mu.
func (b *Breaker) transitionLocked(to State) *transitionRecord {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.lastChange = b.now()
	return &transitionRecord{from: from, to: to}
}

// notify fans a transition out to the listeners, outside the mutex.
func (b *Breaker) notify(tr *transitionRecord) {
	if tr == nil {
		return
	}
	for _, l := range b.listeners {
		l.OnStateChange(b.backend, tr.from, tr.to)
	}
}

// ForceOpen rejects all calls until ForceClose, regardless of
// outcomes. Operator intervention and tests only.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	b.forcedOpen = true
	b.nextRetry = b.now().Add(b.resetTimeout)
	transition := b.transitionLocked(StateOpen)
	b.mu.Unlock()
	b.notify(transition)
}

// ForceClose resumes normal operation with counters reset.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	b.forcedOpen = false
	b.trialInFlight = false
	b.failureCount = 0
	b.successCount = 0
	transition := b.transitionLocked(StateClosed)
	b.mu.Unlock()
	b.notify(transition)
}

// Status returns the admin view of the breaker. Uptime with zero
// observations reports 100%.
func (b *Breaker) Status() models.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	uptime := 100.0
	if total := b.successCount + b.failureCount; total > 0 {
		uptime = float64(b.successCount) / float64(total) * 100
	}

	st := models.BreakerStatus{
		Backend:       b.backend,
		State:         b.state.String(),
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		UptimePercent: uptime,
		LastChange:    b.lastChange,
	}
	if b.state == StateOpen {
		retry := b.nextRetry
		st.NextRetryAt = &retry
	}
	return st
}
