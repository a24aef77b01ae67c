package geoapify

import (
	"log/slog"
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed   breakerState = iota // requests flow
	stateOpen                         // requests are rejected
	stateHalfOpen                     // probing recovery
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker stops calling Geoapify after too many consecutive failures and
// lets a probe through once cooldown has elapsed.
type breaker struct {
	mu     sync.Mutex
	logger *slog.Logger

	state       breakerState
	failures    int
	lastFailure time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration, logger *slog.Logger) *breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &breaker{
		logger:    logger,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.lastFailure) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.logger.Info("geoapify circuit half-open")
		return true
	default:
		// a single probe is in flight
		return false
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateClosed {
		b.logger.Info("geoapify circuit closed")
	}
	b.state, b.failures = stateClosed, 0
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case stateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.logger.Warn("geoapify circuit open", slog.Int("failures", b.failures))
		}
	case stateHalfOpen:
		b.state = stateOpen
		b.logger.Warn("geoapify circuit open, probe failed")
	}
}

// release gives up a probe that ended without a verdict. A half-open
// breaker goes back to open, so the next call after cooldown probes again.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
