// Package circuitbreaker guards a remote boundary: after a run of
// consecutive failures, calls are rejected outright for a cooldown,
// then a limited number of probes decide whether to close again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config bounds how quickly the breaker trips and recovers. Zero
// values take defaults.
type Config struct {
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold int
	// SuccessThreshold consecutive probe successes close it again.
	SuccessThreshold int
	// OpenTimeout is the cooldown before the first probe is admitted.
	OpenTimeout time.Duration
	// HalfOpenProbes caps in-flight trial calls while half-open.
	HalfOpenProbes int

	Logger *zap.Logger
}

type Breaker struct {
	name string
	cfg  Config

	mu        sync.Mutex
	state     state
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Breaker{name: name, cfg: cfg}
}

// Execute runs fn unless the breaker is open. fn's error is returned
// as-is; ErrOpen means fn never ran.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.settle(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		b.transition(stateHalfOpen)
	}

	if b.state == stateHalfOpen {
		if b.probes >= b.cfg.HalfOpenProbes {
			return ErrOpen
		}
		b.probes++
	}

	return nil
}

func (b *Breaker) settle(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}

	case stateHalfOpen:
		b.probes--
		if !ok {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(stateClosed)
		}

	case stateOpen:
		// A straggler from before the trip; nothing to settle.
	}
}

func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.transition(stateOpen)
}

// transition must be called with the lock held.
func (b *Breaker) transition(to state) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	b.probes = 0

	b.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Open reports whether calls would currently be rejected without
// probing.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.openedAt) < b.cfg.OpenTimeout
}
