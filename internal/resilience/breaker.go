// Package resilience guards Provider calls with a circuit breaker and retries
// idempotent lookups on transient network failures.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets a trial call through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected because the Provider has
// been failing.
var ErrBreakerOpen = eris.New("provider circuit breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// Name labels log lines.
	Name string

	// FailureThreshold is the number of consecutive outage errors before the
	// breaker opens. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before a trial call is
	// allowed. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count as failures. Default: IsOutage.
	// Errors such as a rejected API key are the caller's problem, not the
	// Provider's, and must not open the breaker.
	ShouldTrip func(err error) bool
}

// Breaker is a circuit breaker shared by every request that talks to the
// Provider.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsOutage
	}
	if cfg.Name == "" {
		cfg.Name = "provider"
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Call runs fn through the breaker, returning ErrBreakerOpen without calling
// fn while the breaker is open. A failure after ctx is done says nothing about
// the Provider and is not recorded.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return val, err
	}
	b.record(err)
	return val, err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.nowFunc().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.transition(BreakerHalfOpen)
		return nil
	}
	return ErrBreakerOpen
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.ShouldTrip(err) {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.transition(BreakerClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.nowFunc()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	zap.L().Warn("circuit breaker state change",
		zap.String("breaker", b.cfg.Name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutive_failures", b.failures),
	)
}
