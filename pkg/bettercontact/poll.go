package bettercontact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollBudget      = 45 * time.Second
	defaultPollInitialWait = 1 * time.Second
	defaultPollBaseDelay   = 2 * time.Second
	defaultPollDelayStep   = 500 * time.Millisecond
	defaultPollMaxDelay    = 5 * time.Second
	defaultPollGraceWait   = 2 * time.Second

	progressLogAfter = 20 * time.Second
)

// JobStatus is the lifecycle state of a submitted enrichment job.
type JobStatus string

const (
	StatusSubmitted  JobStatus = "submitted"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusTimedOut   JobStatus = "timeout"
)

// Result is a completed enrichment job.
type Result struct {
	RequestID string
	// Payload is the Provider's completed body, passed through untouched.
	Payload      json.RawMessage
	Elapsed      time.Duration
	PollAttempts int
	Status       JobStatus
}

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	budget      time.Duration
	initialWait time.Duration
	baseDelay   time.Duration
	delayStep   time.Duration
	maxDelay    time.Duration
	graceWait   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		budget:      defaultPollBudget,
		initialWait: defaultPollInitialWait,
		baseDelay:   defaultPollBaseDelay,
		delayStep:   defaultPollDelayStep,
		maxDelay:    defaultPollMaxDelay,
		graceWait:   defaultPollGraceWait,
		sleep:       sleepContext,
	}
}

// WithPollBudget overrides the total intentional wait allowed before giving up.
func WithPollBudget(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.budget = d
	}
}

// WithPollInitialWait overrides the wait before the first poll.
func WithPollInitialWait(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initialWait = d
	}
}

// WithPollDelay overrides the delay schedule: base + attempt*step, capped at max.
func WithPollDelay(base, step, ceiling time.Duration) PollOption {
	return func(c *pollConfig) {
		c.baseDelay = base
		c.delayStep = step
		c.maxDelay = ceiling
	}
}

// WithPollGraceWait overrides the extra wait after a 406 on the first poll.
func WithPollGraceWait(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.graceWait = d
	}
}

// WithPollSleep replaces the function used for every intentional wait.
func WithPollSleep(fn func(ctx context.Context, d time.Duration) error) PollOption {
	return func(c *pollConfig) {
		c.sleep = fn
	}
}

// PollDelay returns the wait before poll number attempt using the default
// schedule. Attempt 0 has no delay.
func PollDelay(attempt int) time.Duration {
	cfg := defaultPollConfig()
	return cfg.delay(attempt)
}

func (c pollConfig) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return min(c.baseDelay+time.Duration(attempt)*c.delayStep, c.maxDelay)
}

// pollState is threaded through the loop by value.
type pollState struct {
	elapsed time.Duration
	attempt int
}

func (s pollState) waited(d time.Duration) pollState {
	s.elapsed += d
	return s
}

func (s pollState) next() pollState {
	s.attempt++
	return s
}

type verdict int

const (
	verdictPending verdict = iota
	verdictDone
	verdictGrace
)

// PollJob polls the results endpoint for id until the job completes, fails,
// or the wait budget runs out. The budget counts only intentional waits, not
// time spent in HTTP calls; the last scheduled wait is cut short so the total
// never passes the budget. A *Error of KindTimedOut means the job may still
// finish and can be fetched later.
func PollJob(ctx context.Context, client Client, id string, opts ...PollOption) (*Result, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	log := zap.L().With(zap.String("request_id", id))

	// Give the Provider a moment to register the job.
	if err := cfg.sleep(ctx, cfg.initialWait); err != nil {
		return nil, timeoutError(OpPoll, id, err)
	}

	st := pollState{}
	for st.elapsed < cfg.budget {
		if delay := min(cfg.delay(st.attempt), cfg.budget-st.elapsed); delay > 0 {
			if err := cfg.sleep(ctx, delay); err != nil {
				return nil, timeoutError(OpPoll, id, err)
			}
			st = st.waited(delay)
		}

		resp, err := client.GetResult(ctx, id)
		if err != nil {
			return nil, asPollError(id, err)
		}

		res, v, err := classifyPoll(resp, id, st)
		if err != nil {
			log.Info("enrichment poll ended with error",
				zap.Int("status_code", resp.StatusCode),
				zap.Int("attempt", st.attempt),
				zap.Error(err),
			)
			return nil, err
		}

		switch v {
		case verdictDone:
			log.Info("enrichment completed",
				zap.Int("poll_attempts", res.PollAttempts),
				zap.Float64("elapsed_seconds", res.Elapsed.Seconds()),
			)
			return res, nil
		case verdictGrace:
			log.Debug("request id not yet registered, waiting", zap.Duration("grace", cfg.graceWait))
			if err := cfg.sleep(ctx, cfg.graceWait); err != nil {
				return nil, timeoutError(OpPoll, id, err)
			}
			st = st.waited(cfg.graceWait)
		default:
			log.Debug("enrichment still processing", zap.Int("attempt", st.attempt))
		}

		st = st.next()

		if st.elapsed > progressLogAfter && st.attempt%3 == 0 {
			log.Info("still waiting for enrichment",
				zap.Float64("elapsed_seconds", st.elapsed.Seconds()),
				zap.Int("poll_attempts", st.attempt),
			)
		}
	}

	log.Warn("enrichment poll budget exhausted",
		zap.Float64("elapsed_seconds", st.elapsed.Seconds()),
		zap.Int("poll_attempts", st.attempt),
	)
	return nil, timedOutError(id, cfg.budget, st.elapsed)
}

// classifyPoll maps one results response onto the loop's next move.
func classifyPoll(resp *ResultResponse, id string, st pollState) (*Result, verdict, error) {
	completed := func(body []byte) *Result {
		return &Result{
			RequestID:    id,
			Payload:      json.RawMessage(body),
			Elapsed:      st.elapsed,
			PollAttempts: st.attempt + 1,
			Status:       StatusCompleted,
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if !json.Valid(resp.Body) {
			return nil, 0, NewProtocolError(OpPoll, id, "Invalid response format from enrichment results", nil)
		}
		return completed(resp.Body), verdictDone, nil

	case http.StatusAccepted:
		var body struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		// An unreadable 202 body still means the job is running.
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, verdictPending, nil
		}
		switch status := strings.ToLower(body.Status); status {
		case "completed":
			return completed(resp.Body), verdictDone, nil
		case "failed", "error":
			return nil, 0, failedError(id, status, body.Message)
		}
		return nil, verdictPending, nil

	case http.StatusNotFound:
		return nil, 0, NewNotFoundError(OpPoll, id)

	case http.StatusUnauthorized:
		return nil, 0, NewAuthError(OpPoll, "Authentication failed while checking results")

	case http.StatusNotAcceptable:
		// Freshly submitted ids are sometimes rejected once before they register.
		if st.attempt == 0 {
			return nil, verdictGrace, nil
		}
		return nil, 0, invalidRequestIDError(id)
	}

	return nil, 0, unexpectedStatusError(id, resp.StatusCode)
}

func asPollError(id string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return transportError(OpPoll, id, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
