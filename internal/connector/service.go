// Package connector maps inbound lead requests onto the BetterContact API and
// runs the three enrichment flows: submit, submit-and-wait, and fetch.
package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadenrich-connector/internal/config"
	"github.com/sells-group/leadenrich-connector/internal/resilience"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// ClientFactory returns a Provider client bound to one caller's API key.
type ClientFactory func(apiKey string) bettercontact.Client

// Submission is the result of the async submit flow.
type Submission struct {
	RequestID   string         `json:"request_id" yaml:"request_id"`
	Status      string         `json:"status" yaml:"status"`
	Lead        SubmittedLead  `json:"lead" yaml:"lead"`
	APIResponse map[string]any `json:"-" yaml:"-"`
}

// SubmittedLead echoes the lead back to the caller.
type SubmittedLead struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Company   string `json:"company" yaml:"company"`
}

// Fetch is the result of a single status lookup. Data is what the caller sees:
// the Provider payload once complete, or a processing notice.
type Fetch struct {
	RequestID string         `json:"-" yaml:"-"`
	Status    string         `json:"-" yaml:"-"`
	Data      map[string]any `json:"data" yaml:"data"`
}

const processingMessage = "Enrichment is still in progress"

// Service runs the enrichment flows.
type Service struct {
	newClient ClientFactory
	breaker   *resilience.Breaker
	retry     resilience.RetryConfig
	lists     config.ListConfig
	pollOpts  []bettercontact.PollOption
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClientFactory replaces the HTTP client factory.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) { s.newClient = f }
}

// WithBreaker replaces the Provider circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithRetry replaces the fetch retry settings.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = rc }
}

// WithPollOptions appends options to every sync poll loop.
func WithPollOptions(opts ...bettercontact.PollOption) Option {
	return func(s *Service) { s.pollOpts = append(s.pollOpts, opts...) }
}

// WithIDFunc replaces the correlation id generator.
func WithIDFunc(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService wires a Service from config. All clients share one transport and
// one outbound rate limiter.
func NewService(cfg *config.Config, opts ...Option) *Service {
	breakerCfg, retryCfg := resilience.FromConfig(cfg.Resilience)

	s := &Service{
		newClient: httpClientFactory(cfg.Provider),
		breaker:   resilience.NewBreaker(breakerCfg),
		retry:     retryCfg,
		lists:     cfg.Lists,
		pollOpts:  pollOptions(cfg.Poll),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func httpClientFactory(pc config.ProviderConfig) ClientFactory {
	shared := bettercontact.NewHTTPClient()

	var limiter *rate.Limiter
	if pc.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), max(pc.Burst, 1))
	}

	opts := []bettercontact.Option{
		bettercontact.WithHTTPClient(shared),
		bettercontact.WithRateLimiter(limiter),
	}
	if pc.BaseURL != "" {
		opts = append(opts, bettercontact.WithBaseURL(pc.BaseURL))
	}
	if pc.SubmitTimeoutSecs > 0 {
		opts = append(opts, bettercontact.WithSubmitTimeout(time.Duration(pc.SubmitTimeoutSecs)*time.Second))
	}
	if pc.PollTimeoutSecs > 0 {
		opts = append(opts, bettercontact.WithPollTimeout(time.Duration(pc.PollTimeoutSecs)*time.Second))
	}

	return func(apiKey string) bettercontact.Client {
		return bettercontact.NewClient(apiKey, opts...)
	}
}

func pollOptions(pc config.PollConfig) []bettercontact.PollOption {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	var opts []bettercontact.PollOption
	if pc.BudgetSecs > 0 {
		opts = append(opts, bettercontact.WithPollBudget(pc.Budget()))
	}
	if pc.InitialWaitMs > 0 {
		opts = append(opts, bettercontact.WithPollInitialWait(ms(pc.InitialWaitMs)))
	}
	if pc.BaseDelayMs > 0 && pc.MaxDelayMs > 0 {
		opts = append(opts, bettercontact.WithPollDelay(ms(pc.BaseDelayMs), ms(pc.DelayStepMs), ms(pc.MaxDelayMs)))
	}
	if pc.GraceWaitMs > 0 {
		opts = append(opts, bettercontact.WithPollGraceWait(ms(pc.GraceWaitMs)))
	}
	return opts
}

// Submit sends one lead and returns as soon as the Provider accepts it.
func (s *Service) Submit(ctx context.Context, in LeadInput) (*Submission, error) {
	client, err := s.prepare(&in)
	if err != nil {
		return nil, err
	}

	resp, err := client.Submit(ctx, s.request(&in, s.lists.Submit))
	if err != nil {
		return nil, err
	}

	zap.L().Info("lead submitted",
		zap.String("request_id", resp.ID),
		zap.String("list", s.lists.Submit),
	)

	return &Submission{
		RequestID: resp.ID,
		Status:    string(bettercontact.StatusSubmitted),
		Lead: SubmittedLead{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Company:   in.DisplayCompany(),
		},
		APIResponse: resp.Raw,
	}, nil
}

// EnrichSync submits one lead and polls until the Provider finishes, fails,
// or the poll budget runs out.
func (s *Service) EnrichSync(ctx context.Context, in LeadInput) (*bettercontact.Result, error) {
	client, err := s.prepare(&in)
	if err != nil {
		return nil, err
	}

	resp, err := client.Submit(ctx, s.request(&in, s.lists.Sync))
	if err != nil {
		return nil, err
	}

	zap.L().Info("lead submitted, waiting for results",
		zap.String("request_id", resp.ID),
		zap.String("list", s.lists.Sync),
	)

	return bettercontact.PollJob(ctx, client, resp.ID, s.pollOpts...)
}

// Results looks up a job once. A 404 on the versioned path is retried on the
// legacy path before it is reported.
func (s *Service) Results(ctx context.Context, in ResultsInput) (*Fetch, error) {
	key, err := ResolveAPIKey(in.Connection)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.RequestID)
	if id == "" {
		return nil, bettercontact.NewValidationError("Request ID is required")
	}

	client := s.client(key)
	resp, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (*bettercontact.ResultResponse, error) {
		resp, err := client.GetResult(ctx, id)
		if err != nil || resp.StatusCode != http.StatusNotFound {
			return resp, err
		}
		zap.L().Debug("request id not found on v2 path, trying legacy path", zap.String("request_id", id))
		return client.GetLegacyResult(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	return classifyFetch(id, resp)
}

func classifyFetch(id string, resp *bettercontact.ResultResponse) (*Fetch, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		var payload map[string]any
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, bettercontact.NewProtocolError(bettercontact.OpFetch, id, "Invalid JSON response from BetterContact", err)
		}
		data := map[string]any{"status": string(bettercontact.StatusCompleted)}
		for k, v := range payload {
			data[k] = v
		}
		return &Fetch{RequestID: id, Status: string(bettercontact.StatusCompleted), Data: data}, nil
	case http.StatusAccepted:
		return &Fetch{
			RequestID: id,
			Status:    string(bettercontact.StatusProcessing),
			Data: map[string]any{
				"status":  string(bettercontact.StatusProcessing),
				"message": processingMessage,
			},
		}, nil
	case http.StatusNotFound:
		return nil, bettercontact.NewNotFoundError(bettercontact.OpFetch, id)
	case http.StatusUnauthorized:
		return nil, bettercontact.NewAuthError(bettercontact.OpFetch, "Invalid API key or unauthorized access")
	default:
		return nil, bettercontact.NewProviderError(bettercontact.OpFetch, resp.StatusCode)
	}
}

// prepare resolves the key and validates the lead, in that order, before any
// network call.
func (s *Service) prepare(in *LeadInput) (bettercontact.Client, error) {
	key, err := ResolveAPIKey(in.Connection)
	if err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.client(key), nil
}

func (s *Service) request(in *LeadInput, listName string) bettercontact.SubmitRequest {
	return bettercontact.SubmitRequest{
		Data:               []bettercontact.Lead{in.Lead(s.newID(), listName)},
		EnrichEmailAddress: in.enrichEmail(),
		EnrichPhoneNumber:  in.enrichPhone(),
	}
}

func (s *Service) client(key string) bettercontact.Client {
	return &guardedClient{next: s.newClient(key), breaker: s.breaker}
}
