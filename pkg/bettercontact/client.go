// Package bettercontact is a client for the BetterContact async lead
// enrichment API, plus the poll loop that waits for a submitted job to finish.
package bettercontact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrRateLimitWait means the client-side rate limiter could not hand out a
// token before the request deadline. No request reached the Provider.
var ErrRateLimitWait = errors.New("bettercontact: rate limiter wait exceeds deadline")

const (
	defaultBaseURL       = "https://app.bettercontact.rocks"
	defaultSubmitTimeout = 30 * time.Second
	defaultPollTimeout   = 10 * time.Second
	// Hard ceiling for any single request regardless of per-call timeouts.
	defaultOuterTimeout = 60 * time.Second
)

// Client defines the BetterContact async API operations.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	GetResult(ctx context.Context, id string) (*ResultResponse, error)
	GetLegacyResult(ctx context.Context, id string) (*ResultResponse, error)
}

// SubmitRequest is the body for POST /api/v2/async. The API requires Data to
// be an array even when a single lead is submitted.
type SubmitRequest struct {
	Data               []Lead `json:"data"`
	EnrichEmailAddress bool   `json:"enrich_email_address"`
	EnrichPhoneNumber  bool   `json:"enrich_phone_number"`
}

// Lead is one person to enrich.
type Lead struct {
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Company       string       `json:"company,omitempty"`
	CompanyDomain string       `json:"company_domain,omitempty"`
	LinkedInURL   string       `json:"linkedin_url,omitempty"`
	CustomFields  CustomFields `json:"custom_fields"`
}

// CustomFields are echoed back by the Provider with the results.
type CustomFields struct {
	UUID     string `json:"uuid"`
	ListName string `json:"list_name"`
}

// SubmitResponse is the parsed 201 response from POST /api/v2/async.
type SubmitResponse struct {
	ID  string
	Raw map[string]any
}

// ResultResponse is an unclassified response from a results endpoint. The
// Provider encodes job state in the status code, so callers decide what it means.
type ResultResponse struct {
	StatusCode int
	Body       []byte
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter throttles outbound requests. Limiters are usually shared
// across clients so the limit applies per process, not per API key.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithSubmitTimeout overrides the per-call timeout for submissions.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.submitTimeout = d
	}
}

// WithPollTimeout overrides the per-call timeout for result lookups.
func WithPollTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.pollTimeout = d
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
	submitTimeout time.Duration
	pollTimeout   time.Duration
}

// NewHTTPClient returns the *http.Client used when none is supplied.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultOuterTimeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient creates a BetterContact client bound to one API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		submitTimeout: defaultSubmitTimeout,
		pollTimeout:   defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient()
	}
	return c
}

func (c *httpClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "bettercontact: marshal submit request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/v2/async"), bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "bettercontact: create submit request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	code, body, err := c.do(httpReq)
	if err != nil {
		return nil, transportError(OpSubmit, "", err)
	}

	switch code {
	case http.StatusCreated:
	case http.StatusUnauthorized:
		return nil, NewAuthError(OpSubmit, "Invalid API key or unauthorized access")
	case http.StatusBadRequest:
		var payload struct {
			Message string `json:"message"`
		}
		msg := "Bad request"
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			msg = payload.Message
		}
		return nil, badRequestError(msg)
	default:
		return nil, NewProviderError(OpSubmit, code)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewProtocolError(OpSubmit, "", "Invalid response format from BetterContact submission", err)
	}
	id := requestID(raw["id"])
	if id == "" {
		return nil, NewProtocolError(OpSubmit, "", "No request ID returned from BetterContact", nil)
	}

	return &SubmitResponse{ID: id, Raw: raw}, nil
}

// requestID reads the submission id, which the Provider may send as a string
// or a number.
func requestID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func (c *httpClient) GetResult(ctx context.Context, id string) (*ResultResponse, error) {
	return c.getResult(ctx, "/api/v2/async/", id)
}

func (c *httpClient) GetLegacyResult(ctx context.Context, id string) (*ResultResponse, error) {
	return c.getResult(ctx, "/api/async/", id)
}

func (c *httpClient) getResult(ctx context.Context, prefix, id string) (*ResultResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(prefix+url.PathEscape(id)), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bettercontact: create result request")
	}

	code, body, err := c.do(httpReq)
	if err != nil {
		return nil, transportError(OpPoll, id, err)
	}
	return &ResultResponse{StatusCode: code, Body: body}, nil
}

func (c *httpClient) endpoint(path string) string {
	return c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
}

func (c *httpClient) do(req *http.Request) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return 0, nil, eris.Wrap(ctxErr, "bettercontact: rate limit wait")
			}
			return 0, nil, eris.Wrap(ErrRateLimitWait, err.Error())
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// transportError maps a failed round trip to a timeout or network error.
// The *url.Error wrapper is dropped because its text contains the API key.
func transportError(op Op, requestID string, err error) *Error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	var netErr net.Error
	if errors.Is(err, ErrRateLimitWait) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return timeoutError(op, requestID, err)
	}
	return networkError(op, requestID, err)
}
