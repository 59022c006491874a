package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich-connector/internal/config"
	"github.com/sells-group/leadenrich-connector/internal/connector"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

type fakeEnricher struct {
	submitFn  func(ctx context.Context, in connector.LeadInput) (*connector.Submission, error)
	syncFn    func(ctx context.Context, in connector.LeadInput) (*bettercontact.Result, error)
	resultsFn func(ctx context.Context, in connector.ResultsInput) (*connector.Fetch, error)
}

func (f *fakeEnricher) Submit(ctx context.Context, in connector.LeadInput) (*connector.Submission, error) {
	return f.submitFn(ctx, in)
}

func (f *fakeEnricher) EnrichSync(ctx context.Context, in connector.LeadInput) (*bettercontact.Result, error) {
	return f.syncFn(ctx, in)
}

func (f *fakeEnricher) Results(ctx context.Context, in connector.ResultsInput) (*connector.Fetch, error) {
	return f.resultsFn(ctx, in)
}

func serverConfig() config.ServerConfig {
	return config.ServerConfig{Port: 2003, HandlerTimeoutSecs: 60, AllowedOrigins: []string{"*"}}
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestHealth(t *testing.T) {
	h := NewRouter(&fakeEnricher{}, serverConfig())

	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitRoute(t *testing.T) {
	var got connector.LeadInput
	svc := &fakeEnricher{submitFn: func(_ context.Context, in connector.LeadInput) (*connector.Submission, error) {
		got = in
		return &connector.Submission{
			RequestID:   "req-1",
			Status:      "submitted",
			Lead:        connector.SubmittedLead{FirstName: "Ada", LastName: "Lovelace", Company: "a.io"},
			APIResponse: map[string]any{"id": "req-1", "success": true},
		}, nil
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSubmit, `{
		"connection": {"api_key_bearer": "k"},
		"first_name": "Ada", "last_name": "Lovelace", "company_domain": "a.io",
		"enrich_phone_number": false
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k", got.Connection["api_key_bearer"])
	assert.Equal(t, "Ada", got.FirstName)
	require.NotNil(t, got.EnrichPhoneNumber)
	assert.False(t, *got.EnrichPhoneNumber)
	assert.Nil(t, got.EnrichEmailAddress)

	assert.Equal(t, map[string]any{
		"request_id": "req-1",
		"status":     "submitted",
		"lead":       map[string]any{"first_name": "Ada", "last_name": "Lovelace", "company": "a.io"},
	}, out["data"])
	assert.Equal(t, map[string]any{"api_response": map[string]any{"id": "req-1", "success": true}}, out["metadata"])
}

func TestSyncRoute(t *testing.T) {
	svc := &fakeEnricher{syncFn: func(ctx context.Context, _ connector.LeadInput) (*bettercontact.Result, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "handler context should carry a deadline")
		return &bettercontact.Result{
			RequestID:    "req-2",
			Payload:      json.RawMessage(`{"data":[{"contact_email_address":"ada@a.io"}]}`),
			Elapsed:      7500 * time.Millisecond,
			PollAttempts: 3,
			Status:       bettercontact.StatusCompleted,
		}, nil
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSync, `{"connection":{"api_key_bearer":"k"},"first_name":"Ada","last_name":"L","company":"A"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"data": []any{map[string]any{"contact_email_address": "ada@a.io"}}}, out["data"])
	assert.Equal(t, map[string]any{
		"request_id":              "req-2",
		"processing_time_seconds": 7.5,
		"poll_attempts":           float64(3),
		"status":                  "completed",
	}, out["metadata"])
}

func TestResultsRoute(t *testing.T) {
	svc := &fakeEnricher{resultsFn: func(_ context.Context, in connector.ResultsInput) (*connector.Fetch, error) {
		assert.Equal(t, "req-3", in.RequestID)
		return &connector.Fetch{
			RequestID: "req-3",
			Status:    "processing",
			Data:      map[string]any{"status": "processing", "message": "Enrichment is still in progress"},
		}, nil
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathResults, `{"connection":{"api_key_bearer":"k"},"request_id":"req-3"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", out["data"].(map[string]any)["status"])
	assert.Equal(t, map[string]any{"status": "processing"}, out["metadata"])
}

func TestErrorEnvelope(t *testing.T) {
	timedOut := &bettercontact.Error{
		Kind:      bettercontact.KindTimedOut,
		Message:   "Enrichment timeout after 45 seconds. The request may still be processing. Request ID: r9",
		RequestID: "r9",
		Status:    "timeout",
		Elapsed:   45 * time.Second,
	}
	svc := &fakeEnricher{syncFn: func(context.Context, connector.LeadInput) (*bettercontact.Result, error) {
		return nil, eris.Wrap(timedOut, "connector: enrich sync")
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSync, `{}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, timedOut.Message, out["error"])
	assert.Equal(t, map[string]any{
		"request_id":      "r9",
		"status":          "timeout",
		"elapsed_seconds": float64(45),
	}, out["data"])
}

func TestErrorEnvelope_NoDiagnostics(t *testing.T) {
	svc := &fakeEnricher{submitFn: func(context.Context, connector.LeadInput) (*connector.Submission, error) {
		return nil, bettercontact.NewValidationError("First name is required")
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSubmit, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "First name is required", out["error"])
	_, hasData := out["data"]
	assert.False(t, hasData)
}

func TestInvalidJSONBody(t *testing.T) {
	svc := &fakeEnricher{submitFn: func(context.Context, connector.LeadInput) (*connector.Submission, error) {
		t.Fatal("service called with bad body")
		return nil, nil
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSubmit, `{"first_name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "Invalid JSON body")
}

func TestEmptyBodyReachesService(t *testing.T) {
	called := false
	svc := &fakeEnricher{resultsFn: func(context.Context, connector.ResultsInput) (*connector.Fetch, error) {
		called = true
		return nil, bettercontact.NewAuthError("", "API key not found in connection")
	}}
	h := NewRouter(svc, serverConfig())

	req := httptest.NewRequest(http.MethodPost, PathResults, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPanicBecomesEnvelope(t *testing.T) {
	svc := &fakeEnricher{submitFn: func(context.Context, connector.LeadInput) (*connector.Submission, error) {
		panic("boom")
	}}
	h := NewRouter(svc, serverConfig())

	rec, out := post(t, h, PathSubmit, `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unexpected error: boom", out["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(&fakeEnricher{}, serverConfig())

	req := httptest.NewRequest(http.MethodOptions, PathSync, nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewRouter(&fakeEnricher{}, serverConfig())

	req := httptest.NewRequest(http.MethodGet, PathSubmit, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerTimeoutApplied(t *testing.T) {
	cfg := serverConfig()
	cfg.HandlerTimeoutSecs = 1
	svc := &fakeEnricher{syncFn: func(ctx context.Context, _ connector.LeadInput) (*bettercontact.Result, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		return nil, &bettercontact.Error{Kind: bettercontact.KindTimeout, Message: "Timeout while checking enrichment results. Request ID: r"}
	}}
	h := NewRouter(svc, cfg)

	rec, _ := post(t, h, PathSync, `{}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
