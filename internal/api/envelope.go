package api

import (
	"errors"

	"github.com/sells-group/leadenrich-connector/internal/connector"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// Envelope is the success body shared by the HTTP routes and the CLI.
type Envelope struct {
	Data     any            `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorBody is the failure body. Data carries request_id, status and
// elapsed_seconds when the error has them.
type ErrorBody struct {
	Error string         `json:"error"`
	Data  map[string]any `json:"data,omitempty"`
}

// SubmitEnvelope shapes an async submission.
func SubmitEnvelope(sub *connector.Submission) Envelope {
	return Envelope{
		Data:     sub,
		Metadata: map[string]any{"api_response": sub.APIResponse},
	}
}

// SyncEnvelope shapes a completed sync enrichment. The Provider payload is
// passed through untouched.
func SyncEnvelope(res *bettercontact.Result) Envelope {
	return Envelope{
		Data: res.Payload,
		Metadata: map[string]any{
			"request_id":              res.RequestID,
			"processing_time_seconds": res.Elapsed.Seconds(),
			"poll_attempts":           res.PollAttempts,
			"status":                  string(res.Status),
		},
	}
}

// ResultsEnvelope shapes a status lookup.
func ResultsEnvelope(f *connector.Fetch) Envelope {
	return Envelope{
		Data:     f.Data,
		Metadata: map[string]any{"status": f.Status},
	}
}

// ErrorEnvelope returns the HTTP status and body for err.
func ErrorEnvelope(err error) (int, ErrorBody) {
	status, msg := StatusFor(err)
	body := ErrorBody{Error: msg}

	var e *bettercontact.Error
	if errors.As(err, &e) {
		body.Data = e.Diagnostics()
	}
	return status, body
}
