package bettercontact

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an enrichment failure.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that are not *Error.
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindBadRequest
	KindNotFound
	KindInvalidRequestID
	KindTimeout
	KindNetwork
	KindProviderProtocol
	KindProvider
	KindUnexpectedStatus
	KindFailed
	KindTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindInvalidRequestID:
		return "invalid_request_id"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindProviderProtocol:
		return "provider_protocol"
	case KindProvider:
		return "provider"
	case KindUnexpectedStatus:
		return "unexpected_status"
	case KindFailed:
		return "failed"
	case KindTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Op names the phase of the enrichment flow an error came from.
type Op string

const (
	OpSubmit Op = "submission"
	OpPoll   Op = "polling"
	OpFetch  Op = "fetch"
)

// Error is the single error type surfaced by the client and the poll loop.
// Message is the human-readable text shown to callers.
type Error struct {
	Kind       Kind
	Op         Op
	Message    string
	RequestID  string
	Status     string
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostics returns the fields worth echoing back to the caller alongside
// the message. It returns nil when there is nothing to report.
func (e *Error) Diagnostics() map[string]any {
	d := map[string]any{}
	if e.RequestID != "" {
		d["request_id"] = e.RequestID
	}
	if e.Status != "" {
		d["status"] = e.Status
	}
	if e.Kind == KindTimedOut {
		d["elapsed_seconds"] = e.Elapsed.Seconds()
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// NewValidationError reports invalid caller input. No network call has been made.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewAuthError reports a missing or rejected API key.
func NewAuthError(op Op, msg string) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: msg}
}

func badRequestError(msg string) *Error {
	return &Error{
		Kind:       KindBadRequest,
		Op:         OpSubmit,
		Message:    "Invalid request: " + msg,
		StatusCode: 400,
	}
}

// NewProviderError reports a non-success status the caller has no specific
// handling for.
func NewProviderError(op Op, code int) *Error {
	verb := "submission"
	if op != OpSubmit {
		verb = "request"
	}
	return &Error{
		Kind:       KindProvider,
		Op:         op,
		Message:    fmt.Sprintf("API %s failed with status %d", verb, code),
		StatusCode: code,
	}
}

// NewProtocolError reports a Provider response that could not be understood.
func NewProtocolError(op Op, requestID, msg string, err error) *Error {
	return &Error{
		Kind:      KindProviderProtocol,
		Op:        op,
		Message:   msg,
		RequestID: requestID,
		Err:       err,
	}
}

func timeoutError(op Op, requestID string, err error) *Error {
	msg := "Timeout while submitting lead for enrichment"
	if op != OpSubmit {
		msg = "Timeout while checking enrichment results. Request ID: " + requestID
	}
	return &Error{Kind: KindTimeout, Op: op, Message: msg, RequestID: requestID, Err: err}
}

func networkError(op Op, requestID string, err error) *Error {
	msg := "Network error: Unable to connect to BetterContact API"
	if op != OpSubmit {
		msg = "Network error while checking results. Request ID: " + requestID
	}
	return &Error{Kind: KindNetwork, Op: op, Message: msg, RequestID: requestID, Err: err}
}

// NewNotFoundError reports an unknown or expired request id.
func NewNotFoundError(op Op, requestID string) *Error {
	msg := fmt.Sprintf("Request ID '%s' not found. It may have expired or been invalid.", requestID)
	if op == OpFetch {
		msg = fmt.Sprintf("Request ID '%s' not found", requestID)
	}
	return &Error{
		Kind:       KindNotFound,
		Op:         op,
		Message:    msg,
		RequestID:  requestID,
		StatusCode: 404,
	}
}

func invalidRequestIDError(requestID string) *Error {
	return &Error{
		Kind:       KindInvalidRequestID,
		Op:         OpPoll,
		Message:    "Invalid request ID format: " + requestID,
		RequestID:  requestID,
		StatusCode: 406,
	}
}

func unexpectedStatusError(requestID string, code int) *Error {
	return &Error{
		Kind:       KindUnexpectedStatus,
		Op:         OpPoll,
		Message:    fmt.Sprintf("Unexpected response status %d while checking results", code),
		RequestID:  requestID,
		StatusCode: code,
	}
}

func failedError(requestID, status, msg string) *Error {
	if msg == "" {
		msg = "Enrichment failed"
	}
	return &Error{
		Kind:      KindFailed,
		Op:        OpPoll,
		Message:   "Enrichment failed: " + msg,
		RequestID: requestID,
		Status:    status,
	}
}

func timedOutError(requestID string, budget, elapsed time.Duration) *Error {
	return &Error{
		Kind: KindTimedOut,
		Op:   OpPoll,
		Message: fmt.Sprintf(
			"Enrichment timeout after %g seconds. The request may still be processing. Request ID: %s",
			budget.Seconds(), requestID,
		),
		RequestID: requestID,
		Status:    "timeout",
		Elapsed:   elapsed,
	}
}
