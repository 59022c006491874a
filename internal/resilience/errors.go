package resilience

import (
	"context"
	"errors"

	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// IsOutage reports whether err says the Provider itself is unhealthy:
// unreachable, too slow, or answering with a 5xx. Cancellation and local
// rate limiting are never an outage.
func IsOutage(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, bettercontact.ErrRateLimitWait) {
		return false
	}

	var e *bettercontact.Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Kind {
	case bettercontact.KindNetwork, bettercontact.KindTimeout:
		return true
	case bettercontact.KindProvider, bettercontact.KindUnexpectedStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsRetryable reports whether a read-only call that failed with err can be
// safely repeated. Only connection failures qualify; a timeout has already
// spent its share of the request deadline.
func IsRetryable(err error) bool {
	return bettercontact.IsKind(err, bettercontact.KindNetwork)
}
