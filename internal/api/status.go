package api

import (
	"errors"
	"net/http"

	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// StatusFor maps an error to the HTTP status and message sent to callers.
// Errors outside the taxonomy become a 500 with a generic prefix.
func StatusFor(err error) (int, string) {
	var e *bettercontact.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, "Unexpected error: " + err.Error()
	}

	switch e.Kind {
	case bettercontact.KindValidation, bettercontact.KindBadRequest:
		return http.StatusBadRequest, e.Message
	case bettercontact.KindAuth:
		return http.StatusUnauthorized, e.Message
	case bettercontact.KindNotFound:
		return http.StatusNotFound, e.Message
	case bettercontact.KindInvalidRequestID:
		return http.StatusUnprocessableEntity, e.Message
	case bettercontact.KindTimeout, bettercontact.KindTimedOut:
		return http.StatusGatewayTimeout, e.Message
	case bettercontact.KindNetwork, bettercontact.KindProvider, bettercontact.KindProviderProtocol,
		bettercontact.KindUnexpectedStatus, bettercontact.KindFailed:
		return http.StatusBadGateway, e.Message
	default:
		return http.StatusInternalServerError, "Unexpected error: " + e.Message
	}
}
