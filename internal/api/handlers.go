package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich-connector/internal/connector"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in connector.LeadInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sub, err := h.svc.Submit(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitEnvelope(sub))
}

func (h *handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	var in connector.LeadInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.EnrichSync(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncEnvelope(res))
}

func (h *handlers) handleResults(w http.ResponseWriter, r *http.Request) {
	var in connector.ResultsInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, err := h.svc.Results(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultsEnvelope(f))
}

// decode reads a JSON body into dst. An empty body leaves dst zeroed so the
// usual field checks report what is missing.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, r, bettercontact.NewValidationError("Invalid JSON body: "+err.Error()))
	return false
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := ErrorEnvelope(err)

	log := zap.L().With(
		zap.String("path", r.URL.Path),
		zap.String("req_id", middleware.GetReqID(r.Context())),
		zap.String("kind", bettercontact.KindOf(err).String()),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("enrichment request failed")
	} else {
		log.Info("enrichment request rejected")
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}
