// Package api exposes the enrichment flows over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadenrich-connector/internal/config"
	"github.com/sells-group/leadenrich-connector/internal/connector"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// Route paths.
const (
	PathSubmit  = "/modules/enrich_leads/v1/execute"
	PathSync    = "/modules/enrich_lead_sync/v1/execute"
	PathResults = "/modules/get_enrichment_results/v1/execute"
	PathHealth  = "/health"
)

const defaultHandlerTimeout = 60 * time.Second

// Enricher runs the enrichment flows. *connector.Service implements it.
type Enricher interface {
	Submit(ctx context.Context, in connector.LeadInput) (*connector.Submission, error)
	EnrichSync(ctx context.Context, in connector.LeadInput) (*bettercontact.Result, error)
	Results(ctx context.Context, in connector.ResultsInput) (*connector.Fetch, error)
}

type handlers struct {
	svc     Enricher
	timeout time.Duration
}

// NewRouter builds the HTTP handler for the connector.
func NewRouter(svc Enricher, cfg config.ServerConfig) http.Handler {
	h := &handlers{svc: svc, timeout: cfg.HandlerTimeout()}
	if h.timeout <= 0 {
		h.timeout = defaultHandlerTimeout
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get(PathHealth, handleHealth)
	r.Post(PathSubmit, h.handleSubmit)
	r.Post(PathSync, h.handleSync)
	r.Post(PathResults, h.handleResults)

	return r
}
