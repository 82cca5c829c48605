// Package httptransport is the thin HTTP layer over the identity services.
// Handlers delegate to domain services and translate coded errors; no
// business logic lives here.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secureid/internal/platform/metrics"
	"secureid/internal/platform/middleware"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Identity     *IdentityHandler
	Verification *VerificationHandler
	Validator    middleware.JWTValidator
	HTTPMetrics  *metrics.HTTP
	Registry     *prometheus.Registry
	Health       func(r *http.Request) error
}

// NewRouter wires middleware and endpoints. Holder-scoped mutations sit
// behind bearer auth; verification endpoints are public, a verifier has no
// holder credential.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	deps.Identity.Register(r, middleware.RequireAuth(deps.Validator, deps.Identity.logger))
	deps.Verification.Register(r, middleware.RequireAuth(deps.Validator, deps.Verification.logger))
	return r
}
