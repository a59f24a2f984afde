package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/directory"
	"github.com/mkarlsen/scimgate/internal/metrics"
	"github.com/mkarlsen/scimgate/internal/ratelimit"
	"github.com/mkarlsen/scimgate/internal/scim"
	"github.com/mkarlsen/scimgate/internal/token"
)

// RouterDeps holds all dependencies for the HTTP router.
type RouterDeps struct {
	SCIMService    *scim.Service
	DirectoryStore *directory.Store
	TokenStore     *token.Store
	Auth           *auth.Service
	Usage          auth.UsageRecorder
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	AdminKey       string
	AllowedOrigins []string

	// Ping checks database connectivity for the health endpoint. Optional;
	// when nil the endpoint reports ok unconditionally.
	Ping func(ctx context.Context) error
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(deps.AllowedOrigins))
	}
	r.Use(slogRequestLogger)

	// Handlers.
	users := newUsersHandler(deps.SCIMService, deps.Metrics)
	orgs := newOrganizationsHandler(deps.DirectoryStore)
	tokens := newTokensHandler(deps.TokenStore, deps.DirectoryStore)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				slog.Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	// Capability document, probed by identity providers before auth is set up.
	r.Get("/scim/v2/ServiceProviderConfig", ServiceProviderConfigHandler)

	// SCIM routes (require provisioning token + rate limiting).
	r.Route("/scim/v2", func(sr chi.Router) {
		sr.Use(auth.TokenAuthMiddleware(deps.Auth, deps.Usage))
		if deps.Limiter != nil {
			sr.Use(ratelimit.Middleware(deps.Limiter, func() {
				if deps.Metrics != nil {
					deps.Metrics.IncRateLimitRejection("organization")
				}
			}))
		}
		if deps.Metrics != nil {
			sr.Use(metricsMiddleware(deps.Metrics, "scim"))
		}

		sr.Get("/Users", users.ListUsers)
		sr.Post("/Users", users.CreateUser)
		sr.Get("/Users/{id}", users.GetUser)
		sr.Put("/Users/{id}", users.ReplaceUser)
		sr.Patch("/Users/{id}", users.PatchUser)
		sr.Delete("/Users/{id}", users.DeactivateUser)
	})

	// Admin routes (require admin key).
	r.Route("/admin/v1", func(ar chi.Router) {
		ar.Use(auth.AdminAuthMiddleware(deps.AdminKey))
		if deps.Metrics != nil {
			ar.Use(metricsMiddleware(deps.Metrics, "admin"))
		}

		ar.Post("/organizations", orgs.CreateOrganization)
		ar.Get("/organizations", orgs.ListOrganizations)
		ar.Get("/organizations/{id}", orgs.GetOrganization)

		ar.Post("/organizations/{id}/tokens", tokens.IssueToken)
		ar.Get("/organizations/{id}/tokens", tokens.ListTokens)
		ar.Delete("/tokens/{id}", tokens.RevokeToken)
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
