// Package api assembles the HTTP surface of the lending service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/billing"
	"libralend/internal/catalog"
	"libralend/internal/circulation"
	"libralend/internal/httpio"
	"libralend/internal/overdue"
)

// Pinger checks a backing dependency for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the router exposes.
type Deps struct {
	Log         *slog.Logger
	Verifier    *auth.Verifier
	Health      Pinger
	Catalog     catalog.Service
	Circulation circulation.Service
	Billing     billing.Service
	Sweeper     *overdue.Sweeper
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	r.Get("/healthz", healthz(d.Health, d.Log))

	payments := billing.NewHandler(d.Billing, d.Log)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			// Gateway redirects carry no credentials.
			payments.CallbackRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(d.Verifier.Middleware)
				payments.Routes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Verifier.Middleware)

			r.Route("/items", catalog.NewHandler(d.Catalog, d.Log).Routes)
			r.Route("/loans", circulation.NewHandler(d.Circulation, d.Log).Routes)
			r.Route("/admin/overdue-sweep", func(r chi.Router) {
				r.Use(d.Verifier.RequireAdmin)
				overdue.NewHandler(d.Sweeper, d.Log).Routes(r)
			})
		})
	})
	return r
}

func healthz(p Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			httpio.Error(w, log, apperr.Wrap(apperr.KindInternal, "database unreachable", err))
			return
		}
		httpio.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", time.Since(start).Milliseconds(),
				"req_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
