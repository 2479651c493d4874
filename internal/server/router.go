package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookloan/internal/auth"
	"bookloan/internal/catalog"
	"bookloan/internal/circulation"
	"bookloan/internal/httpx"
	"bookloan/internal/membership"
)

// Handlers are the per-domain HTTP handlers the router dispatches to.
type Handlers struct {
	Catalog     *catalog.Handler
	Circulation *circulation.Handler
	Membership  *membership.Handler
}

// NewRouter builds the HTTP surface. Everything under /api/v1 requires a
// forwarded identity; administrative routes also require the ADMIN role.
func NewRouter(h Handlers, health func(context.Context) error, logger *slog.Logger) http.Handler {
	admin := auth.RequireAdmin(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "error", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(logger))

		r.Route("/borrowings", func(r chi.Router) {
			r.Post("/", h.Circulation.HandleBorrow)
			r.Get("/", h.Circulation.HandleSearch)
			r.With(admin).Get("/overdue", h.Circulation.HandleOverdue)
			r.Put("/{id}/return", h.Circulation.HandleReturn)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/availability/stream", h.Catalog.HandleAvailabilityStream)
			r.Get("/{id}", h.Catalog.HandleGetBook)
			r.With(admin).Post("/", h.Catalog.HandleAddBook)
			r.With(admin).Delete("/{id}", h.Catalog.HandleDeleteBook)
			r.With(admin).Put("/{id}/release", h.Circulation.HandleRelease)
		})

		r.Route("/members", func(r chi.Router) {
			r.Use(admin)
			r.Get("/{id}", h.Membership.HandleGetMember)
			r.Put("/{id}/status", h.Membership.HandleUpdateStatus)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
