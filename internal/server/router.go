package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/rstile/internal/api"
)

// NewRouter mounts s under /api/v1 behind the standard middleware stack.
// Browsers may call the API from the listed origins only.
func NewRouter(s *Server, timeout time.Duration, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(s.cors(origins))

	r.Route("/api/v1", func(r chi.Router) {
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter: r,
		})
	})

	// Health without the version prefix
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// cors answers browsers calling from one of origins. Requests carrying any
// other Origin may only read: jobs write files on the server.
func (s *Server) cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowed[origin] {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					next.ServeHTTP(w, r)
					return
				}
				requestID := middleware.GetReqID(r.Context())
				s.writeErrorResponse(w, http.StatusForbidden, "ORIGIN_NOT_ALLOWED",
					fmt.Sprintf("Origin %s may not call %s", origin, r.Method), &requestID, nil)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
