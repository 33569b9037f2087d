package server

import (
	"net/http"
	"strings"
	"time"

	"newsroom/internal/logger"
)

// requireAdmin guards mutating routes with the configured bearer token.
// With no token configured, mutating routes are unavailable.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.Server.AdminToken
		if token == "" {
			writeError(w, http.StatusServiceUnavailable, "admin token not configured")
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			writeError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
