package middleware

import (
	"net/http"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSMiddleware configures CORS for the JSON API. Outside production every origin is allowed.
func CORSMiddleware(cfg config.ServerConfig) func(http.Handler) http.Handler {
	allowedOrigins := cfg.AllowedOrigins
	switch {
	case !cfg.IsProduction():
		allowedOrigins = []string{"*"}
	case len(allowedOrigins) == 0:
		allowedOrigins = []string{cfg.BaseURL}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})
}

// DefaultMiddlewareStack returns a stack of commonly used middleware
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5),
	}
}
