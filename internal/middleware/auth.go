package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ChrisHK/label-printer/pkg/apierror"
	"github.com/ChrisHK/label-printer/pkg/response"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	APIKeys []string

	// Public paths skip authentication.
	Public []string
}

// NewAuthMiddleware requires a valid API key in X-API-Key or an
// "Authorization: Bearer" header. With no keys configured every request passes.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	public := make(map[string]struct{}, len(cfg.Public))
	for _, p := range cfg.Public {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(cfg.APIKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				response.Error(w, apierror.Unauthorized("Authentication required. Use X-API-Key or Authorization header."))
				return
			}
			if !isValidKey(apiKey, cfg.APIKeys) {
				response.Error(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
