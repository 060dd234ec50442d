package middleware

import (
	"net/http"
	"time"

	"github.com/ChrisHK/label-printer/internal/logging"

	"github.com/sirupsen/logrus"
)

// Logging is a middleware that logs HTTP requests.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		entry := logging.FromContext(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
		})
		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			entry.Error("request failed")
		case wrapped.statusCode >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
