package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/pkg/apierror"
	"github.com/ChrisHK/label-printer/pkg/response"
)

// Recovery is a middleware that recovers from panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.FromContext(r.Context()).
					WithField("panic", err).
					WithField("stack", string(debug.Stack())).
					Error("panic recovered")

				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
