package response

import (
	"encoding/json"
	"net/http"

	"github.com/ChrisHK/label-printer/pkg/apierror"
)

// JSON sends body as JSON with the given status code.
func JSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, body any) {
	JSON(w, http.StatusOK, body)
}

// Error sends an error response. Errors that are not already API errors are
// mapped with apierror.FromError.
func Error(w http.ResponseWriter, err error) {
	apiErr := apierror.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}
