package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ChrisHK/label-printer/pkg/uid"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	h := NewAuthMiddleware(AuthConfig{APIKeys: []string{"secret"}, Public: []string{"/health"}})(okHandler)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"no key", "/api/v1/data-process/logs", nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/data-process/logs", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"api key header", "/api/v1/data-process/logs", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", "/api/v1/data-process/logs", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"public path", "/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	h := NewAuthMiddleware(AuthConfig{})(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data-process/logs", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !uid.IsValid(seen) || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	given := uid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", given)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != given {
		t.Errorf("request id = %q, want %q", seen, given)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
