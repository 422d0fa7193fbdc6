package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
)

func TestRequestIDGenerated(t *testing.T) {
	var fromContext string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	header := rec.Header().Get("X-Request-Id")
	if header == "" {
		t.Fatal("X-Request-Id header missing")
	}
	if fromContext != header {
		t.Errorf("context request ID %q does not match header %q", fromContext, header)
	}
}

func TestRequestIDPreserved(t *testing.T) {
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Errorf("X-Request-Id = %q, want client-supplied-id", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := logging.New("error", "json", &bytes.Buffer{})
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Errorf("error = %v, want Internal server error", body["error"])
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", "json", &buf)
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	line := buf.String()
	if line == "" {
		t.Fatal("expected a log line")
	}
	var entry struct {
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decoding log line %q: %v", line, err)
	}
	if entry.Message != "HTTP request" {
		t.Errorf("message = %q, want HTTP request", entry.Message)
	}
	if got := entry.Fields["status_code"]; got != float64(http.StatusCreated) {
		t.Errorf("status_code = %v, want 201", got)
	}
	if got := entry.Fields["path"]; got != "/api/v1/analyses" {
		t.Errorf("path = %v, want /api/v1/analyses", got)
	}
}
