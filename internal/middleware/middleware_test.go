package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docsight/docsight/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTrimSlash(t *testing.T) {
	handler := TrimSlash()(okHandler())

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantLoc  string
	}{
		{"trailing slash redirects", "/api/documents/", http.StatusMovedPermanently, "/api/documents"},
		{"clean path passes", "/api/documents", http.StatusOK, ""},
		{"root preserved", "/", http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if tc.wantLoc != "" && rec.Header().Get("Location") != tc.wantLoc {
				t.Errorf("expected redirect to %s, got %s", tc.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestTrimSlashKeepsQuery(t *testing.T) {
	handler := TrimSlash()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/search/text/?q=invoice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/api/search/text?q=invoice" {
		t.Errorf("expected query preserved, got %s", loc)
	}
}

func TestCORSDisabledPassesThrough(t *testing.T) {
	handler := CORS(&config.CORSConfig{Enabled: false})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disabled CORS must not set headers")
	}
}

func TestCORSWildcard(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled:        true,
		Origins:        []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled:        true,
		Origins:        []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected allow-origin: %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, DELETE" {
		t.Errorf("unexpected allow-methods: %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("unexpected max-age: %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled: true,
		Origins: []string{"https://app.example.com"},
	}
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not receive CORS headers")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("request still served, expected 200, got %d", rec.Code)
	}
}

func TestRequestLoggerPreservesStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status passed through, got %d", rec.Code)
	}
}
