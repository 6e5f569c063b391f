package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddlewareAllowAll(t *testing.T) {
	handler := CORSMiddlewareWithConfig(CORSConfig{}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header to allow all origins")
	}
	if resp.Header.Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials must not be allowed with wildcard origin")
	}
}

func TestCORSMiddlewareWithConfigRestrictedOrigins(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://example.com", "https://trusted.com"}}
	handler := CORSMiddlewareWithConfig(cfg, okHandler())

	tests := []struct {
		name              string
		origin            string
		method            string
		expectStatus      int
		expectAllowOrigin string
	}{
		{"allowed origin", "https://example.com", http.MethodGet, http.StatusOK, "https://example.com"},
		{"another allowed origin", "https://trusted.com", http.MethodGet, http.StatusOK, "https://trusted.com"},
		{"disallowed origin", "https://evil.com", http.MethodGet, http.StatusOK, ""},
		{"disallowed preflight", "https://evil.com", http.MethodOptions, http.StatusForbidden, ""},
		{"allowed preflight", "https://example.com", http.MethodOptions, http.StatusOK, "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/spread", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllowOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.expectAllowOrigin)
			}
			if tt.expectAllowOrigin != "" && w.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected credentials header for specific origin")
			}
		})
	}
}

func TestAbsPath(t *testing.T) {
	if got := AbsPath("/already/abs"); got != "/already/abs" {
		t.Errorf("AbsPath(abs) = %q", got)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := AbsPath("reader.db"); got != filepath.Join(wd, "reader.db") {
		t.Errorf("AbsPath(rel) = %q", got)
	}
}

func TestTimingMiddleware(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  string
	}{
		{"fast request", 0, "request timing"},
		{"slow request", SlowRequestThreshold + 20*time.Millisecond, "slow request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			handler := TimingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(tt.delay)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/books", nil))

			if !strings.Contains(buf.String(), tt.want) || !strings.Contains(buf.String(), "/api/books") {
				t.Errorf("log = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
