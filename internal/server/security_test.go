package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReaderCSPAllowsDataImages(t *testing.T) {
	header := ReaderCSPConfig().BuildCSPHeader()
	if !strings.Contains(header, "img-src 'self' data:") {
		t.Errorf("reader CSP = %q, want data: images", header)
	}
	if !strings.Contains(header, "frame-ancestors 'none'") {
		t.Errorf("reader CSP = %q, want frame-ancestors none", header)
	}
}

func TestBuildCSPHeader(t *testing.T) {
	tests := []struct {
		name string
		cfg  CSPConfig
		want string
	}{
		{"empty", CSPConfig{}, ""},
		{"api", APICSPConfig(), "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"},
		{"partial", CSPConfig{DefaultSrc: []string{"'self'"}, ConnectSrc: []string{"'self'", "ws:"}}, "default-src 'self'; connect-src 'self' ws:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildCSPHeader(); got != tt.want {
				t.Errorf("BuildCSPHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(APICSPConfig(), okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": APICSPConfig().BuildCSPHeader(),
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestSanitizeUserInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  a note  ", "a note"},
		{"line one\nline two", "line one\nline two"},
		{"bell\x07 and null\x00", "bell and null"},
		{"tab\there", "tab\there"},
		{"del\x7f", "del"},
	}
	for _, tt := range tests {
		if got := SanitizeUserInput(tt.input); got != tt.want {
			t.Errorf("SanitizeUserInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLimitStringLength(t *testing.T) {
	if got := LimitStringLength("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := LimitStringLength("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
	// "é" is two bytes; cutting inside it backs off to the rune start.
	if got := LimitStringLength("aé", 2); got != "a" {
		t.Errorf("got %q", got)
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"application/json"}
	if !ValidateContentType("application/json; charset=utf-8", allowed) {
		t.Error("json with charset rejected")
	}
	if !ValidateContentType("Application/JSON", allowed) {
		t.Error("case-insensitive match failed")
	}
	if ValidateContentType("text/plain", allowed) {
		t.Error("text/plain accepted")
	}
}
