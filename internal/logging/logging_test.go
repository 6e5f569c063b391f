package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput redirects the global logger to a buffer while f runs.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) expected error")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		format    Format
		logDebug  bool
		wantDebug bool
		wantJSON  bool
	}{
		{"json info drops debug", LevelInfo, FormatJSON, true, false, true},
		{"json debug keeps debug", LevelDebug, FormatJSON, true, true, true},
		{"text info", LevelInfo, FormatText, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.level, tt.format)
			if tt.logDebug {
				logger.Debug("debug line")
			}
			logger.Info("info line", "k", "v")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug present = %v, want %v", got, tt.wantDebug)
			}
			if !strings.Contains(out, "info line") {
				t.Error("info line missing")
			}
			if tt.wantJSON && !strings.HasPrefix(strings.TrimSpace(out), "{") {
				t.Errorf("expected JSON output, got %q", out)
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo, FormatJSON).Info("ts")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	ts, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestInitLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatText)
	defer InitLogger(LevelInfo, FormatJSON)

	GetLogger().Info("hello")
	slog.Info("via default")
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "via default") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q", got)
	}

	out := captureLogOutput(func() {
		LoggerFromContext(ctx).Info("with id")
	})
	if !strings.Contains(out, `"request_id":"abc"`) {
		t.Errorf("request_id missing from %q", out)
	}
}

func TestDomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NavigationEvent(logger, "next", "Genesis 1", "Genesis 3", "duration_ms", 820)
	ExternalCallFailed(logger, "illustration", "generate", errors.New("quota"), "key", "Genesis-1")

	out := buf.String()
	for _, want := range []string{
		`"msg":"navigation"`, `"action":"next"`, `"to":"Genesis 3"`,
		`"msg":"external_call_failed"`, `"capability":"illustration"`, `"error":"quota"`, `"key":"Genesis-1"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestGlobalHelpers(t *testing.T) {
	out := captureLogOutput(func() {
		WebSocketEvent("client_connected", 2, "client_id", "x")
		ServerStartup("web", "http", 8080)
		SecurityEvent("origin_rejected", "websocket")
	})
	for _, want := range []string{`"client_count":2`, `"server_type":"web"`, `"event":"origin_rejected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "given" {
		t.Errorf("request id = %q, want given", seen)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("x"))
	}))

	out := captureLogOutput(func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/navigate", nil))
	})
	for _, want := range []string{`"status_code":418`, `"path":"/api/navigate"`, `"request_id"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
}
