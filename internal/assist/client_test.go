package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newTestClient(t *testing.T, h http.Handler, ttl time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", AnswerTTL: ttl, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLocate(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/locate" || r.Method != http.MethodPost {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req locateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Prompt != LocatePrompt("the good shepherd") {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(locateResponse{Text: " \"Psalms 23\"\n"})
	}), time.Minute)

	got, err := c.Locate(context.Background(), "the good shepherd")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got != "Psalms 23" {
		t.Errorf("Locate() = %q, want Psalms 23", got)
	}

	// Answers are reused for the same folded query.
	if _, err := c.Locate(context.Background(), "The Good Shepherd"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestLocatePrompt(t *testing.T) {
	want := `User search "shepherd". Return the most relevant Bible Book and Chapter. Format: "Book Chapter". Example: "Psalms 23". If not found, "Not found".`
	if got := LocatePrompt("shepherd"); got != want {
		t.Errorf("LocatePrompt() = %q", got)
	}
}

func TestLocateNotFound(t *testing.T) {
	for _, answer := range []string{"Not found", "not found", ""} {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(locateResponse{Text: answer})
		}), 0)

		if _, err := c.Locate(context.Background(), "xyzzy"); !errors.Is(err, nav.ErrLocatorNoMatch) {
			t.Errorf("answer %q: error = %v, want ErrLocatorNoMatch", answer, err)
		}
	}
}

func TestLocateFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, time.Minute)
			_, err := c.Locate(context.Background(), "shepherd")
			if !apperrors.Is(err, apperrors.ErrExternal) {
				t.Fatalf("error = %v, want external error", err)
			}
			var ext *apperrors.ExternalError
			if !apperrors.As(err, &ext) || ext.Capability != "search" {
				t.Errorf("error = %#v", err)
			}
		})
	}
}

func TestLocateStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}), 0)

	_, err := c.Locate(context.Background(), "shepherd")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests || se.Body != "quota exceeded" {
		t.Errorf("error = %v", err)
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/illustrate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req illustration.Request
		json.NewDecoder(r.Body).Decode(&req)
		if req.BookName != "Genesis" || req.ChapterNumber != 1 || !strings.HasPrefix(req.Prompt, "Art for Genesis 1") {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}), 0)

	data, err := c.Generate(context.Background(), illustration.Request{
		BookName: "Genesis", ChapterNumber: 1, Prompt: illustration.Prompt("Genesis", 1),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(data) != string(pngHeader) {
		t.Errorf("data = %v", data)
	}
}

func TestGenerateEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), 0)
	if _, err := c.Generate(context.Background(), illustration.Request{}); err == nil {
		t.Error("Generate() with empty reply should fail")
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Locate(context.Background(), "shepherd"); !apperrors.Is(err, apperrors.ErrExternal) {
		t.Errorf("error = %v, want external error", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("New() error = %v", err)
	}
}
