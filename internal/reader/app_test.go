package reader

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/narration"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

type idlePlayback struct{ done chan error }

func (p *idlePlayback) Pause() error  { return nil }
func (p *idlePlayback) Resume() error { return nil }
func (p *idlePlayback) Stop() error {
	select {
	case p.done <- nil:
	default:
	}
	return nil
}
func (p *idlePlayback) Done() <-chan error { return p.done }

func (s *recordingSpeaker) Start(_ context.Context, u narration.Utterance) (narration.Playback, error) {
	s.mu.Lock()
	s.texts = append(s.texts, u.Text)
	s.mu.Unlock()
	return &idlePlayback{done: make(chan error, 1)}, nil
}

type solidGenerator struct{}

func (solidGenerator) Generate(context.Context, illustration.Request) ([]byte, error) {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	return buf.Bytes(), nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Navigation = config.NavigationConfig{
		TransitionOut:  time.Millisecond,
		RenderSettle:   time.Millisecond,
		NoticeDuration: 50 * time.Millisecond,
	}
	cfg.Narration.Command = ""
	return cfg
}

func openTestApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	app, err := Open(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOpenDefaults(t *testing.T) {
	app := openTestApp(t, testConfig(), Options{})

	cur := app.Navigator.State().Current
	if cur.Book.Name != "Genesis" || cur.ChapterNumber() != 1 {
		t.Errorf("start = %s, want Genesis 1", cur)
	}
	if key, _ := app.Display.Current(); key != "Genesis-1" {
		t.Errorf("display key = %q", key)
	}
	if app.Assist != nil {
		t.Error("assist client created without a base URL")
	}
}

func TestStartCoordinate(t *testing.T) {
	app := openTestApp(t, testConfig(), Options{})

	tests := []struct {
		query string
		want  string
	}{
		{"", "Genesis 1"},
		{"Psalms 23", "Psalms 23"},
		{"#/Psalms/8", "Psalms 1"},
		{"16 so loved the world", "John 3"},
	}
	for _, tt := range tests {
		got, err := app.StartCoordinate(tt.query)
		if err != nil {
			t.Errorf("StartCoordinate(%q) error = %v", tt.query, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("StartCoordinate(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}

	if _, err := app.StartCoordinate("xyzzy"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("StartCoordinate(xyzzy) error = %v", err)
	}
}

func TestOpenBadStart(t *testing.T) {
	cfg := testConfig()
	cfg.Corpus.Start = "xyzzy"
	if _, err := Open(context.Background(), cfg, Options{Logger: logging.Discard()}); err == nil {
		t.Error("Open() with unknown start should fail")
	}
}

func TestNavigationMovesDisplay(t *testing.T) {
	app := openTestApp(t, testConfig(), Options{})

	started, err := app.Navigator.Navigate(ref.Next)
	if err != nil || !started {
		t.Fatalf("Navigate() = %v, %v", started, err)
	}
	waitFor(t, func() bool { return !app.Navigator.State().Transitioning })

	if key, _ := app.Display.Current(); key != "Genesis-3" {
		t.Errorf("display key = %q, want Genesis-3", key)
	}
}

func TestIllustrate(t *testing.T) {
	app := openTestApp(t, testConfig(), Options{})

	if _, _, err := app.Illustrate(context.Background()); !apperrors.Is(err, apperrors.ErrExternal) {
		t.Errorf("Illustrate() without generator error = %v", err)
	}

	app.Illustrations = illustration.New(illustration.Options{Generator: solidGenerator{}, Logger: logging.Discard()})
	img, shown, err := app.Illustrate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !shown || img.Key != "Genesis-1" {
		t.Errorf("Illustrate() = %+v, shown %v", img, shown)
	}
	if _, cur := app.Display.Current(); cur != img {
		t.Error("display not showing generated image")
	}
}

func TestNarrateCurrent(t *testing.T) {
	sp := &recordingSpeaker{}
	app := openTestApp(t, testConfig(), Options{Speaker: sp})

	if err := app.NarrateCurrent(); err != nil {
		t.Fatal(err)
	}
	sp.mu.Lock()
	first := sp.texts[0]
	sp.mu.Unlock()
	if first != "Book of Genesis, chapter 1." {
		t.Errorf("first utterance = %q", first)
	}
	if !app.Narration.State().Speaking {
		t.Error("not speaking")
	}

	// Turning the page cancels narration.
	app.Navigator.Navigate(ref.Next)
	if app.Narration.State().Speaking {
		t.Error("narration survived a page turn")
	}
}

func TestNarrateWithoutEngine(t *testing.T) {
	app := openTestApp(t, testConfig(), Options{})
	if err := app.NarrateCurrent(); !apperrors.Is(err, apperrors.ErrExternal) {
		t.Errorf("NarrateCurrent() error = %v", err)
	}
}

func TestNotesPersistInSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "reader.db")

	app, err := Open(context.Background(), cfg, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	app.Notes.Set(context.Background(), "Genesis-1-1", "first light")
	if err := app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	reopened := openTestApp(t, cfg, Options{})
	if got := reopened.Notes.Get("Genesis-1-1"); got != "first light" {
		t.Errorf("note after reopen = %q", got)
	}
}

func TestOpenAssist(t *testing.T) {
	cfg := testConfig()
	cfg.Assist.BaseURL = "http://127.0.0.1:1"
	app := openTestApp(t, cfg, Options{})
	if app.Assist == nil {
		t.Fatal("assist client not created")
	}
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "missing.json") {
		t.Errorf("LoadCorpus() error = %v", err)
	}
}
