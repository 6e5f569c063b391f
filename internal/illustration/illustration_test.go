package illustration

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/cas"
	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeGenerator struct {
	calls   atomic.Int32
	data    []byte
	err     error
	release chan struct{}

	mu      sync.Mutex
	reqs    []Request
	ctxErrs []error
}

func (g *fakeGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.data, nil
}

func genesis() *corpus.Book {
	return &corpus.Book{Name: "Genesis", Abbrev: "gen", Chapters: []corpus.Chapter{
		{Number: 1, Verses: []corpus.Verse{{Number: 1, Text: "In the beginning."}}},
		{Number: 2, Verses: []corpus.Verse{{Number: 1, Text: "Thus the heavens."}}},
	}}
}

func TestPrompt(t *testing.T) {
	want := "Art for Genesis 1. Biblical scene, oil painting, high drama."
	if got := Prompt("Genesis", 1); got != want {
		t.Errorf("Prompt() = %q, want %q", got, want)
	}
}

func TestGetGeneratesOnce(t *testing.T) {
	gen := &fakeGenerator{data: pngBytes(t, 4, 4)}
	c := New(Options{Generator: gen, Logger: logging.Discard()})
	book := genesis()

	img, err := c.Get(context.Background(), corpus.At(book, 0))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if img.Key != "Genesis-1" || img.MIME != "image/png" {
		t.Errorf("image = %+v", img)
	}
	if img.ETag != `"`+cas.Hash(img.Data)+`"` {
		t.Errorf("ETag = %s", img.ETag)
	}
	if !strings.HasPrefix(img.DataURL(), "data:image/png;base64,") {
		t.Errorf("DataURL() = %.40s", img.DataURL())
	}

	if _, err := c.Get(context.Background(), corpus.At(book, 0)); err != nil {
		t.Fatal(err)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}

	req := gen.reqs[0]
	if req.BookName != "Genesis" || req.ChapterNumber != 1 || req.Prompt != Prompt("Genesis", 1) {
		t.Errorf("request = %+v", req)
	}
}

func TestGetConcurrentSingleFlight(t *testing.T) {
	gen := &fakeGenerator{data: pngBytes(t, 4, 4), release: make(chan struct{})}
	c := New(Options{Generator: gen, Logger: logging.Discard()})
	coord := corpus.At(genesis(), 1)

	var wg sync.WaitGroup
	results := make([]*Image, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := c.Get(context.Background(), coord)
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			results[i] = img
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
	for i, img := range results {
		if img != results[0] {
			t.Errorf("result %d differs from result 0", i)
		}
	}
}

func TestGetSurvivesFirstCallerCancel(t *testing.T) {
	gen := &fakeGenerator{data: pngBytes(t, 4, 4), release: make(chan struct{})}
	c := New(Options{Generator: gen, Logger: logging.Discard()})
	coord := corpus.At(genesis(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, coord)
		firstErr <- err
	}()
	for gen.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan *Image, 1)
	go func() {
		img, err := c.Get(context.Background(), coord)
		if err != nil {
			t.Errorf("second Get() error = %v", err)
		}
		second <- img
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first Get() error = %v, want context.Canceled", err)
	}

	close(gen.release)
	if img := <-second; img == nil || img.Key != "Genesis-1" {
		t.Fatalf("second Get() = %+v", img)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.ctxErrs[0] != nil {
		t.Errorf("generation context = %v, want live", gen.ctxErrs[0])
	}
	if _, ok := c.Peek("Genesis-1"); !ok {
		t.Error("generated image not cached")
	}
}

func TestGetFailureNotCached(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	c := New(Options{Generator: gen, Logger: logging.Discard()})
	coord := corpus.At(genesis(), 0)

	_, err := c.Get(context.Background(), coord)
	if !apperrors.Is(err, apperrors.ErrExternal) {
		t.Fatalf("Get() error = %v, want external error", err)
	}
	var ext *apperrors.ExternalError
	if !apperrors.As(err, &ext) || ext.Capability != "illustration" {
		t.Errorf("error = %#v", err)
	}
	if _, ok := c.Peek("Genesis-1"); ok {
		t.Error("failure was cached")
	}

	gen.err = nil
	gen.data = pngBytes(t, 2, 2)
	if _, err := c.Get(context.Background(), coord); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if n := gen.calls.Load(); n != 2 {
		t.Errorf("generator called %d times, want 2", n)
	}
}

func TestGetRejectsNonImage(t *testing.T) {
	gen := &fakeGenerator{data: []byte("Not found")}
	c := New(Options{Generator: gen, Logger: logging.Discard()})

	_, err := c.Get(context.Background(), corpus.At(genesis(), 0))
	if !errors.Is(err, ErrNotImage) || !apperrors.Is(err, apperrors.ErrExternal) {
		t.Errorf("Get() error = %v", err)
	}
}

func TestGetInvalidCoordinate(t *testing.T) {
	c := New(Options{Generator: &fakeGenerator{}, Logger: logging.Discard()})
	if _, err := c.Get(context.Background(), corpus.At(genesis(), 9)); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Get() error = %v", err)
	}
}

func TestSquareNormalisation(t *testing.T) {
	gen := &fakeGenerator{data: pngBytes(t, 40, 20)}
	c := New(Options{Generator: gen, Square: 16, Logger: logging.Discard()})

	img, err := c.Get(context.Background(), corpus.At(genesis(), 0))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Errorf("bounds = %v, want 16x16", b)
	}
}

func TestBlobsPersistAcrossCaches(t *testing.T) {
	store, err := cas.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	coord := corpus.At(genesis(), 0)

	gen := &fakeGenerator{data: pngBytes(t, 4, 4)}
	first := New(Options{Generator: gen, Blobs: store, Logger: logging.Discard()})
	img, err := first.Get(context.Background(), coord)
	if err != nil {
		t.Fatal(err)
	}

	second := New(Options{Generator: gen, Blobs: store, Logger: logging.Discard()})
	restored, err := second.Get(context.Background(), coord)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ETag != img.ETag {
		t.Errorf("restored ETag = %s, want %s", restored.ETag, img.ETag)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
}

func TestDisplay(t *testing.T) {
	var d Display
	var events []string
	d.Subscribe(func(key string, img *Image) {
		events = append(events, key+":"+map[bool]string{true: "img", false: "none"}[img != nil])
	})

	img := &Image{Key: "Genesis-1"}
	d.SetCurrent("Genesis-1")
	if !d.Apply("Genesis-1", img) {
		t.Error("Apply for current key rejected")
	}
	if d.Apply("Genesis-3", &Image{Key: "Genesis-3"}) {
		t.Error("stale result applied")
	}
	if _, got := d.Current(); got != img {
		t.Error("stale result replaced current image")
	}

	d.Clear()
	d.Clear()
	if _, got := d.Current(); got != nil {
		t.Error("image still shown after Clear")
	}

	want := []string{"Genesis-1:none", "Genesis-1:img", "Genesis-1:none"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "art")
	img, err := newImage("Song of Solomon-2", pngBytes(t, 2, 2))
	if err != nil {
		t.Fatal(err)
	}

	path, err := Export(dir, img)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Base(path) != "song-of-solomon-2.png" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, img.Data) {
		t.Errorf("exported file mismatch (err %v)", err)
	}
}
