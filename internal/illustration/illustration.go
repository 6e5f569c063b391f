// Package illustration generates, caches and displays one illustration per
// chapter.
//
// Images are keyed by the chapter key ("Genesis-1"). Concurrent requests
// for one key share a single call to the generator, and a successful result
// is never regenerated for the life of the Cache. Failures are not cached.
package illustration

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/JuniperReader/core/cas"
	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// ErrNotImage is wrapped in the external error returned when the generator
// answers with bytes that are not a recognised image.
var ErrNotImage = errors.New("generator returned non-image data")

// Request is sent to the generator.
type Request struct {
	BookName      string `json:"bookName"`
	ChapterNumber int    `json:"chapterNumber"`
	Prompt        string `json:"prompt"`
}

// Generator produces encoded image bytes for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Blobs persists generated images between runs. *cas.Store implements it.
type Blobs interface {
	Put(data []byte) (string, error)
	Link(name, hash string) error
	Load(name string) ([]byte, error)
}

// Prompt builds the generator prompt for a chapter.
func Prompt(book string, chapterNumber int) string {
	return fmt.Sprintf("Art for %s %d. Biblical scene, oil painting, high drama.", book, chapterNumber)
}

// Image is a generated illustration.
type Image struct {
	Key  string `json:"key"`
	MIME string `json:"mime"`
	Data []byte `json:"-"`

	// ETag is a quoted BLAKE3 digest of Data.
	ETag string `json:"etag"`
}

// DataURL encodes the image as a data: URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

func newImage(key string, data []byte) (*Image, error) {
	if !filetype.IsImage(data) {
		return nil, ErrNotImage
	}
	kind, _ := filetype.Match(data)
	return &Image{
		Key:  key,
		MIME: kind.MIME.Value,
		Data: data,
		ETag: `"` + cas.Hash(data) + `"`,
	}, nil
}

// Options configure a Cache.
type Options struct {
	Generator Generator

	// Blobs is optional.
	Blobs Blobs

	// Square, when positive, crops and scales every image to Square x Square
	// pixels and re-encodes it as PNG.
	Square int

	Logger *slog.Logger
}

// Cache memoises generated images per chapter key.
type Cache struct {
	gen    Generator
	blobs  Blobs
	square int
	log    *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	images map[string]*Image
}

// New creates a cache.
func New(opts Options) *Cache {
	log := opts.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	return &Cache{
		gen:    opts.Generator,
		blobs:  opts.Blobs,
		square: opts.Square,
		log:    log,
		images: make(map[string]*Image),
	}
}

// Peek returns a cached image without generating.
func (c *Cache) Peek(key string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

// Get returns the illustration for the chapter at coord, generating it on
// first use.
func (c *Cache) Get(ctx context.Context, coord corpus.Coordinate) (*Image, error) {
	if !coord.Valid() {
		return nil, apperrors.NewValidation("chapter", "invalid chapter coordinate")
	}
	key := coord.Key()
	if img, ok := c.Peek(key); ok {
		return img, nil
	}

	// The shared generation outlives any one caller; each caller can still
	// stop waiting on its own context.
	genCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if img, ok := c.Peek(key); ok {
			return img, nil
		}
		img, err := c.load(genCtx, key, coord)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.images[key] = img
		c.mu.Unlock()
		return img, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug("illustration request shared", "key", key)
		}
		return res.Val.(*Image), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, key string, coord corpus.Coordinate) (*Image, error) {
	if c.blobs != nil {
		if data, err := c.blobs.Load(key); err == nil {
			if img, err := newImage(key, data); err == nil {
				c.log.Debug("illustration restored", "key", key)
				return img, nil
			}
		}
	}

	if c.gen == nil {
		return nil, apperrors.NewExternal("illustration", "generate", errors.New("no generator configured"))
	}

	req := Request{
		BookName:      coord.Book.Name,
		ChapterNumber: coord.ChapterNumber(),
		Prompt:        Prompt(coord.Book.Name, coord.ChapterNumber()),
	}
	data, err := c.gen.Generate(ctx, req)
	if err != nil {
		logging.ExternalCallFailed(c.log, "illustration", "generate", err, "key", key)
		return nil, apperrors.NewExternal("illustration", "generate", err)
	}

	if c.square > 0 {
		data = c.normalize(key, data)
	}

	img, err := newImage(key, data)
	if err != nil {
		logging.ExternalCallFailed(c.log, "illustration", "generate", err, "key", key)
		return nil, apperrors.NewExternal("illustration", "generate", err)
	}

	if c.blobs != nil {
		if hash, err := c.blobs.Put(img.Data); err != nil {
			c.log.Warn("illustration not persisted", "key", key, "error", err)
		} else if err := c.blobs.Link(key, hash); err != nil {
			c.log.Warn("illustration not persisted", "key", key, "error", err)
		}
	}

	c.log.Info("illustration generated", "key", key, "mime", img.MIME, "bytes", len(img.Data))
	return img, nil
}

// normalize crops data to a centred square. Undecodable data is returned
// unchanged.
func (c *Cache) normalize(key string, data []byte) []byte {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		c.log.Debug("illustration not normalised", "key", key, "error", err)
		return data
	}
	dst := imaging.Fill(src, c.square, c.square, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.PNG); err != nil {
		c.log.Debug("illustration not normalised", "key", key, "error", err)
		return data
	}
	return buf.Bytes()
}
