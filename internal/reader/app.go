// Package reader assembles a running reader from configuration: corpus,
// navigation, notes, narration and illustrations.
package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/multierr"

	"github.com/FocuswithJustin/JuniperReader/core/cas"
	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/core/spread"
	"github.com/FocuswithJustin/JuniperReader/internal/annotations"
	"github.com/FocuswithJustin/JuniperReader/internal/assist"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/embedded"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/kvstore"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/narration"
)

// App is one reader session.
type App struct {
	Config *config.Config
	Log    *slog.Logger

	Index      *corpus.Index
	Calculator *spread.Calculator
	Navigator  *nav.Navigator

	Notes         *annotations.Store
	Narration     *narration.Adapter
	Display       *illustration.Display
	Illustrations *illustration.Cache

	// Assist is nil when no assist endpoint is configured.
	Assist *assist.Client

	closers []io.Closer
}

// Options override parts of the assembly, mostly for tests.
type Options struct {
	Index   *corpus.Index
	Store   kvstore.Store
	Speaker narration.Speaker
	Clock   nav.Clock
	Logger  *slog.Logger
}

// Open builds an App from cfg.
func Open(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := opts.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	app := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
		}
	}()

	app.Index = opts.Index
	if app.Index == nil {
		if app.Index, err = LoadCorpus(cfg.Corpus.Path); err != nil {
			return nil, err
		}
	}
	app.Calculator = spread.NewCalculator(ref.NewResolver(app.Index))

	store := opts.Store
	if store == nil {
		if store, err = OpenStore(ctx, cfg.Storage.Path); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store)
	}
	app.Notes = annotations.Open(ctx, store, log)

	speaker := opts.Speaker
	if speaker == nil && cfg.Narration.Command != "" {
		speaker = &narration.CommandSpeaker{Command: cfg.Narration.Command, Args: cfg.Narration.Args}
	}
	app.Narration = narration.NewAdapter(speaker, log)

	var locator nav.Locator
	var generator illustration.Generator
	if cfg.Assist.BaseURL != "" {
		app.Assist, err = assist.New(assist.Config{
			BaseURL:   cfg.Assist.BaseURL,
			APIKey:    string(cfg.Assist.APIKey),
			Timeout:   cfg.Assist.Timeout,
			AnswerTTL: cfg.Assist.AnswerTTL,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		locator, generator = app.Assist, app.Assist
	}

	illOpts := illustration.Options{Generator: generator, Square: cfg.Illustration.Square, Logger: log}
	if cfg.Illustration.StoreDir != "" {
		blobs, err := cas.NewStore(cfg.Illustration.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("open illustration store: %w", err)
		}
		illOpts.Blobs = blobs
	}
	app.Illustrations = illustration.New(illOpts)
	app.Display = &illustration.Display{}

	start, err := app.StartCoordinate(cfg.Corpus.Start)
	if err != nil {
		return nil, err
	}

	app.Navigator, err = nav.New(nav.Config{
		Calculator: app.Calculator,
		Start:      start,
		Timing: nav.Timing{
			TransitionOut:  cfg.Navigation.TransitionOut,
			RenderSettle:   cfg.Navigation.RenderSettle,
			NoticeDuration: cfg.Navigation.NoticeDuration,
		},
		Clock:    opts.Clock,
		Narrator: app.Narration,
		Display:  app.Display,
		Locator:  locator,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	app.Display.SetCurrent(start.Key())
	app.Navigator.Subscribe(func(s nav.Snapshot) {
		app.Display.SetCurrent(s.Current.Key())
	})

	log.Info("reader ready",
		"books", app.Index.Len(),
		"start", start.String(),
		"assist", app.Assist != nil,
		"narration", speaker != nil)
	return app, nil
}

// LoadCorpus loads path, or the embedded sample when path is empty.
func LoadCorpus(path string) (*corpus.Index, error) {
	if path == "" {
		return embedded.Corpus()
	}
	return corpus.LoadFile(path)
}

// OpenStore opens the SQLite store at path, or an in-memory store when
// path is empty.
func OpenStore(ctx context.Context, path string) (kvstore.Store, error) {
	if path == "" {
		return kvstore.NewMemory(), nil
	}
	return kvstore.OpenSQLite(ctx, path)
}

// StartCoordinate resolves the configured start query. Fragments
// ("#/Psalms/23") and plain queries are both accepted. An empty query
// starts at the beginning of the corpus.
func (a *App) StartCoordinate(query string) (corpus.Coordinate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return a.Index.First(), nil
	}
	if strings.HasPrefix(query, "#/") {
		return nav.ParseFragment(a.Calculator, query)
	}
	found, err := a.Calculator.Resolver().Search(query)
	if err != nil {
		return corpus.Coordinate{}, err
	}
	return a.Calculator.Align(found)
}

// Illustrate generates or fetches the illustration for the current left
// page and shows it unless the reader has moved on in the meantime.
func (a *App) Illustrate(ctx context.Context) (*illustration.Image, bool, error) {
	current := a.Navigator.State().Current
	img, err := a.Illustrations.Get(ctx, current)
	if err != nil {
		return nil, false, err
	}
	return img, a.Display.Apply(current.Key(), img), nil
}

// NarrateCurrent reads the current spread aloud, left page then right.
func (a *App) NarrateCurrent() error {
	snap := a.Navigator.Snapshot()
	if snap.Transitioning {
		return apperrors.NewValidation("narration", "page turn in progress")
	}
	text := narration.ChapterScript(snap.Spread.Left)
	if snap.Spread.Right != nil {
		text += " " + narration.ChapterScript(*snap.Spread.Right)
	}
	return a.Narration.Speak(text)
}

// Close stops narration and releases storage.
func (a *App) Close() error {
	if a.Narration != nil {
		a.Narration.Cancel()
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}
