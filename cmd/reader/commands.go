package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/internal/annotations"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/narration"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
)

// resolve maps query words to an aligned left page, asking the assist
// service when the local search misses.
func resolve(ctx context.Context, app *reader.App, query []string) (corpus.Coordinate, error) {
	return app.Navigator.Resolve(ctx, strings.Join(query, " "))
}

// SearchCmd resolves a query.
type SearchCmd struct {
	Query []string `arg:"" help:"Reference (\"John 3\"), verse (\"16 so loved\") or keyword"`
}

func (c *SearchCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	left, err := resolve(ctx, app, c.Query)
	if err != nil {
		return err
	}
	s, err := app.Calculator.Compute(left)
	if err != nil {
		return err
	}
	g.printf("%s\t%s\n", s.Left, nav.Fragment(s.Left))
	if s.Right != nil {
		g.printf("%s\t%s\n", *s.Right, nav.Fragment(*s.Right))
	}
	return nil
}

// SpreadCmd prints both pages of a spread with their notes.
type SpreadCmd struct {
	Query []string `arg:"" optional:"" help:"Reference or keyword; the start page when omitted"`
}

func (c *SpreadCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	left := app.Navigator.State().Current
	if len(c.Query) > 0 {
		if left, err = resolve(ctx, app, c.Query); err != nil {
			return err
		}
	}
	s, err := app.Calculator.Compute(left)
	if err != nil {
		return err
	}
	printPage(g, app.Notes, s.Left)
	if s.Right != nil {
		g.printf("\n")
		printPage(g, app.Notes, *s.Right)
	}
	return nil
}

func printPage(g *Globals, notes *annotations.Store, c corpus.Coordinate) {
	g.printf("== %s ==\n", c)
	ch := c.Chapter()
	chapterNotes := notes.ForChapter(c.Book.Name, ch.Number)
	for _, v := range ch.Verses {
		g.printf("%3d  %s\n", v.Number, strings.TrimSpace(v.Text))
		if note := chapterNotes[v.Number]; note != "" {
			g.printf("     [note] %s\n", note)
		}
	}
}

// BooksCmd lists the corpus.
type BooksCmd struct{}

func (c *BooksCmd) Run(g *Globals) (err error) {
	app, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK\tABBREV\tCHAPTERS")
	for _, b := range app.Index.Books() {
		numbers := make([]string, 0, len(b.Chapters))
		for _, ch := range b.Chapters {
			numbers = append(numbers, fmt.Sprint(ch.Number))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.Abbrev, strings.Join(numbers, ","))
	}
	return tw.Flush()
}

// NotesListCmd lists notes in natural key order.
type NotesListCmd struct{}

func (c *NotesListCmd) Run(g *Globals) (err error) {
	app, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	for _, k := range app.Notes.Keys() {
		g.printf("%s\t%s\n", k, app.Notes.Get(k))
	}
	return nil
}

// NotesSetCmd sets a note.
type NotesSetCmd struct {
	Key  string   `arg:"" help:"Verse key, e.g. Genesis-1-1"`
	Text []string `arg:"" help:"Note text"`
}

func (c *NotesSetCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	if err := checkKey(app, c.Key); err != nil {
		return err
	}
	app.Notes.Set(ctx, c.Key, strings.Join(c.Text, " "))
	return nil
}

// NotesDeleteCmd deletes a note.
type NotesDeleteCmd struct {
	Key string `arg:"" help:"Verse key, e.g. Genesis-1-1"`
}

func (c *NotesDeleteCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	app.Notes.Delete(ctx, c.Key)
	return nil
}

func checkKey(app *reader.App, key string) error {
	book, chapter, _, err := annotations.ParseKey(key)
	if err != nil {
		return err
	}
	_, err = app.Index.Lookup(book, chapter)
	return err
}

// TestimonyCmd shows the saved testimony, or saves a new one.
type TestimonyCmd struct {
	Text []string `arg:"" optional:"" help:"New testimony text"`
}

func (c *TestimonyCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	if len(c.Text) > 0 {
		return app.Notes.SaveTestimony(ctx, strings.Join(c.Text, " "))
	}
	text, err := app.Notes.Testimony(ctx)
	if err != nil {
		return err
	}
	g.printf("%s\n", text)
	return nil
}

// IllustrateCmd generates a chapter illustration and writes it to a file.
type IllustrateCmd struct {
	Query []string `arg:"" help:"Reference or keyword"`
	Out   string   `help:"Output directory" default:"." type:"path"`
}

func (c *IllustrateCmd) Run(g *Globals) (err error) {
	ctx := context.Background()
	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	left, err := resolve(ctx, app, c.Query)
	if err != nil {
		return err
	}
	img, err := app.Illustrations.Get(ctx, left)
	if err != nil {
		return err
	}
	path, err := illustration.Export(c.Out, img)
	if err != nil {
		return err
	}
	g.printf("%s\n", path)
	return nil
}

// NarrateCmd reads a spread aloud and waits until it finishes.
type NarrateCmd struct {
	Query   []string      `arg:"" optional:"" help:"Reference or keyword; the start page when omitted"`
	Timeout time.Duration `help:"Give up after this long" default:"30m"`
}

func (c *NarrateCmd) Run(g *Globals) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = closeApp(err, app) }()

	if len(c.Query) > 0 {
		started, err := app.Navigator.JumpTo(ctx, strings.Join(c.Query, " "))
		if err != nil {
			return err
		}
		if started {
			waitSettled(ctx, app)
		}
	}

	done := make(chan struct{})
	var once sync.Once
	app.Narration.Subscribe(func(st narration.State) {
		if !st.Speaking {
			once.Do(func() { close(done) })
		}
	})
	if err := app.NarrateCurrent(); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		app.Narration.Cancel()
		return ctx.Err()
	}
	return nil
}

// waitSettled blocks until the page turn in flight has finished.
func waitSettled(ctx context.Context, app *reader.App) {
	settled := make(chan struct{}, 1)
	app.Navigator.Subscribe(func(s nav.Snapshot) {
		if !s.Transitioning {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	})
	if !app.Navigator.State().Transitioning {
		return
	}
	select {
	case <-settled:
	case <-ctx.Done():
	}
}

// ConfigCmd prints the effective configuration with secrets masked.
type ConfigCmd struct{}

func (c *ConfigCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	data, err := cfg.Dump()
	if err != nil {
		return err
	}
	g.printf("%s", data)
	return nil
}
