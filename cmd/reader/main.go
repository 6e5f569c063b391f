// Command reader serves and scripts the two-page spread Bible reader.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"

	"github.com/FocuswithJustin/JuniperReader/core/sqlite"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `help:"YAML configuration file" short:"c" type:"path" env:"JUNIPER_CONFIG"`
	Corpus    string `help:"Corpus file (JSON, JSON.xz or OSIS XML); the embedded sample when unset" type:"path"`
	Storage   string `help:"SQLite file for notes and testimony; in memory when unset" type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)"`
	LogFormat string `help:"Log format (json, text)"`

	out io.Writer `kong:"-"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve      ServeCmd      `cmd:"" help:"Serve the reader over HTTP"`
	Search     SearchCmd     `cmd:"" help:"Resolve a reference or keyword to a spread"`
	Spread     SpreadCmd     `cmd:"" help:"Print the spread for a reference"`
	Books      BooksCmd      `cmd:"" help:"List the books in the corpus"`
	Notes      NotesGroup    `cmd:"" help:"Manage verse notes"`
	Testimony  TestimonyCmd  `cmd:"" help:"Show or save your testimony"`
	Illustrate IllustrateCmd `cmd:"" help:"Generate the illustration for a chapter"`
	Narrate    NarrateCmd    `cmd:"" help:"Read a spread aloud"`
	ShowConfig ConfigCmd     `cmd:"" name:"config" help:"Print the effective configuration"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// NotesGroup contains note operations.
type NotesGroup struct {
	List   NotesListCmd   `cmd:"" help:"List all notes"`
	Set    NotesSetCmd    `cmd:"" help:"Set the note for a verse"`
	Delete NotesDeleteCmd `cmd:"" help:"Delete the note for a verse"`
}

// load reads the configuration, applies flag overrides and initialises
// logging.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Corpus != "" {
		cfg.Corpus.Path = g.Corpus
	}
	if g.Storage != "" {
		cfg.Storage.Path = g.Storage
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Logging.Format = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	return cfg, nil
}

// open loads the configuration and assembles a reader.
func (g *Globals) open(ctx context.Context) (*reader.App, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return reader.Open(ctx, cfg, reader.Options{Logger: logging.GetLogger()})
}

func closeApp(err error, app *reader.App) error {
	return multierr.Append(err, app.Close())
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	g.printf("reader version %s\n", version)
	g.printf("sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("reader"),
		kong.Description("Juniper Reader - a two-page spread Bible reader"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
}

func run(args []string, out io.Writer) error {
	var cli CLI
	cli.out = out
	parser, err := newParser(&cli)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return ctx.Run(&cli.Globals)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reader:", err)
		os.Exit(1)
	}
}
