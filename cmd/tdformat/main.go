package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/imeyer/tdformat/pkg/render"
	"golang.org/x/text/language"
)

var version = "dev"

// CLI is the command line of tdformat.
type CLI struct {
	Verbose bool             `short:"v" help:"Log degraded links to stderr"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Render RenderCmd `cmd:"" default:"withargs" help:"Render a plain text file (or stdin) to HTML"`
	Refs   RefsCmd   `cmd:"" help:"List links to forum messages found in a text"`
}

// Global is shared with every subcommand.
type Global struct {
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
}

// SiteFlags selects the forum the text belongs to.
type SiteFlags struct {
	Site     string `default:"www.linux.org.ru" env:"TDFORMAT_SITE" help:"Host (and port) of the forum itself"`
	Secure   bool   `help:"Link to the forum over https"`
	Language string `default:"en" env:"TDFORMAT_LANGUAGE" help:"Language of the missing-topic title"`
}

func (f SiteFlags) renderer(logger *slog.Logger) (*render.Renderer, error) {
	site, err := render.ParseSite(f.Site, f.Secure)
	if err != nil {
		return nil, err
	}
	tag, err := language.Parse(f.Language)
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", f.Language, err)
	}
	return render.New(site, render.WithLanguage(tag), render.WithLogger(logger)), nil
}

type RenderCmd struct {
	SiteFlags

	Light   bool   `help:"Emit light markup instead of HTML"`
	Mode    string `default:"lines" enum:"lines,paragraphs,none" help:"Line break mode (lines, paragraphs, none)"`
	Quoting bool   `negatable:"" default:"true" help:"Wrap quoted lines in italics"`
	NoLinks bool   `help:"Leave URLs as text"`
	MaxURL  int    `name:"max-url" default:"80" help:"Visible length of a link before it is cut"`

	File string `arg:"" optional:"" help:"Input file; stdin when omitted"`
}

func (c *RenderCmd) config() render.Config {
	cfg := render.Config{
		Dialect:             render.HTML,
		Secure:              c.Secure,
		URLHighlight:        !c.NoLinks,
		MaxURLDisplayLength: c.MaxURL,
		Quoting:             c.Quoting,
	}
	if c.Light {
		cfg.Dialect = render.LightMarkup
	}
	switch c.Mode {
	case "lines":
		cfg.Breaks = render.BreakLines
	case "paragraphs":
		cfg.Breaks = render.BreakParagraphs
	default:
		cfg.Breaks = render.BreakNone
	}
	return cfg
}

// Run renders without a message store, so every message link carries the
// missing-topic title.
func (c *RenderCmd) Run(g *Global) error {
	text, err := readInput(c.File, g.Stdin)
	if err != nil {
		return err
	}

	r, err := c.renderer(g.Logger)
	if err != nil {
		return err
	}

	_, err = io.WriteString(g.Stdout, r.Render(text, c.config(), nil))
	return err
}

type RefsCmd struct {
	SiteFlags

	Light bool   `help:"Input uses light markup rules"`
	File  string `arg:"" optional:"" help:"Input file; stdin when omitted"`
}

func (c *RefsCmd) Run(g *Global) error {
	text, err := readInput(c.File, g.Stdin)
	if err != nil {
		return err
	}

	r, err := c.renderer(g.Logger)
	if err != nil {
		return err
	}

	dialect := render.HTML
	if c.Light {
		dialect = render.LightMarkup
	}
	for _, ref := range r.MessageRefs(text, dialect) {
		if ref.CommentID != 0 {
			fmt.Fprintf(g.Stdout, "%d\t%d\n", ref.ID, ref.CommentID)
		} else {
			fmt.Fprintf(g.Stdout, "%d\n", ref.ID)
		}
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func newParser(cli *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("tdformat"),
		kong.Description("Format plain forum text the way the forum displays it."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
	)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return ctx.Run(&Global{Logger: logger, Stdin: stdin, Stdout: stdout})
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "tdformat: %v\n", err)
		os.Exit(1)
	}
}
