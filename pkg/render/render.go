package render

import (
	"errors"
	"html"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
)

// Renderer formats plain forum text. It holds no per-call state and is safe
// for concurrent use.
type Renderer struct {
	classifier *Classifier
	logger     *slog.Logger
}

// Option configures a Renderer.
type Option func(*options)

type options struct {
	jump     JumpFormatter
	language language.Tag
	logger   *slog.Logger
}

// WithJumpFormatter overrides the deep-link format for message links.
func WithJumpFormatter(f JumpFormatter) Option {
	return func(o *options) { o.jump = f }
}

// WithLanguage selects the language of the missing-message title.
func WithLanguage(tag language.Tag) Option {
	return func(o *options) { o.language = tag }
}

// WithLogger sets the logger used for degraded links.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New returns a Renderer for site.
func New(site Site, opts ...Option) *Renderer {
	o := options{language: language.English}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Renderer{
		classifier: NewClassifier(site, o.jump, PlaceholderTitle(o.language)),
		logger:     o.logger,
	}
}

// Render escapes text, links URLs in it and converts its newlines. It never
// fails: a URL that cannot be linked is left as text.
func (r *Renderer) Render(text string, cfg Config, lookup MessageLookup) string {
	escaped := escapeFor(cfg.Dialect, text)

	var b strings.Builder
	b.Grow(len(escaped))
	for _, tok := range tokenize(escaped) {
		r.renderToken(&b, tok, cfg, lookup)
	}

	return LineBreaks(b.String(), cfg)
}

// MessageRefs lists the internal message references in the unrendered text,
// in order of appearance, so callers can fetch their titles in one batch.
func (r *Renderer) MessageRefs(text string, d Dialect) []MessageRef {
	var refs []MessageRef
	seen := make(map[MessageRef]bool)

	cfg := Config{Dialect: d}
	for _, tok := range tokenize(escapeFor(d, text)) {
		for _, m := range ScanURLs(tok, d) {
			raw := m.Raw
			if d == HTML {
				raw = html.UnescapeString(raw)
			}
			link, err := r.classifier.Classify(raw, cfg, nil)
			if err != nil {
				continue
			}
			if ml, ok := link.(MessageLink); ok && !seen[ml.Ref] {
				seen[ml.Ref] = true
				refs = append(refs, ml.Ref)
			}
		}
	}
	return refs
}

// tokenize splits s on spaces and newlines. Every delimiter is returned as a
// token of its own so joining the result gives s back.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\n' {
			continue
		}
		if start < i {
			tokens = append(tokens, s[start:i])
		}
		tokens = append(tokens, s[i:i+1])
		start = i + 1
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func (r *Renderer) renderToken(b *strings.Builder, tok string, cfg Config, lookup MessageLookup) {
	index := 0
	for _, m := range ScanURLs(tok, cfg.Dialect) {
		b.WriteString(tok[index:m.Start])
		r.renderURL(b, m.Raw, cfg, lookup)
		index = m.End
	}
	b.WriteString(tok[index:])
}

func (r *Renderer) renderURL(b *strings.Builder, match string, cfg Config, lookup MessageLookup) {
	if !cfg.URLHighlight {
		linksRendered.WithLabelValues("plain").Inc()
		b.WriteString(match)
		return
	}

	raw := match
	if cfg.Dialect == HTML {
		raw = html.UnescapeString(match)
	}

	link, err := r.classifier.Classify(raw, cfg, lookup)
	if err != nil {
		if errors.Is(err, ErrMalformedURL) {
			r.logger.Debug("leaving malformed url unlinked", slog.String("url", raw), slog.String("error", err.Error()))
		}
		linksRendered.WithLabelValues("malformed").Inc()
		b.WriteString(match)
		return
	}

	switch l := link.(type) {
	case MessageLink:
		linksRendered.WithLabelValues("message").Inc()
		if cfg.Dialect == LightMarkup {
			writeLightLink(b, l.Href, l.Href)
			return
		}
		b.WriteString(`<a href="`)
		b.WriteString(EscapeHTML(l.Href))
		b.WriteString(`" title="`)
		b.WriteString(EscapeHTML(l.Title))
		b.WriteString(`">`)
		b.WriteString(EscapeHTML(l.Href))
		b.WriteString(`</a>`)
	case SiteLink:
		linksRendered.WithLabelValues("site").Inc()
		if cfg.Dialect == LightMarkup {
			writeLightLink(b, l.Href, l.Href)
			return
		}
		writeHTMLLink(b, l.Href, l.Href)
	case ExternalLink:
		linksRendered.WithLabelValues("external").Inc()
		if cfg.Dialect == LightMarkup {
			writeLightLink(b, l.Href, l.Body)
			return
		}
		writeHTMLLink(b, l.Href, l.Body)
	}
}

func writeHTMLLink(b *strings.Builder, href, body string) {
	b.WriteString(`<a href="`)
	b.WriteString(EscapeHTML(href))
	b.WriteString(`">`)
	b.WriteString(EscapeHTML(body))
	b.WriteString(`</a>`)
}

func writeLightLink(b *strings.Builder, href, body string) {
	b.WriteString("[url=")
	b.WriteString(href)
	b.WriteString("]")
	b.WriteString(body)
	b.WriteString("[/url]")
}
