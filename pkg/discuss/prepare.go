package discuss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/imeyer/tdformat/pkg/render"
	"golang.org/x/sync/errgroup"
)

// ErrTextNotFound is returned when a comment has no stored message text.
var ErrTextNotFound = errors.New("message text not found")

type PrepareOptions struct {
	// Secure makes generated links to this site use https.
	Secure bool
	// NoLinks leaves URLs in plain texts as text.
	NoLinks bool
}

// Preparer turns stored comments into display HTML. It fetches all texts
// and all referenced topic titles in one store call each.
type Preparer struct {
	store    Store
	renderer *render.Renderer
	logger   *slog.Logger
	workers  int
}

func NewPreparer(store Store, renderer *render.Renderer, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{
		store:    store,
		renderer: renderer,
		logger:   logger,
		workers:  runtime.GOMAXPROCS(0),
	}
}

func (p *Preparer) PrepareComment(ctx context.Context, c Comment, opts PrepareOptions) (PreparedComment, error) {
	out, err := p.PrepareComments(ctx, []Comment{c}, opts)
	if err != nil {
		return PreparedComment{}, err
	}
	return out[0], nil
}

// PrepareComments renders comments in parallel and returns them in input
// order.
func (p *Preparer) PrepareComments(ctx context.Context, comments []Comment, opts PrepareOptions) ([]PreparedComment, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		prepareDuration.Observe(time.Since(start).Seconds())
	}()

	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	texts, err := p.store.MessageTexts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch message texts: %w", err)
	}
	for _, id := range ids {
		if _, ok := texts[id]; !ok {
			return nil, fmt.Errorf("comment %d: %w", id, ErrTextNotFound)
		}
	}

	lookup := p.titleLookup(ctx, texts)

	out := make([]PreparedComment, len(comments))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range comments {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			html, err := p.prepareText(texts[c.ID], c.Trusted, opts, lookup)
			if err != nil {
				return fmt.Errorf("comment %d: %w", c.ID, err)
			}
			out[i] = PreparedComment{Comment: c, HTML: html}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// Preview renders a single unsaved plain text with the titles of the topics
// it links to.
func (p *Preparer) Preview(ctx context.Context, text string, cfg render.Config) string {
	var lookup render.MessageLookup
	if cfg.URLHighlight {
		lookup = p.lookupTitles(ctx, p.renderer.MessageRefs(text, cfg.Dialect))
	}
	return p.renderer.Render(text, cfg, lookup)
}

// titleLookup fetches the titles of every topic linked from plain texts.
func (p *Preparer) titleLookup(ctx context.Context, texts map[int64]MessageText) render.MessageLookup {
	var refs []render.MessageRef
	for _, mt := range texts {
		if mt.Markup != MarkupPlain {
			continue
		}
		refs = append(refs, p.renderer.MessageRefs(mt.Text, render.HTML)...)
	}
	return p.lookupTitles(ctx, refs)
}

// lookupTitles batches one TopicTitles call. A failed fetch is not fatal:
// links then carry the placeholder title.
func (p *Preparer) lookupTitles(ctx context.Context, refs []render.MessageRef) render.MessageLookup {
	seen := make(map[int64]bool)
	var topicIDs []int64
	for _, ref := range refs {
		if !seen[ref.ID] {
			seen[ref.ID] = true
			topicIDs = append(topicIDs, ref.ID)
		}
	}

	var titles map[int64]string
	if len(topicIDs) > 0 {
		var err error
		titles, err = p.store.TopicTitles(ctx, topicIDs)
		if err != nil {
			p.logger.WarnContext(ctx, "topic titles unavailable", slog.Int("topics", len(topicIDs)), slog.String("error", err.Error()))
		}
	}

	return func(id int64) (string, bool) {
		title, ok := titles[id]
		return title, ok
	}
}

func (p *Preparer) prepareText(mt MessageText, trusted bool, opts PrepareOptions, lookup render.MessageLookup) (string, error) {
	commentsPrepared.WithLabelValues(mt.Markup.String()).Inc()

	var html string
	switch mt.Markup {
	case MarkupMarkdown:
		var err error
		if html, err = ParseMarkdown(mt.Text); err != nil {
			return "", err
		}
	default:
		cfg := render.Config{
			Dialect:             render.HTML,
			Secure:              opts.Secure,
			URLHighlight:        !opts.NoLinks,
			MaxURLDisplayLength: render.DefaultMaxURLDisplayLength,
			Quoting:             true,
			Breaks:              render.BreakParagraphs,
		}
		html = "<p>" + p.renderer.Render(mt.Text, cfg, lookup) + "</p>"
	}

	return policyFor(trusted).Sanitize(html), nil
}
