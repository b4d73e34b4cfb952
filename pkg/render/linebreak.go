package render

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	nlRE    = regexp.MustCompile(`\r?\n`)
	texnlRE = regexp.MustCompile(`\n\r?\n\r?`)
)

// markup holds the literal tags of one dialect.
type markup struct {
	br         string
	paragraph  string
	quote      string
	openQuote  string
	closeQuote string
	// paragraph-mode quote tags
	openParaQuote  string
	closeParaQuote string
}

var (
	htmlMarkup = markup{
		br:             "<br>",
		paragraph:      "<p>",
		quote:          "&gt;",
		openQuote:      "<i>",
		closeQuote:     "</i>",
		openParaQuote:  "<i>",
		closeParaQuote: "</i>",
	}
	lightMarkup = markup{
		br:             "[br]",
		quote:          ">",
		openQuote:      "[i]",
		closeQuote:     "[/i]",
		openParaQuote:  "\n[i]",
		closeParaQuote: "[/i]\n",
	}
)

func markupFor(d Dialect) markup {
	if d == LightMarkup {
		return lightMarkup
	}
	return htmlMarkup
}

// LineBreaks converts newlines of already rendered text according to
// cfg.Breaks, cfg.Quoting and cfg.Dialect.
func LineBreaks(text string, cfg Config) string {
	m := markupFor(cfg.Dialect)

	switch cfg.Breaks {
	case BreakLines:
		if !cfg.Quoting {
			return nlRE.ReplaceAllLiteralString(text, m.br+lineTail(cfg.Dialect))
		}
		return quoteLines(text, m)
	case BreakParagraphs:
		if !cfg.Quoting {
			if cfg.Dialect == LightMarkup {
				return text
			}
			return texnlRE.ReplaceAllLiteralString(text, m.paragraph)
		}
		return quoteParagraphs(text, m)
	default:
		return text
	}
}

// The bracket parser wants every [br] on its own line; HTML does not care.
func lineTail(d Dialect) string {
	if d == LightMarkup {
		return "\n"
	}
	return ""
}

type spanState int

const (
	stateNormal spanState = iota
	stateInQuote
)

// quoteWriter owns the output buffer and the quote span. Spans are only
// opened from stateNormal and only closed from stateInQuote, so the output is
// always balanced once finish has run.
type quoteWriter struct {
	buf   strings.Builder
	state spanState
	open  string
	close string
}

func (w *quoteWriter) openSpan() {
	if w.state == stateNormal {
		w.buf.WriteString(w.open)
		w.state = stateInQuote
	}
}

func (w *quoteWriter) closeSpan() {
	if w.state == stateInQuote {
		w.buf.WriteString(w.close)
		w.state = stateNormal
	}
}

func (w *quoteWriter) finish() string {
	w.closeSpan()
	return w.buf.String()
}

// quotedLine reports whether the line starting at s begins, after leading
// blanks, with the quote marker.
func quotedLine(s, marker string) bool {
	s = strings.TrimLeft(s, " \t\r\f\v")
	return strings.HasPrefix(s, marker)
}

// quotedParagraph is like quotedLine but also skips blank lines.
func quotedParagraph(s, marker string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(s, unicode.IsSpace), marker)
}

// quoteLines turns every newline into a line break and wraps each maximal run
// of quoted lines in one span. Carriage returns are dropped.
func quoteLines(text string, m markup) string {
	w := &quoteWriter{open: m.openQuote, close: m.closeQuote}
	w.buf.Grow(len(text))

	lineStart := true
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\r' {
			continue
		}

		if lineStart {
			if quotedLine(text[i:], m.quote) {
				w.openSpan()
			}
			lineStart = false
		}

		if c == '\n' {
			if !quotedLine(text[i+1:], m.quote) {
				w.closeSpan()
			}
			w.buf.WriteString(m.br)
			w.buf.WriteByte('\n')
			lineStart = true
			continue
		}

		w.buf.WriteByte(c)
	}

	return w.finish()
}

// quoteParagraphs marks each blank-line gap with one paragraph tag and wraps
// quoted paragraphs in spans. Single newlines inside a paragraph pass through
// untouched. Carriage returns are dropped.
func quoteParagraphs(text string, m markup) string {
	w := &quoteWriter{open: m.openParaQuote, close: m.closeParaQuote}
	w.buf.Grow(len(text))

	paraStart := true
	pending := false // one newline seen, the paragraph may still continue
	gap := false     // inside the blank lines between two paragraphs

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\r' {
			continue
		}

		if c == '\n' {
			switch {
			case gap:
			case pending:
				w.closeSpan()
				w.buf.WriteString(m.paragraph)
				gap = true
				paraStart = true
			default:
				pending = true
			}
			w.buf.WriteByte('\n')
			continue
		}

		if paraStart {
			if quotedParagraph(text[i:], m.quote) {
				w.openSpan()
			}
			paraStart = false
		}
		pending, gap = false, false

		w.buf.WriteByte(c)
	}

	return w.finish()
}
