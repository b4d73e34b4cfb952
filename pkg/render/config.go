package render

// Dialect selects the output markup of a render call.
type Dialect int

const (
	// HTML escapes the input and emits raw HTML fragments.
	HTML Dialect = iota
	// LightMarkup leaves escaping to the downstream bracket-tag parser and
	// emits [url], [br] and [i] tags.
	LightMarkup
)

func (d Dialect) String() string {
	switch d {
	case HTML:
		return "html"
	case LightMarkup:
		return "light"
	default:
		return "unknown"
	}
}

// BreakMode selects how newlines are turned into markup.
type BreakMode int

const (
	// BreakNone leaves newlines untouched.
	BreakNone BreakMode = iota
	// BreakLines turns every newline into a line break.
	BreakLines
	// BreakParagraphs turns blank lines into paragraph starts.
	BreakParagraphs
)

func (m BreakMode) String() string {
	switch m {
	case BreakNone:
		return "none"
	case BreakLines:
		return "lines"
	case BreakParagraphs:
		return "paragraphs"
	default:
		return "unknown"
	}
}

// DefaultMaxURLDisplayLength is the visible length of a link body before it
// is cut and suffixed with an ellipsis.
const DefaultMaxURLDisplayLength = 80

// Config is passed to every render call. The zero value renders escaped HTML
// without links or line breaks.
type Config struct {
	Dialect             Dialect
	Secure              bool
	URLHighlight        bool
	MaxURLDisplayLength int
	Quoting             bool
	Breaks              BreakMode
}

// DefaultConfig returns the settings used for forum comments.
func DefaultConfig() Config {
	return Config{
		Dialect:             HTML,
		URLHighlight:        true,
		MaxURLDisplayLength: DefaultMaxURLDisplayLength,
		Quoting:             true,
		Breaks:              BreakLines,
	}
}

func (c Config) maxDisplay() int {
	if c.MaxURLDisplayLength <= 0 {
		return DefaultMaxURLDisplayLength
	}
	return c.MaxURLDisplayLength
}

func (c Config) scheme() string {
	if c.Secure {
		return "https"
	}
	return "http"
}
