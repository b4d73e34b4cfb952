package render

import (
	"regexp"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML replaces &, <, > and " with their entities. Nothing else is
// touched, so apostrophes and non-ASCII text survive as typed.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var codeTagRE = regexp.MustCompile(`\[(/?code)\]`)

// EscapeLightMarkup doubles [code] and [/code] so the bracket parser prints
// them instead of opening a code block.
func EscapeLightMarkup(s string) string {
	return codeTagRE.ReplaceAllString(s, "[[$1]]")
}

func escapeFor(d Dialect, s string) string {
	switch d {
	case LightMarkup:
		return EscapeLightMarkup(s)
	default:
		return EscapeHTML(s)
	}
}
