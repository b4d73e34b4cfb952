package discuss

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		emoji.Emoji,
		extension.Strikethrough,
		extension.Table,
		extension.TaskList,
		// Linkify URLs but not email addresses.
		extension.NewLinkify(
			extension.WithLinkifyEmailRegexp(regexp.MustCompile(`^$`)),
		),
	),
)

// ParseMarkdown converts a markdown comment to HTML. Raw HTML in the source
// is dropped by goldmark; the result still goes through commentPolicy.
func ParseMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

var (
	followPolicy   = commentPolicy(false)
	nofollowPolicy = commentPolicy(true)
)

func policyFor(trusted bool) *bluemonday.Policy {
	if trusted {
		return followPolicy
	}
	return nofollowPolicy
}

// commentPolicy allows what the plain formatter and goldmark emit, minus
// headings.
func commentPolicy(nofollow bool) *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "hr", "div", "span")
	p.AllowElements("blockquote", "pre")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	p.AllowElements("b", "i", "strong", "em", "u", "s", "del")
	p.AllowElements("code")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w-]+$`)).OnElements("code")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https", "ftp", "mailto", "news")
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(nofollow)

	p.AllowAttrs("type", "disabled", "checked").OnElements("input")

	return p
}
