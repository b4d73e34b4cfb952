package render

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MessageLookup returns the title of a topic, or false when it does not
// exist. It is called synchronously while rendering.
type MessageLookup func(id int64) (title string, ok bool)

// Link is the classification of a URL: one of MessageLink, SiteLink or
// ExternalLink.
type Link interface {
	link()
}

// MessageLink points at a topic or comment of this site.
type MessageLink struct {
	Ref   MessageRef
	Title string
	Found bool
	Href  string
}

// SiteLink points elsewhere on this site; only the scheme was changed.
type SiteLink struct {
	Href string
}

// ExternalLink points at a foreign origin.
type ExternalLink struct {
	Href string
	Body string
}

func (MessageLink) link()  {}
func (SiteLink) link()     {}
func (ExternalLink) link() {}

// Classifier decides what a URL points at.
type Classifier struct {
	site        Site
	jump        JumpFormatter
	placeholder string
}

// NewClassifier returns a classifier for site. A nil jump uses site.JumpURL.
func NewClassifier(site Site, jump JumpFormatter, placeholder string) *Classifier {
	if jump == nil {
		jump = site.JumpURL
	}
	return &Classifier{site: site, jump: jump, placeholder: placeholder}
}

// Classify classifies raw, the visible URL text with HTML entities already
// decoded. lookup may be nil, in which case every message is missing.
func (c *Classifier) Classify(raw string, cfg Config, lookup MessageLookup) (Link, error) {
	href := withScheme(raw)

	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	if c.isLocal(u) {
		if ref, ok := messageRef(u.Path, u.RawQuery, u.Fragment); ok {
			return c.messageLink(ref, cfg, lookup), nil
		}
		return SiteLink{Href: fixScheme(href, u.Scheme, cfg.scheme())}, nil
	}

	encoded, err := encodeHref(href)
	if err != nil {
		encoded = href
	}
	return ExternalLink{Href: encoded, Body: truncate(raw, cfg.maxDisplay())}, nil
}

func (c *Classifier) isLocal(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	return c.site.sameOrigin(u.Hostname(), u.Port())
}

func (c *Classifier) messageLink(ref MessageRef, cfg Config, lookup MessageLookup) MessageLink {
	l := MessageLink{Ref: ref, Href: c.jump(ref, cfg.Secure)}
	if lookup != nil {
		l.Title, l.Found = lookup(ref.ID)
	}
	if !l.Found {
		l.Title = c.placeholder
	}
	return l
}

// withScheme completes the bare www. and ftp. forms.
func withScheme(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "www."):
		return "http://" + raw
	case strings.HasPrefix(lower, "ftp."):
		return "ftp://" + raw
	default:
		return raw
	}
}

func fixScheme(href, from, to string) string {
	return to + href[len(from):]
}

const upperhex = "0123456789ABCDEF"

// encodeHref percent-encodes every byte of a rune outside (' ', 'z'] except
// '~'. URL punctuation in that range passes through unchanged.
func encodeHref(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrEncoding
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r > ' ' && r <= 'z') || r == '~' {
			b.WriteRune(r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String(), nil
}

// truncate cuts s to limit runes, the last three being an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - 3
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + "..."
}
