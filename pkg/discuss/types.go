package discuss

import (
	"context"
	"fmt"
	"time"
)

// Markup is the source format of a stored message text.
type Markup int

const (
	MarkupPlain Markup = iota
	MarkupMarkdown
)

func (m Markup) String() string {
	switch m {
	case MarkupMarkdown:
		return "markdown"
	default:
		return "plain"
	}
}

// ParseMarkup maps the stored column value back to a Markup.
func ParseMarkup(s string) (Markup, error) {
	switch s {
	case "", "plain":
		return MarkupPlain, nil
	case "markdown":
		return MarkupMarkdown, nil
	}
	return MarkupPlain, fmt.Errorf("unknown markup %q", s)
}

type Topic struct {
	ID        int64
	Title     string
	Author    string
	CreatedAt time.Time
}

// Comment is a reply in a topic. Links posted by untrusted authors are
// rendered with rel="nofollow".
type Comment struct {
	ID        int64     `json:"id"`
	TopicID   int64     `json:"topic_id"`
	Author    string    `json:"author"`
	Trusted   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageText is the raw body of a comment as the author submitted it.
type MessageText struct {
	ID     int64
	Text   string
	Markup Markup
}

type PreparedComment struct {
	Comment
	HTML string `json:"html"`
}

// Store is the read side needed to prepare comments for display.
type Store interface {
	Comments(ctx context.Context, ids []int64) ([]Comment, error)
	MessageTexts(ctx context.Context, ids []int64) (map[int64]MessageText, error)
	TopicTitles(ctx context.Context, ids []int64) (map[int64]string, error)
	Ping(ctx context.Context) error
}
