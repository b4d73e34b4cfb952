package discuss

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PGStore reads comments and texts from PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}
}

// EnsureSchema creates the tables when they are missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Comments(ctx context.Context, ids []int64) ([]Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues("Comments").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx,
		"SELECT id, topic_id, author, trusted, created_at FROM comments WHERE id = ANY($1) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}

	var (
		comments []Comment
		c        Comment
	)
	_, err = pgx.ForEachRow(rows, []any{&c.ID, &c.TopicID, &c.Author, &c.Trusted, &c.CreatedAt}, func() error {
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan comments: %w", err)
	}

	return comments, nil
}

func (s *PGStore) MessageTexts(ctx context.Context, ids []int64) (map[int64]MessageText, error) {
	texts := make(map[int64]MessageText, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}

	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues("MessageTexts").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx, "SELECT id, message, markup FROM msgbase WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("query message texts: %w", err)
	}

	var (
		mt     MessageText
		markup string
	)
	_, err = pgx.ForEachRow(rows, []any{&mt.ID, &mt.Text, &markup}, func() error {
		m, err := ParseMarkup(markup)
		if err != nil {
			return fmt.Errorf("message %d: %w", mt.ID, err)
		}
		mt.Markup = m
		texts[mt.ID] = mt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan message texts: %w", err)
	}

	s.logger.DebugContext(ctx, "message texts fetched", "requested", len(ids), "found", len(texts))
	return texts, nil
}

func (s *PGStore) TopicTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	titles := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues("TopicTitles").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx, "SELECT id, title FROM topics WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("query topic titles: %w", err)
	}

	var (
		id    int64
		title string
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &title}, func() error {
		titles[id] = title
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan topic titles: %w", err)
	}

	return titles, nil
}
