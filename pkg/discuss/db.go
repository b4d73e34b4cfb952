package discuss

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB is the embedded store used for development and by tdformat when
// no DATABASE_URL is configured.
type SQLiteDB struct {
	db     *sql.DB
	logger *slog.Logger
}

//go:embed schema/sqlite.sql
var sqliteSchema string

func NewSQLiteDB(f string, logger *slog.Logger) (*SQLiteDB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("connecting to database", "database", f)
	db, err := sql.Open("sqlite", f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f, err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Debug("schema ready", "database", f)

	return &SQLiteDB{db: db, logger: logger}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) SaveTopic(ctx context.Context, topic *Topic) (int64, error) {
	result, err := s.db.ExecContext(ctx, "INSERT INTO topics (title, author, created_at) VALUES (?, ?, ?)",
		topic.Title, topic.Author, topic.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert topic: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	topic.ID = id

	s.logger.DebugContext(ctx, "topic saved", "topic_id", id, "author", topic.Author)
	return id, nil
}

// SaveComment stores the comment and its text in one transaction.
func (s *SQLiteDB) SaveComment(ctx context.Context, c *Comment, text string, markup Markup) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "INSERT INTO comments (topic_id, author, trusted, created_at) VALUES (?, ?, ?, ?)",
		c.TopicID, c.Author, c.Trusted, c.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows != 1 {
		return 0, fmt.Errorf("expected to add 1 row, added %d instead", rows)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO msgbase (id, message, markup) VALUES (?, ?, ?)", id, text, markup.String()); err != nil {
		return 0, fmt.Errorf("insert message text: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit comment: %w", err)
	}
	c.ID = id

	s.logger.DebugContext(ctx, "comment saved", "comment_id", id, "topic_id", c.TopicID)
	return id, nil
}

func (s *SQLiteDB) Comments(ctx context.Context, ids []int64) ([]Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, topic_id, author, trusted, created_at FROM comments WHERE id IN ("+placeholders(len(ids))+") ORDER BY id",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var (
			c         Comment
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.TopicID, &c.Author, &c.Trusted, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func (s *SQLiteDB) MessageTexts(ctx context.Context, ids []int64) (map[int64]MessageText, error) {
	texts := make(map[int64]MessageText, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, message, markup FROM msgbase WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query message texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mt     MessageText
			markup string
		)
		if err := rows.Scan(&mt.ID, &mt.Text, &markup); err != nil {
			return nil, err
		}
		if mt.Markup, err = ParseMarkup(markup); err != nil {
			return nil, fmt.Errorf("message %d: %w", mt.ID, err)
		}
		texts[mt.ID] = mt
	}

	return texts, rows.Err()
}

func (s *SQLiteDB) TopicTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	titles := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title FROM topics WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query topic titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}

	return titles, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
