package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// SQLStore keeps the inbox, the produced summaries and the seen URLs in a
// relational database used as a record store.
type SQLStore struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var (
	_ ports.InboxQueue  = (*SQLStore)(nil)
	_ ports.SummarySink = (*SQLStore)(nil)
	_ ports.SeenIndex   = (*SQLStore)(nil)
)

// NewSQLStore wires a sql.DB implementation.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue adds a link to the inbox and returns its id.
func (s *SQLStore) Enqueue(ctx context.Context, rawURL, title string) (string, error) {
	id := uuid.NewString()
	now := s.now()

	query, args, err := s.sb.Insert("inbox_items").
		Columns("id", "url", "title", "processed", "retry_count", "last_error", "created_at", "updated_at").
		Values(id, rawURL, title, false, 0, "", now, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert inbox item: %w", err)
	}
	return id, nil
}

// Pending returns unprocessed items, oldest first.
func (s *SQLStore) Pending(ctx context.Context, limit int) ([]domain.InboxItem, error) {
	builder := s.sb.Select("id", "url", "title", "processed", "retry_count", "last_error").
		From("inbox_items").
		Where(sq.Eq{"processed": false}).
		OrderBy("created_at", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}

	var items []domain.InboxItem
	for rows.Next() {
		var item domain.InboxItem
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Processed, &item.RetryCount, &item.LastError); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan inbox item: %w", err)
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return items, nil
}

// Update writes the item's processed flag, retry counter and last error.
func (s *SQLStore) Update(ctx context.Context, id string, update domain.ItemUpdate) error {
	query, args, err := s.sb.Update("inbox_items").
		Set("processed", update.Processed).
		Set("retry_count", update.RetryCount).
		Set("last_error", update.LastError).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update inbox item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("inbox item %s not found", id)
	}
	return nil
}

// Save stores a produced summary.
func (s *SQLStore) Save(ctx context.Context, result domain.SummaryResult) error {
	generated := result.GeneratedAt
	if generated.IsZero() {
		generated = s.now()
	}

	query, args, err := s.sb.Insert("summaries").
		Columns("id", "title", "source_url", "source_kind", "summary", "language", "generated_at").
		Values(uuid.NewString(), result.Title, result.SourceURL, string(result.SourceKind), result.SummaryText, result.Language, generated.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// Seen reports whether the URL was remembered before.
func (s *SQLStore) Seen(ctx context.Context, sourceURL string) (bool, error) {
	query, args, err := s.sb.Select("1").From("seen_urls").Where(sq.Eq{"url": sourceURL}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build seen query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// Remember records the URL; repeated calls are no-ops.
func (s *SQLStore) Remember(ctx context.Context, sourceURL string) error {
	query, args, err := s.sb.Insert("seen_urls").
		Columns("url", "created_at").
		Values(sourceURL, s.now()).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build remember: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remember url: %w", err)
	}
	return nil
}
