package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// GetCursor retrieves the saved stream cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	query, args, err := r.sb.
		Select("cursor_value").
		From("cursors").
		Where(sq.Eq{"service": service}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cursor query: %w", err)
	}

	var cursor int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the stream cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	query, args, err := r.sb.
		Insert("cursors").
		Columns("service", "cursor_value", "updated_at").
		Values(service, cursor, r.nowMillis()).
		Suffix("ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build cursor upsert: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
