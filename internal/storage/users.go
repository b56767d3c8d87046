package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

// GetUser loads a user document by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query, args, err := r.sb.
		Select("id", "accounts", "version").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

// ListUsers returns up to limit users with ids greater than afterID.
func (r *Repository) ListUsers(ctx context.Context, afterID string, limit int) ([]domain.User, error) {
	query, args, err := r.sb.
		Select("id", "accounts", "version").
		From("users").
		Where(sq.Gt{"id": afterID}).
		OrderBy("id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users after %q (limit=%d): %w", afterID, limit, err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// SaveUser writes the accounts of the user if the stored version matches
// user.Version, and bumps the version on success.
func (r *Repository) SaveUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user.Accounts)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	query, args, err := r.sb.
		Update("users").
		Set("accounts", string(data)).
		Set("version", user.Version+1).
		Set("updated_at", r.nowMillis()).
		Where(sq.Eq{"id": user.ID, "version": user.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}

	if affected == 0 {
		if _, err := r.GetUser(ctx, user.ID); err != nil {
			return err
		}
		return domain.ErrVersionMismatch
	}

	user.Version++
	return nil
}

// PutUser inserts the user or replaces its accounts unconditionally. It is
// meant for seeding and administration, not for engine writes.
func (r *Repository) PutUser(ctx context.Context, user *domain.User) error {
	accounts := user.Accounts
	if accounts == nil {
		accounts = []domain.Account{}
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	query, args, err := r.sb.
		Insert("users").
		Columns("id", "accounts", "version", "updated_at").
		Values(user.ID, string(data), 0, r.nowMillis()).
		Suffix("ON CONFLICT (id) DO UPDATE SET accounts = excluded.accounts, version = users.version + 1, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build user upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put user %s: %w", user.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user domain.User
		raw  []byte
	)
	if err := row.Scan(&user.ID, &raw, &user.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &user.Accounts); err != nil {
		return nil, fmt.Errorf("decode accounts of user %s: %w", user.ID, err)
	}
	return &user, nil
}
