package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

// Dialect selects the SQL database behind a Repository.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Repository implements domain.UserRepository, domain.ArticleRepository and
// domain.CursorRepository on top of a SQL database.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var (
	_ domain.UserRepository    = (*Repository)(nil)
	_ domain.ArticleRepository = (*Repository)(nil)
	_ domain.CursorRepository  = (*Repository)(nil)
)

// Open connects to the database for the given dialect and verifies the
// connection. The caller should call Close when the repository is no longer
// needed.
func Open(dialect Dialect, databaseURL string) (*Repository, error) {
	switch dialect {
	case Postgres:
		return NewPostgres(databaseURL)
	case SQLite:
		return NewSQLite(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}
}

// NewPostgres connects to PostgreSQL at the given URL.
func NewPostgres(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return newRepository(db, Postgres, sq.Dollar)
}

// NewSQLite opens the SQLite database file at path. A single connection is
// used so that writers never contend for the file lock.
func NewSQLite(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newRepository(db, SQLite, sq.Question)
}

func newRepository(db *sql.DB, dialect Dialect, placeholder sq.PlaceholderFormat) (*Repository, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the tables used by the engine if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *Repository) nowMillis() int64 {
	return r.now().UnixMilli()
}
