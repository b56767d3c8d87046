package domain

import (
	"context"
	"errors"
)

var (
	// ErrRecordNotFound is returned by repositories when a keyed record does
	// not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrVersionMismatch is returned by UserRepository.SaveUser when the
	// stored document changed since it was read.
	ErrVersionMismatch = errors.New("document version mismatch")
)

// UserRepository persists user documents with their embedded accounts.
type UserRepository interface {
	// GetUser loads a user document. Returns ErrRecordNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)

	// ListUsers returns up to limit users with ids greater than afterID,
	// ordered by id.
	ListUsers(ctx context.Context, afterID string, limit int) ([]User, error)

	// SaveUser replaces the accounts of the user if the stored version still
	// equals user.Version, then increments user.Version. Returns
	// ErrVersionMismatch when another writer got there first.
	SaveUser(ctx context.Context, user *User) error
}

// ArticleRepository is the engine's view of the article pool.
type ArticleRepository interface {
	// FindUnusedArticles returns up to limit unused articles of the track
	// category whose ids are not in excluded, in random order. A limit of 0
	// returns all of them.
	FindUnusedArticles(ctx context.Context, trackCategory int, excluded []string, limit int) ([]Article, error)

	// UpdateArticleStatus sets the status of one article. Returns
	// ErrRecordNotFound if the article does not exist.
	UpdateArticleStatus(ctx context.Context, id string, status ArticleStatus) error

	// TransitionArticleStatus sets the status to `to` only if it currently is
	// `from`, and reports whether it changed. Returns ErrRecordNotFound if the
	// article does not exist.
	TransitionArticleStatus(ctx context.Context, id string, from, to ArticleStatus) (bool, error)
}

// CursorRepository defines persistence operations for stream cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed cursor for the given service
	// name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
