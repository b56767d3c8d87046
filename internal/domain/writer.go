package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// mutateFunc edits a freshly loaded user in place and reports whether it
// changed anything worth persisting. It may run more than once per call, so
// it must not carry state across invocations.
type mutateFunc func(user *User) (changed bool, err error)

// documentWriter performs read-modify-write cycles on user documents with
// compare-and-swap on the document version.
type documentWriter struct {
	users    UserRepository
	attempts int
	logger   *slog.Logger
}

func (w *documentWriter) load(ctx context.Context, op, userID string) (*User, error) {
	user, err := w.users.GetUser(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, notFoundError(op, "user %s not found", userID)
	}
	if err != nil {
		return nil, dependencyError(op, fmt.Errorf("load user %s: %w", userID, err))
	}
	return user, nil
}

// update loads the user, applies mutate and saves the result when it
// changed. A version conflict reloads and reapplies immediately.
func (w *documentWriter) update(ctx context.Context, op, userID string, mutate mutateFunc) (*User, error) {
	for attempt := 1; ; attempt++ {
		user, err := w.load(ctx, op, userID)
		if err != nil {
			return nil, err
		}

		changed, err := mutate(user)
		if err != nil {
			return nil, err
		}
		if !changed {
			return user, nil
		}

		err = w.users.SaveUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrVersionMismatch) {
			return nil, dependencyError(op, fmt.Errorf("save user %s: %w", userID, err))
		}
		if attempt >= w.attempts {
			return nil, &Error{
				Kind:   KindConflict,
				Op:     op,
				Reason: fmt.Sprintf("user %s was modified concurrently", userID),
				Err:    err,
			}
		}
		w.logger.Debug("user document changed during write, reapplying", "op", op, "user_id", userID, "attempt", attempt)
	}
}
