package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	opAssign    = "assign task"
	opAssignAll = "assign all"
)

// AssignOutcome describes what the assigner did to one account.
type AssignOutcome string

const (
	OutcomeCreated     AssignOutcome = "created"
	OutcomeCarriedOver AssignOutcome = "carried_over"
	OutcomeRotated     AssignOutcome = "rotated"
	OutcomeSynced      AssignOutcome = "synced"
	OutcomeUnchanged   AssignOutcome = "unchanged"
	OutcomeNoArticle   AssignOutcome = "no_article"
)

// AccountAssignment is the per-account detail of an assignment pass.
type AccountAssignment struct {
	AccountID string        `json:"accountId"`
	Outcome   AssignOutcome `json:"outcome"`
	ArticleID string        `json:"articleId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// AssignResult summarizes an assignment pass over one user's accounts.
// Skipped counts accounts left untouched, including those with no eligible
// article.
type AssignResult struct {
	UserID      string              `json:"userId"`
	Created     int                 `json:"created"`
	CarriedOver int                 `json:"carriedOver"`
	Rotated     int                 `json:"rotated"`
	Synced      int                 `json:"synced"`
	Skipped     int                 `json:"skipped"`
	Accounts    []AccountAssignment `json:"accounts"`
}

func (r *AssignResult) add(detail AccountAssignment) {
	switch detail.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeCarriedOver:
		r.CarriedOver++
	case OutcomeRotated:
		r.Rotated++
	case OutcomeSynced:
		r.Synced++
	default:
		r.Skipped++
	}
	r.Accounts = append(r.Accounts, detail)
}

// AssignAllResult aggregates an assignment pass over every user.
type AssignAllResult struct {
	Users       int         `json:"users"`
	Created     int         `json:"created"`
	CarriedOver int         `json:"carriedOver"`
	Rotated     int         `json:"rotated"`
	Synced      int         `json:"synced"`
	Skipped     int         `json:"skipped"`
	Errors      []ItemError `json:"errors"`
}

func (r *AssignAllResult) merge(u *AssignResult) {
	r.Users++
	r.Created += u.Created
	r.CarriedOver += u.CarriedOver
	r.Rotated += u.Rotated
	r.Synced += u.Synced
	r.Skipped += u.Skipped
}

// TaskAssigner keeps exactly one current task on every account: it creates
// missing tasks, carries unfinished ones into the new day and rotates
// finished ones onto a fresh article.
type TaskAssigner struct {
	writer   *documentWriter
	selector *ArticleSelector
	clock    Clock
	newID    func() string
	workers  int
	pageSize int
	logger   *slog.Logger
}

// AssignUser runs the assignment algorithm for every account of the user and
// writes the document only if some task changed.
func (a *TaskAssigner) AssignUser(ctx context.Context, userID string) (*AssignResult, error) {
	if userID == "" {
		return nil, validationError(opAssign, "userId is required")
	}

	var result *AssignResult
	_, err := a.writer.update(ctx, opAssign, userID, func(user *User) (bool, error) {
		now := a.clock.Now()
		today := DayOf(now)
		result = &AssignResult{UserID: userID, Accounts: []AccountAssignment{}}

		changed := false
		for i := range user.Accounts {
			detail, accountChanged := a.assignAccount(ctx, &user.Accounts[i], now, today)
			result.add(detail)
			changed = changed || accountChanged
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// assignAccount applies the per-account rules and reports whether the account
// changed. When a completed task is due for rotation but no article is
// available, the completed task stays in place with outcome no_article rather
// than leaving the account without a task; the next pass tries again.
func (a *TaskAssigner) assignAccount(ctx context.Context, account *Account, now time.Time, today DayWindow) (AccountAssignment, bool) {
	detail := AccountAssignment{AccountID: account.AccountID}
	published := account.PublishedArticleIDs()

	if len(account.DailyTasks) == 0 {
		article, ok := a.sample(ctx, account, published, &detail)
		if !ok {
			return detail, false
		}
		account.DailyTasks = []Task{newTask(a.newID(), *article, now)}
		detail.Outcome = OutcomeCreated
		detail.ArticleID = article.ID
		return detail, true
	}

	task := &account.DailyTasks[0]
	detail.ArticleID = task.ArticleID
	_, done := published[task.ArticleID]

	if today.Contains(task.TaskTime) {
		if syncCompletion(task, done, now) {
			detail.Outcome = OutcomeSynced
			return detail, true
		}
		detail.Outcome = OutcomeUnchanged
		return detail, false
	}

	if !done {
		// Same article, new day. The exclusion set is not consulted again.
		syncCompletion(task, false, now)
		task.TaskTime = now
		detail.Outcome = OutcomeCarriedOver
		return detail, true
	}

	article, ok := a.sample(ctx, account, published, &detail)
	if !ok {
		// Keep the completed task.
		return detail, false
	}
	account.DailyTasks[0] = newTask(a.newID(), *article, now)
	detail.Outcome = OutcomeRotated
	detail.ArticleID = article.ID
	return detail, true
}

// sample draws an article for the account. Store failures are treated as
// "no task this cycle" and only recorded on the detail.
func (a *TaskAssigner) sample(ctx context.Context, account *Account, published map[string]struct{}, detail *AccountAssignment) (*Article, bool) {
	article, err := a.selector.Select(ctx, account.TrackCategory, published)
	if err != nil {
		a.logger.Warn("article selection failed",
			"account_id", account.AccountID,
			"track_category", account.TrackCategory,
			"error", err,
		)
		detail.Outcome = OutcomeNoArticle
		detail.Error = err.Error()
		return nil, false
	}
	if article == nil {
		detail.Outcome = OutcomeNoArticle
		return nil, false
	}
	return article, true
}

// syncCompletion aligns the completed state with the account's posts and
// reports whether the task changed.
func syncCompletion(task *Task, published bool, now time.Time) bool {
	if published && !task.IsCompleted() {
		changed, err := task.Complete(now)
		return err == nil && changed
	}
	if !published && task.IsCompleted() {
		return task.reopen()
	}
	return false
}

// AssignAll runs AssignUser for every user, page by page. Only a failure to
// list the first page fails the call; everything else is reported per user.
func (a *TaskAssigner) AssignAll(ctx context.Context) (*AssignAllResult, error) {
	result := &AssignAllResult{Errors: []ItemError{}}

	after := ""
	for page := 0; ; page++ {
		users, err := a.writer.users.ListUsers(ctx, after, a.pageSize)
		if err != nil {
			err = dependencyError(opAssignAll, fmt.Errorf("list users after %q: %w", after, err))
			if page == 0 {
				return nil, err
			}
			result.Errors = append(result.Errors, newItemError("list", err))
			return result, nil
		}
		if len(users) == 0 {
			break
		}

		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}

		for i, outcome := range runBatch(ctx, a.workers, ids, a.AssignUser) {
			if outcome.Err != nil {
				item := newItemError("assign", outcome.Err)
				item.UserID = ids[i]
				result.Errors = append(result.Errors, item)
				a.logger.Warn("assignment failed for user", "user_id", ids[i], "error", outcome.Err)
				continue
			}
			result.merge(outcome.Value)
		}

		after = ids[len(ids)-1]
		if len(users) < a.pageSize {
			break
		}
	}

	return result, nil
}
