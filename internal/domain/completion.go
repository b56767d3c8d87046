package domain

import (
	"context"
	"log/slog"
)

const opComplete = "report completion"

// CompletionRequest is a publish report for one article on one account.
type CompletionRequest struct {
	UserID        string  `json:"userId"`
	AccountID     string  `json:"accountId"`
	ArticleID     string  `json:"articleId"`
	Title         string  `json:"title"`
	TrackCategory int     `json:"trackCategory"`
	CallbackURL   string  `json:"callbackUrl"`
	Metrics       Metrics `json:"metrics"`
}

// CompletionResult is the outcome of a publish report.
type CompletionResult struct {
	Post            Post `json:"post"`
	Replaced        bool `json:"replaced"`
	TaskSyncedCount int  `json:"taskSyncedCount"`
}

// CompletionMatcher records published posts and marks matching tasks done.
type CompletionMatcher struct {
	writer *documentWriter
	clock  Clock
	logger *slog.Logger
}

// Report upserts the post for the article and completes every active task
// of the account that points at it. Tasks are left in place; the next
// assignment pass rotates them. Completion does not require a prior claim.
func (m *CompletionMatcher) Report(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	switch {
	case req.UserID == "":
		return nil, validationError(opComplete, "userId is required")
	case req.AccountID == "":
		return nil, validationError(opComplete, "accountId is required")
	case req.ArticleID == "":
		return nil, validationError(opComplete, "articleId is required")
	}

	var result *CompletionResult
	_, err := m.writer.update(ctx, opComplete, req.UserID, func(user *User) (bool, error) {
		account := user.Account(req.AccountID)
		if account == nil {
			return false, notFoundError(opComplete, "account %s not found", req.AccountID)
		}
		if !account.Enabled() {
			return false, forbiddenError(opComplete, "account %s is disabled", req.AccountID)
		}

		now := m.clock.Now()
		post := Post{
			ArticleID:     req.ArticleID,
			Title:         req.Title,
			TrackCategory: req.TrackCategory,
			CallbackURL:   req.CallbackURL,
			PublishTime:   now,
			Metrics:       req.Metrics,
		}
		if post.TrackCategory == 0 {
			post.TrackCategory = account.TrackCategory
		}
		if task := account.taskFor(req.ArticleID); task != nil && post.Title == "" {
			post.Title = task.ArticleTitle
		}

		result = &CompletionResult{Post: post, Replaced: account.upsertPost(post)}
		for i := range account.DailyTasks {
			task := &account.DailyTasks[i]
			if task.ArticleID != req.ArticleID || !task.Active() {
				continue
			}
			if changed, err := task.Complete(now); err == nil && changed {
				result.TaskSyncedCount++
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("completion recorded",
		"user_id", req.UserID,
		"account_id", req.AccountID,
		"article_id", req.ArticleID,
		"tasks_synced", result.TaskSyncedCount,
	)
	return result, nil
}
