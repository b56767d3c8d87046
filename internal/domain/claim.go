package domain

import (
	"context"
	"errors"
	"log/slog"
)

const opClaim = "claim task"

// ClaimRequest identifies the task a creator wants to work on.
type ClaimRequest struct {
	UserID    string `json:"userId"`
	AccountID string `json:"accountId"`
	ArticleID string `json:"articleId"`
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Task  Task   `json:"task"`
	Tasks []Task `json:"tasks"`

	// ArticleMarked is false when the article status write failed or was not
	// needed because the task was already claimed.
	ArticleMarked bool `json:"articleMarked"`
}

// ClaimProcessor moves tasks from unclaimed to claimed.
type ClaimProcessor struct {
	writer   *documentWriter
	articles ArticleRepository
	clock    Clock
	logger   *slog.Logger
}

// Claim marks the account's active task for the article as claimed and then
// flips the article to used. The article write is best effort: when it fails
// the claim still succeeds and the drift is logged.
func (p *ClaimProcessor) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	switch {
	case req.UserID == "":
		return nil, validationError(opClaim, "userId is required")
	case req.AccountID == "":
		return nil, validationError(opClaim, "accountId is required")
	case req.ArticleID == "":
		return nil, validationError(opClaim, "articleId is required")
	}

	var (
		result     *ClaimResult
		claimedNow bool
	)
	_, err := p.writer.update(ctx, opClaim, req.UserID, func(user *User) (bool, error) {
		account := user.Account(req.AccountID)
		if account == nil {
			return false, notFoundError(opClaim, "account %s not found", req.AccountID)
		}
		if !account.Enabled() {
			return false, forbiddenError(opClaim, "account %s is disabled", req.AccountID)
		}

		task := account.activeTask(req.ArticleID)
		if task == nil {
			return false, notFoundError(opClaim, "no active task for article %s", req.ArticleID)
		}

		changed, err := task.Claim(p.clock.Now())
		if err != nil {
			var te *TransitionError
			if errors.As(err, &te) {
				return false, validationError(opClaim, "%s", te.Error())
			}
			return false, err
		}
		claimedNow = changed
		result = &ClaimResult{Task: *task, Tasks: cloneTasks(account.DailyTasks)}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}

	if !claimedNow {
		return result, nil
	}

	if err := p.articles.UpdateArticleStatus(ctx, req.ArticleID, ArticleUsed); err != nil {
		p.logger.Warn("claim recorded but article status update failed",
			"user_id", req.UserID,
			"account_id", req.AccountID,
			"article_id", req.ArticleID,
			"error", err,
		)
		return result, nil
	}
	result.ArticleMarked = true

	return result, nil
}
