package domain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	opListExpired = "list expired tasks"
	opSweep       = "sweep expired tasks"

	phaseAccount = "account"
	phaseArticle = "article"
)

// ExpiredFilter narrows the expired-task report. Zero values match all.
type ExpiredFilter struct {
	UserID        string
	AccountID     string
	TrackCategory int

	// Limit caps the number of users returned; 0 means no cap.
	Limit int
}

// ExpiredAccount lists the expired tasks of one account.
type ExpiredAccount struct {
	AccountID     string `json:"accountId"`
	TrackCategory int    `json:"trackCategory"`
	Tasks         []Task `json:"tasks"`
}

// ExpiredUser groups expired accounts by user.
type ExpiredUser struct {
	UserID   string           `json:"userId"`
	Accounts []ExpiredAccount `json:"accounts"`
}

// ExpiredReport is the read-only listing of claimed tasks left unfinished
// past their day.
type ExpiredReport struct {
	Users      []ExpiredUser `json:"users"`
	TotalCount int           `json:"totalCount"`
}

// SweepItem names one expired task to convert into a rejection.
type SweepItem struct {
	UserID    string `json:"userId" yaml:"userId"`
	AccountID string `json:"accountId" yaml:"accountId"`
	ArticleID string `json:"articleId" yaml:"articleId"`
}

// Items flattens the report into sweep input.
func (r *ExpiredReport) Items() []SweepItem {
	var items []SweepItem
	for _, u := range r.Users {
		for _, a := range u.Accounts {
			for _, t := range a.Tasks {
				items = append(items, SweepItem{UserID: u.UserID, AccountID: a.AccountID, ArticleID: t.ArticleID})
			}
		}
	}
	return items
}

// SweepResult reports the effects of a sweep. Errors lists every item that
// could not be processed; the rest of the batch is unaffected.
type SweepResult struct {
	RunID            string      `json:"runId"`
	ClearedTasks     int         `json:"clearedTasks"`
	AddedRejectPosts int         `json:"addedRejectPosts"`
	UpdatedArticles  int         `json:"updatedArticles"`
	Errors           []ItemError `json:"errors"`
}

// ExpirationSweeper finds and rejects claimed tasks that outlived their day.
type ExpirationSweeper struct {
	writer   *documentWriter
	articles ArticleRepository
	clock    Clock
	workers  int
	pageSize int
	logger   *slog.Logger
}

// List reports every claimed, uncompleted task dated outside the current
// day. Unclaimed tasks are never reported.
func (s *ExpirationSweeper) List(ctx context.Context, filter ExpiredFilter) (*ExpiredReport, error) {
	today := DayOf(s.clock.Now())
	report := &ExpiredReport{Users: []ExpiredUser{}}

	collect := func(user *User) bool {
		if filter.Limit > 0 && len(report.Users) >= filter.Limit {
			return false
		}
		if entry, n := expiredFor(user, filter, today); n > 0 {
			report.Users = append(report.Users, entry)
			report.TotalCount += n
		}
		return true
	}

	if filter.UserID != "" {
		user, err := s.writer.load(ctx, opListExpired, filter.UserID)
		if err != nil {
			return nil, err
		}
		collect(user)
		return report, nil
	}

	after := ""
	for {
		users, err := s.writer.users.ListUsers(ctx, after, s.pageSize)
		if err != nil {
			return nil, dependencyError(opListExpired, fmt.Errorf("list users after %q: %w", after, err))
		}
		for i := range users {
			if !collect(&users[i]) {
				return report, nil
			}
		}
		if len(users) < s.pageSize {
			return report, nil
		}
		after = users[len(users)-1].ID
	}
}

func expiredFor(user *User, filter ExpiredFilter, today DayWindow) (ExpiredUser, int) {
	entry := ExpiredUser{UserID: user.ID}
	count := 0
	for _, account := range user.Accounts {
		if filter.AccountID != "" && account.AccountID != filter.AccountID {
			continue
		}
		if filter.TrackCategory != 0 && account.TrackCategory != filter.TrackCategory {
			continue
		}
		var tasks []Task
		for _, t := range account.DailyTasks {
			if t.IsExpired(today) {
				tasks = append(tasks, t)
			}
		}
		if len(tasks) == 0 {
			continue
		}
		entry.Accounts = append(entry.Accounts, ExpiredAccount{
			AccountID:     account.AccountID,
			TrackCategory: account.TrackCategory,
			Tasks:         tasks,
		})
		count += len(tasks)
	}
	return entry, count
}

type userSweep struct {
	userID string
	items  []SweepItem
}

type userSweepOutcome struct {
	cleared int
	added   int

	// rejected holds articles whose task was rejected by this sweep;
	// reasserted holds articles already recorded in rejectPosts.
	rejected   []string
	reasserted []string
	errors     []ItemError
}

// articleMark is one article-phase update. A reassert only moves an article
// that is still used, so a revision made since the earlier sweep is kept.
type articleMark struct {
	id       string
	reassert bool
}

// Sweep converts the named tasks into reject posts, clears the owning
// accounts' task lists and marks the articles as needing revision.
//
// The account phase runs first, one document write per user. The article
// phase then touches only articles whose task was rejected, now or by an
// earlier sweep. Articles rejected earlier are moved to needs-revision only
// while they are still used, which lets a re-run repair a failed article
// update without undoing an editor's revision. Re-running a sweep on the
// same items adds and counts nothing.
func (s *ExpirationSweeper) Sweep(ctx context.Context, items []SweepItem) (*SweepResult, error) {
	if len(items) == 0 {
		return nil, validationError(opSweep, "at least one item is required")
	}

	result := &SweepResult{RunID: uuid.NewString(), Errors: []ItemError{}}

	var groups []userSweep
	index := map[string]int{}
	for _, item := range items {
		if item.UserID == "" || item.AccountID == "" || item.ArticleID == "" {
			result.Errors = append(result.Errors, itemError(item, phaseAccount,
				validationError(opSweep, "userId, accountId and articleId are required")))
			continue
		}
		i, ok := index[item.UserID]
		if !ok {
			i = len(groups)
			index[item.UserID] = i
			groups = append(groups, userSweep{userID: item.UserID})
		}
		groups[i].items = append(groups[i].items, item)
	}

	marks := map[string]int{}
	var pending []articleMark
	addMark := func(id string, reassert bool) {
		if i, ok := marks[id]; ok {
			pending[i].reassert = pending[i].reassert && reassert
			return
		}
		marks[id] = len(pending)
		pending = append(pending, articleMark{id: id, reassert: reassert})
	}
	for i, outcome := range runBatch(ctx, s.workers, groups, s.sweepUser) {
		if outcome.Err != nil {
			s.logger.Warn("sweep failed for user", "run_id", result.RunID, "user_id", groups[i].userID, "error", outcome.Err)
			for _, item := range groups[i].items {
				result.Errors = append(result.Errors, itemError(item, phaseAccount, outcome.Err))
			}
			continue
		}
		result.ClearedTasks += outcome.Value.cleared
		result.AddedRejectPosts += outcome.Value.added
		result.Errors = append(result.Errors, outcome.Value.errors...)
		for _, id := range outcome.Value.rejected {
			addMark(id, false)
		}
		for _, id := range outcome.Value.reasserted {
			addMark(id, true)
		}
	}

	markRevision := func(ctx context.Context, mark articleMark) (bool, error) {
		if mark.reassert {
			return s.articles.TransitionArticleStatus(ctx, mark.id, ArticleUsed, ArticleNeedsRevision)
		}
		return true, s.articles.UpdateArticleStatus(ctx, mark.id, ArticleNeedsRevision)
	}
	for i, outcome := range runBatch(ctx, s.workers, pending, markRevision) {
		if outcome.Err != nil {
			s.logger.Warn("sweep failed to update article", "run_id", result.RunID, "article_id", pending[i].id, "error", outcome.Err)
			item := newItemError(phaseArticle, outcome.Err)
			item.ArticleID = pending[i].id
			result.Errors = append(result.Errors, item)
			continue
		}
		if outcome.Value {
			result.UpdatedArticles++
		}
	}

	s.logger.Info("sweep finished",
		"run_id", result.RunID,
		"items", len(items),
		"cleared_tasks", result.ClearedTasks,
		"added_reject_posts", result.AddedRejectPosts,
		"updated_articles", result.UpdatedArticles,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *ExpirationSweeper) sweepUser(ctx context.Context, group userSweep) (*userSweepOutcome, error) {
	var outcome *userSweepOutcome
	_, err := s.writer.update(ctx, opSweep, group.userID, func(user *User) (bool, error) {
		outcome = &userSweepOutcome{}
		now := s.clock.Now()
		changed := false

		for _, item := range group.items {
			account := user.Account(item.AccountID)
			if account == nil {
				outcome.errors = append(outcome.errors, itemError(item, phaseAccount,
					notFoundError(opSweep, "account %s not found", item.AccountID)))
				continue
			}

			task := account.taskFor(item.ArticleID)
			if task == nil {
				if account.hasRejectPost(item.ArticleID) {
					outcome.reasserted = append(outcome.reasserted, item.ArticleID)
					continue
				}
				outcome.errors = append(outcome.errors, itemError(item, phaseAccount,
					notFoundError(opSweep, "no task for article %s", item.ArticleID)))
				continue
			}

			if err := task.Reject(); err != nil {
				outcome.errors = append(outcome.errors, itemError(item, phaseAccount,
					validationError(opSweep, "task for article %s is %s; only claimed tasks can be rejected", item.ArticleID, task.State)))
				continue
			}

			if !account.hasRejectPost(item.ArticleID) {
				account.RejectPosts = append(account.RejectPosts, RejectPost{
					ArticleID:     task.ArticleID,
					Title:         task.ArticleTitle,
					TrackCategory: task.TrackCategory,
					RejectTime:    now,
				})
				outcome.added++
			}
			outcome.cleared += len(account.DailyTasks)
			account.DailyTasks = []Task{}
			outcome.rejected = append(outcome.rejected, item.ArticleID)
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func itemError(item SweepItem, phase string, err error) ItemError {
	e := newItemError(phase, err)
	e.UserID = item.UserID
	e.AccountID = item.AccountID
	e.ArticleID = item.ArticleID
	return e
}
