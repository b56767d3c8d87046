package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Options tunes a TaskService. Zero values select defaults.
type Options struct {
	// Clock supplies "now"; its location defines day boundaries.
	Clock Clock

	// Rand drives article sampling.
	Rand *rand.Rand

	// Workers bounds concurrency inside batch operations.
	Workers int

	// WriteAttempts bounds compare-and-swap retries per document write.
	WriteAttempts int

	// PageSize is the number of users read per page in full scans.
	PageSize int

	// NewID generates task ids.
	NewID func() string
}

const (
	defaultWorkers       = 8
	defaultWriteAttempts = 3
	defaultPageSize      = 200
)

// TaskService is the entry point to the daily task engine. Every method is a
// stateless, idempotent unit of work that is safe to call again after a
// failure.
type TaskService struct {
	assigner    *TaskAssigner
	claims      *ClaimProcessor
	completions *CompletionMatcher
	sweeper     *ExpirationSweeper
	cursors     CursorRepository
	logger      *slog.Logger
}

// NewTaskService wires the engine components over the given repositories.
func NewTaskService(users UserRepository, articles ArticleRepository, cursors CursorRepository, logger *slog.Logger, opts Options) (*TaskService, error) {
	if users == nil || articles == nil {
		return nil, fmt.Errorf("user and article repositories are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{Location: time.Local}
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.WriteAttempts <= 0 {
		opts.WriteAttempts = defaultWriteAttempts
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	writer := &documentWriter{users: users, attempts: opts.WriteAttempts, logger: logger}

	return &TaskService{
		assigner: &TaskAssigner{
			writer:   writer,
			selector: NewArticleSelector(articles, opts.Rand),
			clock:    opts.Clock,
			newID:    opts.NewID,
			workers:  opts.Workers,
			pageSize: opts.PageSize,
			logger:   logger.With("component", "assigner"),
		},
		claims: &ClaimProcessor{
			writer:   writer,
			articles: articles,
			clock:    opts.Clock,
			logger:   logger.With("component", "claims"),
		},
		completions: &CompletionMatcher{
			writer: writer,
			clock:  opts.Clock,
			logger: logger.With("component", "completions"),
		},
		sweeper: &ExpirationSweeper{
			writer:   writer,
			articles: articles,
			clock:    opts.Clock,
			workers:  opts.Workers,
			pageSize: opts.PageSize,
			logger:   logger.With("component", "sweeper"),
		},
		cursors: cursors,
		logger:  logger,
	}, nil
}

// AssignOrRotateTask creates, carries over, rotates or syncs the current
// task of every account of the user.
func (s *TaskService) AssignOrRotateTask(ctx context.Context, userID string) (*AssignResult, error) {
	return s.assigner.AssignUser(ctx, userID)
}

// AssignAll runs AssignOrRotateTask for every user.
func (s *TaskService) AssignAll(ctx context.Context) (*AssignAllResult, error) {
	return s.assigner.AssignAll(ctx)
}

// ClaimTask records the creator's claim on a task.
func (s *TaskService) ClaimTask(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	return s.claims.Claim(ctx, req)
}

// ReportCompletion records a published post and completes the matching task.
func (s *TaskService) ReportCompletion(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	return s.completions.Report(ctx, req)
}

// ListExpiredClaimedTasks reports claimed tasks left unfinished past their day.
func (s *TaskService) ListExpiredClaimedTasks(ctx context.Context, filter ExpiredFilter) (*ExpiredReport, error) {
	return s.sweeper.List(ctx, filter)
}

// SweepExpiredTasks converts the named expired tasks into rejections.
func (s *TaskService) SweepExpiredTasks(ctx context.Context, items []SweepItem) (*SweepResult, error) {
	return s.sweeper.Sweep(ctx, items)
}

// GetCursor retrieves the last-processed stream cursor for the given service.
func (s *TaskService) GetCursor(ctx context.Context, service string) (int64, error) {
	if s.cursors == nil {
		return 0, nil
	}
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the stream cursor for the given service.
func (s *TaskService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	if s.cursors == nil {
		return nil
	}
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// StartExpiryReportJob logs the number of expired claimed tasks immediately
// and then at every interval. It never sweeps; rejection stays an explicit
// administrative action. It blocks until ctx is cancelled.
func (s *TaskService) StartExpiryReportJob(ctx context.Context, interval time.Duration) {
	s.runExpiryReport(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runExpiryReport(ctx)
		}
	}
}

func (s *TaskService) runExpiryReport(ctx context.Context) {
	report, err := s.sweeper.List(ctx, ExpiredFilter{})
	if err != nil {
		s.logger.Error("expiry report failed", "error", err)
		return
	}
	if report.TotalCount > 0 {
		s.logger.Info("expired claimed tasks pending sweep", "users", len(report.Users), "tasks", report.TotalCount)
	}
}
