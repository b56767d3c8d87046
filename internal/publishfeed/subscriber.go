package publishfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

const (
	cursorServiceName  = "publish-feed"
	cursorSaveInterval = 5 * time.Second
	reconnectDelay     = 5 * time.Second
	statsInterval      = 30 * time.Second
)

// CompletionService is the part of the task engine the subscriber drives.
type CompletionService interface {
	ReportCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber consumes the publish-report stream and records every reported
// post as a completion.
type Subscriber struct {
	url     string
	service CompletionService
	logger  *slog.Logger

	saveEvery time.Duration
	retryWait time.Duration
}

// NewSubscriber creates a new publish-report subscriber.
func NewSubscriber(feedURL string, service CompletionService, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:       feedURL,
		service:   service,
		logger:    logger,
		saveEvery: cursorSaveInterval,
		retryWait: reconnectDelay,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It reconnects after a fixed delay on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("publish feed connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryWait):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if cursor > 0 {
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(cursor, 10))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.service.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to publish feed", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial publish feed: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to publish feed")

	latestCursor := cursor
	savedCursor := cursor
	lastCursorSave := time.Now()
	var eventsReceived, completionsRecorded, completionsSkipped int64
	lastStatsLog := time.Now()

	saveCursor := func(ctx context.Context) {
		if latestCursor == savedCursor {
			return
		}
		if err := s.service.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
			s.logger.Error("failed to save cursor", "error", err)
			return
		}
		savedCursor = latestCursor
		lastCursorSave = time.Now()
	}
	defer saveCursor(context.WithoutCancel(ctx))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++

		// The cursor only moves past a report once it is recorded or skipped.
		// Any other failure drops the connection so the report is replayed
		// from the last saved cursor.
		if event.Kind == kindPublish && event.Publish != nil {
			recorded, err := s.handlePublish(ctx, event)
			if err != nil {
				return fmt.Errorf("record publish report %d: %w", event.Seq, err)
			}
			if recorded {
				completionsRecorded++
			} else {
				completionsSkipped++
			}
		}

		if event.Seq > latestCursor {
			latestCursor = event.Seq
		}

		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("publish feed stats",
				"events_received", eventsReceived,
				"completions_recorded", completionsRecorded,
				"completions_skipped", completionsSkipped,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= s.saveEvery {
			saveCursor(ctx)
		}
	}
}

// handlePublish reports the completion and returns whether it was recorded.
// Invalid reports and reports for unknown or disabled accounts are expected
// and only logged; every other failure is returned.
func (s *Subscriber) handlePublish(ctx context.Context, event *publishEvent) (bool, error) {
	p := event.Publish
	result, err := s.service.ReportCompletion(ctx, domain.CompletionRequest{
		UserID:        p.UserID,
		AccountID:     p.AccountID,
		ArticleID:     p.ArticleID,
		Title:         p.Title,
		TrackCategory: p.TrackCategory,
		CallbackURL:   p.CallbackURL,
		Metrics: domain.Metrics{
			Views:    p.Metrics.Views,
			Likes:    p.Metrics.Likes,
			Earnings: p.Metrics.Earnings,
		},
	})
	if err != nil {
		attrs := []any{
			"seq", event.Seq,
			"user_id", p.UserID,
			"account_id", p.AccountID,
			"article_id", p.ArticleID,
			"error", err,
		}
		switch {
		case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
			s.logger.Warn("skipping publish report", attrs...)
			return false, nil
		default:
			s.logger.Error("failed to record publish report", attrs...)
			return false, err
		}
	}

	s.logger.Debug("recorded publish report",
		"seq", event.Seq,
		"user_id", p.UserID,
		"account_id", p.AccountID,
		"article_id", p.ArticleID,
		"replaced", result.Replaced,
		"tasks_completed", result.TaskSyncedCount,
	)
	return true, nil
}
