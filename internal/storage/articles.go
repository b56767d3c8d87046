package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

var articleColumns = []string{"id", "title", "track_category", "platform_type", "download_url", "status"}

// FindUnusedArticles returns up to limit unused articles of the category in
// random order, skipping the excluded ids. A limit of 0 returns all of them.
func (r *Repository) FindUnusedArticles(ctx context.Context, trackCategory int, excluded []string, limit int) ([]domain.Article, error) {
	builder := r.sb.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"status": string(domain.ArticleUnused), "track_category": trackCategory}).
		OrderBy("RANDOM()")
	if len(excluded) > 0 {
		builder = builder.Where(sq.NotEq{"id": excluded})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unused articles (category=%d, excluded=%d): %w", trackCategory, len(excluded), err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	return articles, nil
}

// GetArticle loads one article by id.
func (r *Repository) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	query, args, err := r.sb.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article query: %w", err)
	}

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return &a, nil
}

// UpdateArticleStatus sets the status of one article.
func (r *Repository) UpdateArticleStatus(ctx context.Context, id string, status domain.ArticleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid article status %q", status)
	}

	query, args, err := r.sb.
		Update("articles").
		Set("status", string(status)).
		Set("updated_at", r.nowMillis()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build article update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// TransitionArticleStatus moves one article from one status to another and
// reports whether it was in the from status.
func (r *Repository) TransitionArticleStatus(ctx context.Context, id string, from, to domain.ArticleStatus) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("invalid article status %q", to)
	}

	query, args, err := r.sb.
		Update("articles").
		Set("status", string(to)).
		Set("updated_at", r.nowMillis()).
		Where(sq.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build article transition: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition article %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition article %s: %w", id, err)
	}
	if affected > 0 {
		return true, nil
	}

	if _, err := r.GetArticle(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ImportArticles inserts articles that do not exist yet. Existing articles
// are left untouched because their content never changes after creation.
// Returns the number of articles inserted.
func (r *Repository) ImportArticles(ctx context.Context, articles []domain.Article) (int64, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.nowMillis()
	var inserted int64
	for _, a := range articles {
		if a.ID == "" {
			return 0, fmt.Errorf("article without id")
		}
		status := a.Status
		if status == "" {
			status = domain.ArticleUnused
		}
		if !status.Valid() {
			return 0, fmt.Errorf("article %s: invalid status %q", a.ID, status)
		}

		query, args, err := r.sb.
			Insert("articles").
			Columns(append(articleColumns, "created_at", "updated_at")...).
			Values(a.ID, a.Title, a.TrackCategory, a.PlatformType, a.DownloadURL, string(status), now, now).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build article insert: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert article %s: %w", a.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return inserted, nil
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a      domain.Article
		status string
	)
	err := row.Scan(&a.ID, &a.Title, &a.TrackCategory, &a.PlatformType, &a.DownloadURL, &status)
	a.Status = domain.ArticleStatus(status)
	return a, err
}
