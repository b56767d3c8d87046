package domain

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
)

// sampleSize is how many random candidates are fetched per draw.
const sampleSize = 16

// ArticleSelector samples unused articles from the pool.
type ArticleSelector struct {
	articles ArticleRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// NewArticleSelector creates a selector. A nil rng uses a randomly seeded
// generator.
func NewArticleSelector(articles ArticleRepository, rng *rand.Rand) *ArticleSelector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ArticleSelector{articles: articles, rng: rng}
}

// Select draws one unused article of the track category uniformly at random,
// skipping ids in excluded. The store returns a small random sample and the
// pick is made among the candidates that still pass the filter. It returns
// nil when nothing is eligible.
func (s *ArticleSelector) Select(ctx context.Context, trackCategory int, excluded map[string]struct{}) (*Article, error) {
	ids := make([]string, 0, len(excluded))
	for id := range excluded {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	found, err := s.articles.FindUnusedArticles(ctx, trackCategory, ids, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("find unused articles: %w", err)
	}

	var candidates []Article
	for _, a := range found {
		if _, skip := excluded[a.ID]; skip {
			continue
		}
		if a.Status != ArticleUnused || a.TrackCategory != trackCategory {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	pick := candidates[s.rng.IntN(len(candidates))]
	s.mu.Unlock()

	return &pick, nil
}
