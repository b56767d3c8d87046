package domain

// ArticleStatus is the only mutable attribute of a pool article.
type ArticleStatus string

const (
	ArticleUnused        ArticleStatus = "unused"
	ArticleUsed          ArticleStatus = "used"
	ArticleNeedsRevision ArticleStatus = "needs-revision"
)

// Valid reports whether s is a known status.
func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleUnused, ArticleUsed, ArticleNeedsRevision:
		return true
	}
	return false
}

// Article is a publishable piece of content in the pool.
type Article struct {
	ID            string        `json:"articleId" yaml:"articleId"`
	Title         string        `json:"title" yaml:"title"`
	TrackCategory int           `json:"trackCategory" yaml:"trackCategory"`
	PlatformType  string        `json:"platformType" yaml:"platformType"`
	DownloadURL   string        `json:"downloadUrl" yaml:"downloadUrl"`
	Status        ArticleStatus `json:"status" yaml:"status"`
}
