package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics are performance figures supplied by the publish-reporting
// collaborator.
type Metrics struct {
	Views    int64           `json:"views" yaml:"views"`
	Likes    int64           `json:"likes" yaml:"likes"`
	Earnings decimal.Decimal `json:"earnings" yaml:"earnings"`
}

// Post records a published article for an account.
type Post struct {
	ArticleID     string    `json:"articleId" yaml:"articleId"`
	Title         string    `json:"title" yaml:"title"`
	TrackCategory int       `json:"trackCategory" yaml:"trackCategory"`
	CallbackURL   string    `json:"callbackUrl,omitempty" yaml:"callbackUrl,omitempty"`
	PublishTime   time.Time `json:"publishTime" yaml:"publishTime"`
	Metrics       Metrics   `json:"metrics" yaml:"metrics"`
}

// RejectPost records a claimed task that expired without being published.
type RejectPost struct {
	ArticleID     string    `json:"articleId" yaml:"articleId"`
	Title         string    `json:"title" yaml:"title"`
	TrackCategory int       `json:"trackCategory" yaml:"trackCategory"`
	RejectTime    time.Time `json:"rejectTime" yaml:"rejectTime"`
}
