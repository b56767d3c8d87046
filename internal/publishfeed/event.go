package publishfeed

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const kindPublish = "publish"

// publishEvent is one frame of the publish-report stream.
type publishEvent struct {
	Seq     int64          `json:"seq"`
	Kind    string         `json:"kind"`
	Publish *publishRecord `json:"publish,omitempty"`
}

// publishRecord reports that an account published, or refreshed the metrics
// of, an article.
type publishRecord struct {
	UserID        string        `json:"userId"`
	AccountID     string        `json:"accountId"`
	ArticleID     string        `json:"articleId"`
	Title         string        `json:"title"`
	TrackCategory int           `json:"trackCategory"`
	CallbackURL   string        `json:"callbackUrl"`
	Metrics       publishMetric `json:"metrics"`
}

type publishMetric struct {
	Views    int64           `json:"views"`
	Likes    int64           `json:"likes"`
	Earnings decimal.Decimal `json:"earnings"`
}

func parseEvent(data []byte) (*publishEvent, error) {
	var raw struct {
		Seq     int64           `json:"seq"`
		Kind    string          `json:"kind"`
		Publish json.RawMessage `json:"publish,omitempty"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	event := &publishEvent{
		Seq:  raw.Seq,
		Kind: raw.Kind,
	}

	if raw.Kind == kindPublish {
		if len(raw.Publish) == 0 {
			return nil, fmt.Errorf("publish event %d has no payload", raw.Seq)
		}
		var record publishRecord
		if err := json.Unmarshal(raw.Publish, &record); err != nil {
			return nil, fmt.Errorf("unmarshal publish record: %w", err)
		}
		event.Publish = &record
	}

	return event, nil
}
