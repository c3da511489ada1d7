package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MAggregateBucket is the per-minute OHLCV + sentiment summary for one symbol.
// (Symbol, BucketStart) is unique in the store.
type MAggregateBucket struct {
	Symbol            string          `json:"symbol"`
	BucketStart       time.Time       `json:"bucket_start"`
	Open              decimal.Decimal `json:"open_price"`
	Close             decimal.Decimal `json:"close_price"`
	High              decimal.Decimal `json:"high_price"`
	Low               decimal.Decimal `json:"low_price"`
	Volume            decimal.Decimal `json:"volume"`
	PriceChangePct    float64         `json:"price_change_pct"`
	AvgSentiment      *float64        `json:"avg_sentiment"`
	SentimentStrength *float64        `json:"sentiment_strength"`
	PostCount         int             `json:"post_count"`
	CreatedAt         time.Time       `json:"created_at"`
}

// -----------------------------------------------------------------------------

// MBucketReport summarises one AggregateMinute call.
type MBucketReport struct {
	BucketStart time.Time        `json:"bucket_start"`
	Inserted    []string         `json:"inserted"`
	Duplicates  []string         `json:"duplicates"`
	Failed      map[string]error `json:"-"`
}

// MCycleReport summarises one scheduler cycle.
type MCycleReport struct {
	LatestTick time.Time       `json:"latest_tick"`
	Evaluated  int             `json:"evaluated"`
	Deferred   int             `json:"deferred"`
	Buckets    []MBucketReport `json:"buckets"`
}

// -----------------------------------------------------------------------------

// Totals returns inserted, duplicate and failed row counts across the cycle.
func (r MCycleReport) Totals() (inserted, duplicates, failed int) {
	for _, b := range r.Buckets {
		inserted += len(b.Inserted)
		duplicates += len(b.Duplicates)
		failed += len(b.Failed)
	}
	return inserted, duplicates, failed
}
