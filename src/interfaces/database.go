package interfaces

import (
	"context"
	"time"

	"sentiment-observer/src/models"
)

// -----------------------------------------------------------------------------
// ITickWriter is the only store capability a connection worker needs.
// -----------------------------------------------------------------------------

type ITickWriter interface {
	// AppendTick stores one tick atomically. Returns helpers.ErrDuplicate when the
	// (symbol, trade id) pair is already stored.
	AppendTick(ctx context.Context, tick models.MTick) error
}

// -----------------------------------------------------------------------------
// IAggregationStore is what the bucket aggregator and scheduler read and write.
// -----------------------------------------------------------------------------

type IAggregationStore interface {

	// TicksInRange returns ticks in [start, end) ordered by timestamp then insertion.
	// An empty symbol selects every symbol.
	TicksInRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MTick, error)

	// -----------------------------------------------------------------------------

	// LatestTickTimestamp returns the newest tick timestamp across all symbols.
	// ok is false when the store holds no ticks.
	LatestTickTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)

	// -----------------------------------------------------------------------------

	// SentimentInRange returns sentiment observations in [start, end).
	SentimentInRange(ctx context.Context, start, end time.Time) ([]models.MSentimentObservation, error)

	// -----------------------------------------------------------------------------

	// InsertAggregate commits one bucket. Returns helpers.ErrDuplicate when the
	// (symbol, bucket_start) key exists; the existing row is kept.
	InsertAggregate(ctx context.Context, bucket models.MAggregateBucket) error
}

// -----------------------------------------------------------------------------
// IDatabase defines the full contract for storage backends.
// -----------------------------------------------------------------------------

type IDatabase interface {
	ITickWriter
	IAggregationStore

	// Initialize opens the connection pool and creates missing tables.
	Initialize() error

	// AppendSentiment stores one sentiment observation (written by the text ingestion side).
	AppendSentiment(ctx context.Context, obs models.MSentimentObservation) error

	// GetAggregate reads back a committed bucket; nil when absent.
	GetAggregate(ctx context.Context, symbol string, bucketStart time.Time) (*models.MAggregateBucket, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// Close the database connection
	Close() error
}
