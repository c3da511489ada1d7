package analysis

import (
	"context"
	"fmt"
	"time"

	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"
)

// minuteAggregator is the part of BucketAggregator the scheduler drives.
type minuteAggregator interface {
	AggregateMinute(ctx context.Context, bucketStart time.Time) (models.MBucketReport, error)
}

// -----------------------------------------------------------------------------

// AggregationScheduler re-evaluates a trailing window of minute buckets every Period.
type AggregationScheduler struct {
	Store           interfaces.IAggregationStore
	Aggregator      minuteAggregator
	Period          time.Duration
	TrailingBuckets int
	SettleDelay     time.Duration // 0 evaluates the open minute immediately
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	now             func() time.Time
}

// -----------------------------------------------------------------------------

func NewAggregationScheduler(
	store interfaces.IAggregationStore,
	aggregator minuteAggregator,
	period time.Duration,
	trailingBuckets int,
	settleDelay time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
) *AggregationScheduler {
	return &AggregationScheduler{
		Store:           store,
		Aggregator:      aggregator,
		Period:          period,
		TrailingBuckets: trailingBuckets,
		SettleDelay:     settleDelay,
		Logger:          log,
		Metrics:         m,
		now:             time.Now,
	}
}

// -----------------------------------------------------------------------------

// Run executes a cycle immediately and then once per Period until ctx is done.
// Cycle failures are logged and retried on the next tick.
func (s *AggregationScheduler) Run(ctx context.Context) error {
	s.Logger.Info("Aggregation scheduler running (period=%s, trailing=%d)", s.Period, s.TrailingBuckets)

	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	for {
		s.safeCycle(ctx)

		select {
		case <-ctx.Done():
			s.Logger.Info("Aggregation scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// -----------------------------------------------------------------------------

func (s *AggregationScheduler) safeCycle(ctx context.Context) {
	started := time.Now()
	failed := false
	defer func() {
		if r := recover(); r != nil {
			failed = true
			s.Logger.Error("Aggregation cycle panicked: %v", r)
		}
		s.Metrics.CycleFinished(time.Since(started).Seconds(), failed)
	}()

	report, err := s.RunCycle(ctx)
	if err != nil {
		failed = true
		s.Logger.Error("Aggregation cycle aborted: %v", err)
		return
	}

	if report.Evaluated > 0 {
		inserted, duplicates, failures := report.Totals()
		s.Logger.Info("Aggregation cycle done: buckets=%d deferred=%d inserted=%d duplicates=%d failed=%d",
			report.Evaluated, report.Deferred, inserted, duplicates, failures)
	}
}

// -----------------------------------------------------------------------------

// RunCycle evaluates the TrailingBuckets minutes ending at the floor of the newest
// tick, newest first. No ticks means no work. A read failure aborts the remaining
// buckets; already committed ones stay committed.
func (s *AggregationScheduler) RunCycle(ctx context.Context) (models.MCycleReport, error) {
	var report models.MCycleReport

	latest, ok, err := s.Store.LatestTickTimestamp(ctx)
	if err != nil {
		return report, fmt.Errorf("read latest tick: %w", err)
	}
	if !ok {
		s.Logger.Debug("No ticks stored yet, skipping cycle")
		return report, nil
	}

	report.LatestTick = latest
	base := latest.UTC().Truncate(BucketWidth)
	now := s.now().UTC()

	for i := 0; i < s.TrailingBuckets; i++ {
		bucketStart := base.Add(-time.Duration(i) * BucketWidth)

		if s.SettleDelay > 0 && bucketStart.Add(BucketWidth+s.SettleDelay).After(now) {
			report.Deferred++
			continue
		}

		bucketReport, err := s.Aggregator.AggregateMinute(ctx, bucketStart)
		if err != nil {
			return report, fmt.Errorf("aggregate bucket %s: %w", bucketStart.Format(time.RFC3339), err)
		}
		report.Evaluated++
		report.Buckets = append(report.Buckets, bucketReport)
	}

	return report, nil
}
