package analysis

import (
	"context"
	"sort"
	"time"

	"sentiment-observer/src/analysis/core"
	"sentiment-observer/src/helpers"
	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"
)

// BucketWidth is the aggregation unit.
const BucketWidth = time.Minute

// -----------------------------------------------------------------------------

// BucketAggregator turns the ticks and sentiment of one minute into aggregate rows.
type BucketAggregator struct {
	Store          interfaces.IAggregationStore
	Keywords       map[string][]string
	FallbackWindow time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	now            func() time.Time
}

// -----------------------------------------------------------------------------

func NewBucketAggregator(
	store interfaces.IAggregationStore,
	keywords map[string][]string,
	fallback time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
) *BucketAggregator {
	return &BucketAggregator{
		Store:          store,
		Keywords:       keywords,
		FallbackWindow: fallback,
		Logger:         log,
		Metrics:        m,
		now:            time.Now,
	}
}

// -----------------------------------------------------------------------------

// ComputeBucket builds the aggregate for symbol over [bucketStart, bucketStart+1m).
// ticks may contain other symbols or timestamps; they are ignored. sentiment is the
// already-selected window for the bucket (with fallback applied). ok is false when
// the symbol has no ticks in the window.
func ComputeBucket(
	symbol string,
	bucketStart time.Time,
	ticks []models.MTick,
	sentiment []models.MSentimentObservation,
	keywords []string,
) (models.MAggregateBucket, bool) {
	start := bucketStart.UTC()
	end := start.Add(BucketWidth)

	var window []models.MTick
	for _, t := range ticks {
		if t.Symbol == symbol && !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			window = append(window, t)
		}
	}
	// Stable keeps arrival order for equal timestamps.
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	ohlcv, ok := core.ComputeOHLCV(window)
	if !ok {
		return models.MAggregateBucket{}, false
	}

	bucket := models.MAggregateBucket{
		Symbol:         symbol,
		BucketStart:    start,
		Open:           ohlcv.Open,
		Close:          ohlcv.Close,
		High:           ohlcv.High,
		Low:            ohlcv.Low,
		Volume:         ohlcv.Volume,
		PriceChangePct: core.CalculateChangePercent(ohlcv.Close, ohlcv.Open),
	}

	if summary, ok := core.SummarizeSentiment(SelectSentimentScores(sentiment, keywords)); ok {
		avg, strength := summary.Avg, summary.Strength
		bucket.AvgSentiment = &avg
		bucket.SentimentStrength = &strength
		bucket.PostCount = summary.Count
	}

	return bucket, true
}

// -----------------------------------------------------------------------------

// AggregateMinute computes and commits every symbol that ticked in the minute
// starting at bucketStart. A read failure aborts and is returned; per-symbol insert
// failures are logged and reported without stopping the other symbols.
func (a *BucketAggregator) AggregateMinute(ctx context.Context, bucketStart time.Time) (models.MBucketReport, error) {
	start := bucketStart.UTC().Truncate(BucketWidth)
	end := start.Add(BucketWidth)
	report := models.MBucketReport{BucketStart: start, Failed: make(map[string]error)}

	ticks, err := a.Store.TicksInRange(ctx, "", start, end)
	if err != nil {
		return report, err
	}
	if len(ticks) == 0 {
		return report, nil
	}

	window, err := a.sentimentWindow(ctx, start, end)
	if err != nil {
		return report, err
	}

	createdAt := a.now().UTC()
	for _, symbol := range symbolsOf(ticks) {
		bucket, ok := ComputeBucket(symbol, start, ticks, window, a.Keywords[symbol])
		if !ok {
			continue
		}
		bucket.CreatedAt = createdAt

		err := a.Store.InsertAggregate(ctx, bucket)
		switch {
		case err == nil:
			report.Inserted = append(report.Inserted, symbol)
			a.Metrics.BucketOutcome(metrics.OutcomeInserted)
			a.Logger.Debug("Committed %s bucket %s (posts=%d)", symbol, start.Format(time.RFC3339), bucket.PostCount)
		case helpers.IsDuplicate(err):
			report.Duplicates = append(report.Duplicates, symbol)
			a.Metrics.BucketOutcome(metrics.OutcomeDuplicate)
		default:
			report.Failed[symbol] = err
			a.Metrics.BucketOutcome(metrics.OutcomeFailed)
			a.Logger.Error("Failed to commit %s bucket %s: %v", symbol, start.Format(time.RFC3339), err)
		}
	}

	return report, nil
}

// -----------------------------------------------------------------------------

// sentimentWindow selects the bucket's sentiment, widening the lower bound by
// FallbackWindow when the bucket itself has none.
func (a *BucketAggregator) sentimentWindow(ctx context.Context, start, end time.Time) ([]models.MSentimentObservation, error) {
	obs, err := a.Store.SentimentInRange(ctx, start, end)
	if err != nil || len(obs) > 0 || a.FallbackWindow <= 0 {
		return obs, err
	}
	return a.Store.SentimentInRange(ctx, start.Add(-a.FallbackWindow), end)
}

// -----------------------------------------------------------------------------

func symbolsOf(ticks []models.MTick) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, t := range ticks {
		if _, ok := seen[t.Symbol]; !ok {
			seen[t.Symbol] = struct{}{}
			symbols = append(symbols, t.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}
