package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bucket0 = time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

var testKeywords = map[string][]string{
	"BTC-USD": {"btc", "bitcoin"},
	"ETH-USD": {"eth", "ethereum"},
}

func mkTick(symbol, price, volume string, offset time.Duration) models.MTick {
	t := models.MTick{Symbol: symbol, Price: decimal.RequireFromString(price), Timestamp: bucket0.Add(offset)}
	if volume != "" {
		t.Volume = decimal.RequireFromString(volume)
	}
	return t
}

func mkPost(text string, score float64, offset time.Duration) models.MSentimentObservation {
	return models.MSentimentObservation{Text: text, Sentiment: score, Timestamp: bucket0.Add(offset)}
}

func newTestAggregator(store *fakeStore) *BucketAggregator {
	return NewBucketAggregator(store, testKeywords, 5*time.Minute, logger.NewNopLogger(), metrics.NewMetrics())
}

// -----------------------------------------------------------------------------

func TestComputeBucket_OHLC(t *testing.T) {
	// Deliberately out of order; ordering is by timestamp.
	ticks := []models.MTick{
		mkTick("BTC-USD", "98", "1", 30*time.Second),
		mkTick("BTC-USD", "100", "0.5", 0),
		mkTick("BTC-USD", "102", "", 45*time.Second),
		mkTick("BTC-USD", "105", "2", 10*time.Second),
		mkTick("ETH-USD", "3000", "1", 20*time.Second),
		mkTick("BTC-USD", "200", "9", 61*time.Second), // next bucket
	}

	b, ok := ComputeBucket("BTC-USD", bucket0, ticks, nil, testKeywords["BTC-USD"])
	require.True(t, ok)
	assert.Equal(t, "100", b.Open.String())
	assert.Equal(t, "102", b.Close.String())
	assert.Equal(t, "105", b.High.String())
	assert.Equal(t, "98", b.Low.String())
	assert.Equal(t, "3.5", b.Volume.String())
	assert.InDelta(t, 2.0, b.PriceChangePct, 1e-9)
	assert.Equal(t, bucket0, b.BucketStart)
	assert.Nil(t, b.AvgSentiment)
	assert.Nil(t, b.SentimentStrength)
	assert.Equal(t, 0, b.PostCount)
}

func TestComputeBucket_TiesKeepArrivalOrder(t *testing.T) {
	ticks := []models.MTick{
		mkTick("BTC-USD", "100", "1", 5*time.Second),
		mkTick("BTC-USD", "101", "1", 5*time.Second),
	}
	b, ok := ComputeBucket("BTC-USD", bucket0, ticks, nil, nil)
	require.True(t, ok)
	assert.Equal(t, "100", b.Open.String())
	assert.Equal(t, "101", b.Close.String())
}

func TestComputeBucket_ZeroOpen(t *testing.T) {
	ticks := []models.MTick{
		mkTick("BTC-USD", "0", "1", 0),
		mkTick("BTC-USD", "50", "1", time.Second),
	}
	b, ok := ComputeBucket("BTC-USD", bucket0, ticks, nil, nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, b.PriceChangePct)
}

func TestComputeBucket_Gap(t *testing.T) {
	ticks := []models.MTick{mkTick("ETH-USD", "3000", "1", 0)}
	_, ok := ComputeBucket("BTC-USD", bucket0, ticks, nil, nil)
	assert.False(t, ok)

	// The window end is exclusive.
	ticks = []models.MTick{mkTick("BTC-USD", "1", "1", time.Minute)}
	_, ok = ComputeBucket("BTC-USD", bucket0, ticks, nil, nil)
	assert.False(t, ok)
}

func TestComputeBucket_Sentiment(t *testing.T) {
	ticks := []models.MTick{
		mkTick("BTC-USD", "100", "1", 0),
		mkTick("ETH-USD", "3000", "1", 0),
		mkTick("USDT-USD", "1", "1", 0),
	}
	window := []models.MSentimentObservation{
		mkPost("Bitcoin breaks out", 0.8, 5*time.Second),
		mkPost("BTC dip incoming", -0.4, 10*time.Second),
		mkPost("markets are quiet", -0.1, 20*time.Second),
	}

	testCases := []struct {
		name         string
		symbol       string
		wantAvg      float64
		wantStrength float64
		wantCount    int
	}{
		// Keyword match is case-insensitive substring.
		{name: "matched keywords", symbol: "BTC-USD", wantAvg: 0.2, wantStrength: 0.6, wantCount: 2},
		// Nothing matches ETH keywords, so the whole window is used.
		{name: "unfiltered fallback", symbol: "ETH-USD", wantAvg: 0.3 / 3, wantStrength: 1.3 / 3, wantCount: 3},
		// No configured keywords: never the BTC subset, only the shared window.
		{name: "keyword isolation", symbol: "USDT-USD", wantAvg: 0.3 / 3, wantStrength: 1.3 / 3, wantCount: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, ok := ComputeBucket(tc.symbol, bucket0, ticks, window, testKeywords[tc.symbol])
			require.True(t, ok)
			require.NotNil(t, b.AvgSentiment)
			require.NotNil(t, b.SentimentStrength)
			assert.InDelta(t, tc.wantAvg, *b.AvgSentiment, 1e-9)
			assert.InDelta(t, tc.wantStrength, *b.SentimentStrength, 1e-9)
			assert.Equal(t, tc.wantCount, b.PostCount)
		})
	}
}

// -----------------------------------------------------------------------------

func TestAggregateMinute_Idempotent(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{
		mkTick("BTC-USD", "100", "1", 0),
		mkTick("BTC-USD", "105", "1", 10*time.Second),
		mkTick("BTC-USD", "98", "1", 20*time.Second),
		mkTick("BTC-USD", "102", "1", 30*time.Second),
	}
	agg := newTestAggregator(store)
	ctx := context.Background()

	report, err := agg.AggregateMinute(ctx, bucket0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, report.Inserted)
	first, ok := store.aggregate("BTC-USD", bucket0)
	require.True(t, ok)

	// A late tick after the first commit does not change the stored row.
	store.addTick(mkTick("BTC-USD", "120", "5", 50*time.Second))

	report, err = agg.AggregateMinute(ctx, bucket0.Add(17*time.Second))
	require.NoError(t, err)
	assert.Empty(t, report.Inserted)
	assert.Equal(t, []string{"BTC-USD"}, report.Duplicates)

	stored, _ := store.aggregate("BTC-USD", bucket0)
	assert.Equal(t, first, stored)
	assert.Equal(t, "102", stored.Close.String())
	assert.Len(t, store.aggregates, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(agg.Metrics.BucketsCommitted.WithLabelValues(metrics.OutcomeDuplicate)))
}

func TestAggregateMinute_NoTicksNoRows(t *testing.T) {
	store := newFakeStore()
	store.sentiment = []models.MSentimentObservation{mkPost("btc", 1, 0)}

	report, err := newTestAggregator(store).AggregateMinute(context.Background(), bucket0)
	require.NoError(t, err)
	assert.Empty(t, report.Inserted)
	assert.Empty(t, store.aggregates)
	assert.Empty(t, store.sentimentCalls)
}

func TestAggregateMinute_SentimentFallbackWindow(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("ETH-USD", "3000", "1", 0)}
	store.sentiment = []models.MSentimentObservation{
		mkPost("general market chatter", 0.5, -3*time.Minute),
		mkPost("too old to borrow", 1.0, -6*time.Minute),
	}

	_, err := newTestAggregator(store).AggregateMinute(context.Background(), bucket0)
	require.NoError(t, err)

	require.Len(t, store.sentimentCalls, 2)
	assert.Equal(t, [2]time.Time{bucket0, bucket0.Add(time.Minute)}, store.sentimentCalls[0])
	assert.Equal(t, [2]time.Time{bucket0.Add(-5 * time.Minute), bucket0.Add(time.Minute)}, store.sentimentCalls[1])

	b, ok := store.aggregate("ETH-USD", bucket0)
	require.True(t, ok)
	require.NotNil(t, b.AvgSentiment)
	assert.InDelta(t, 0.5, *b.AvgSentiment, 1e-9)
	assert.Equal(t, 1, b.PostCount)
}

func TestAggregateMinute_ZeroFallbackDisablesWidening(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("ETH-USD", "3000", "1", 0)}
	store.sentiment = []models.MSentimentObservation{mkPost("general market chatter", 0.5, -3*time.Minute)}

	agg := newTestAggregator(store)
	agg.FallbackWindow = 0
	_, err := agg.AggregateMinute(context.Background(), bucket0)
	require.NoError(t, err)

	assert.Len(t, store.sentimentCalls, 1)
	b, ok := store.aggregate("ETH-USD", bucket0)
	require.True(t, ok)
	assert.Nil(t, b.AvgSentiment)
	assert.Zero(t, b.PostCount)
}

func TestAggregateMinute_NoFallbackWhenWindowHasSentiment(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 0)}
	store.sentiment = []models.MSentimentObservation{mkPost("bitcoin", 0.2, 10*time.Second)}

	_, err := newTestAggregator(store).AggregateMinute(context.Background(), bucket0)
	require.NoError(t, err)
	assert.Len(t, store.sentimentCalls, 1)
}

func TestAggregateMinute_InsertFailureIsolated(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{
		mkTick("BTC-USD", "100", "1", 0),
		mkTick("ETH-USD", "3000", "1", 0),
		mkTick("USDT-USD", "1", "1", 0),
	}
	store.insertErr["ETH-USD"] = errors.New("disk I/O error")

	report, err := newTestAggregator(store).AggregateMinute(context.Background(), bucket0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD", "USDT-USD"}, report.Inserted)
	require.Contains(t, report.Failed, "ETH-USD")
	assert.EqualError(t, report.Failed["ETH-USD"], "disk I/O error")
	assert.Len(t, store.aggregates, 2)
}

func TestAggregateMinute_ReadFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 0)}
	store.sentimentErr = errors.New("database is locked")

	_, err := newTestAggregator(store).AggregateMinute(context.Background(), bucket0)
	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, 0, store.insertCalls)
}
