package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAggregator records requested buckets and can fail on one of them.
type recordingAggregator struct {
	mu      sync.Mutex
	calls   []time.Time
	failAt  time.Time
	failErr error
}

func (r *recordingAggregator) AggregateMinute(_ context.Context, start time.Time) (models.MBucketReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, start)
	if r.failErr != nil && start.Equal(r.failAt) {
		return models.MBucketReport{}, r.failErr
	}
	return models.MBucketReport{BucketStart: start, Inserted: []string{"BTC-USD"}}, nil
}

func (r *recordingAggregator) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestScheduler(store *fakeStore, agg minuteAggregator, settle time.Duration, now time.Time) *AggregationScheduler {
	s := NewAggregationScheduler(store, agg, 20*time.Millisecond, 6, settle, logger.NewNopLogger(), metrics.NewMetrics())
	s.now = func() time.Time { return now }
	return s
}

// -----------------------------------------------------------------------------

func TestRunCycle_TrailingWindow(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 42*time.Second)}
	agg := &recordingAggregator{}

	report, err := newTestScheduler(store, agg, 0, bucket0.Add(50*time.Second)).RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, agg.calls, 6)
	for i, start := range agg.calls {
		assert.Equal(t, bucket0.Add(-time.Duration(i)*time.Minute), start)
	}
	assert.Equal(t, 6, report.Evaluated)
	assert.Equal(t, bucket0.Add(42*time.Second), report.LatestTick)
	inserted, _, _ := report.Totals()
	assert.Equal(t, 6, inserted)
}

func TestRunCycle_NoTicksNoWork(t *testing.T) {
	agg := &recordingAggregator{}

	report, err := newTestScheduler(newFakeStore(), agg, 0, bucket0).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agg.calls)
	assert.Equal(t, 0, report.Evaluated)
}

func TestRunCycle_SettleDelayDefersOpenBucket(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 42*time.Second)}
	agg := &recordingAggregator{}

	report, err := newTestScheduler(store, agg, 5*time.Second, bucket0.Add(50*time.Second)).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, bucket0.Add(-time.Minute), agg.calls[0])
}

func TestRunCycle_ReadFailureAbortsCycle(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 0)}
	agg := &recordingAggregator{failAt: bucket0.Add(-2 * time.Minute), failErr: errors.New("connection refused")}

	report, err := newTestScheduler(store, agg, 0, bucket0).RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	assert.Len(t, agg.calls, 3)
	assert.Equal(t, 2, report.Evaluated)

	store.latestErr = errors.New("no such table: ticks")
	_, err = newTestScheduler(store, agg, 0, bucket0).RunCycle(context.Background())
	assert.ErrorContains(t, err, "read latest tick")
}

func TestRunCycle_EndToEndIdempotent(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{
		mkTick("BTC-USD", "100", "1", -90*time.Second),
		mkTick("BTC-USD", "101", "1", 5*time.Second),
		mkTick("ETH-USD", "3000", "1", 30*time.Second),
	}
	agg := newTestAggregator(store)
	sched := newTestScheduler(store, agg, 0, bucket0.Add(40*time.Second))

	first, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	inserted, duplicates, _ := first.Totals()
	assert.Equal(t, 3, inserted)
	assert.Equal(t, 0, duplicates)

	second, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	inserted, duplicates, _ = second.Totals()
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 3, duplicates)
	assert.Len(t, store.aggregates, 3)
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	store := newFakeStore()
	store.ticks = []models.MTick{mkTick("BTC-USD", "100", "1", 0)}
	agg := &recordingAggregator{}
	sched := newTestScheduler(store, agg, 0, bucket0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	assert.Eventually(t, func() bool { return agg.callCount() >= 12 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_SurvivesFailingCycles(t *testing.T) {
	store := newFakeStore()
	store.latestErr = errors.New("database is locked")
	sched := newTestScheduler(store, &recordingAggregator{}, 0, bucket0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, sched.Run(ctx), context.DeadlineExceeded)
}
