package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentiment-observer/src/helpers"
	"sentiment-observer/src/models"
)

type bucketKey struct {
	symbol string
	start  int64
}

// fakeStore is an in-memory IAggregationStore with injectable failures.
type fakeStore struct {
	mu         sync.Mutex
	ticks      []models.MTick
	sentiment  []models.MSentimentObservation
	aggregates map[bucketKey]models.MAggregateBucket

	ticksErr     error
	sentimentErr error
	latestErr    error
	insertErr    map[string]error // by symbol

	sentimentCalls [][2]time.Time
	insertCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{aggregates: make(map[bucketKey]models.MAggregateBucket), insertErr: make(map[string]error)}
}

func (f *fakeStore) TicksInRange(_ context.Context, symbol string, start, end time.Time) ([]models.MTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticksErr != nil {
		return nil, f.ticksErr
	}
	var out []models.MTick
	for _, t := range f.ticks {
		if (symbol == "" || t.Symbol == symbol) && !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeStore) LatestTickTimestamp(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return time.Time{}, false, f.latestErr
	}
	var latest time.Time
	for _, t := range f.ticks {
		if t.Timestamp.After(latest) {
			latest = t.Timestamp
		}
	}
	return latest, len(f.ticks) > 0, nil
}

func (f *fakeStore) SentimentInRange(_ context.Context, start, end time.Time) ([]models.MSentimentObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentimentCalls = append(f.sentimentCalls, [2]time.Time{start, end})
	if f.sentimentErr != nil {
		return nil, f.sentimentErr
	}
	var out []models.MSentimentObservation
	for _, o := range f.sentiment {
		if !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAggregate(_ context.Context, b models.MAggregateBucket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if err := f.insertErr[b.Symbol]; err != nil {
		return err
	}
	key := bucketKey{b.Symbol, b.BucketStart.UnixNano()}
	if _, exists := f.aggregates[key]; exists {
		return helpers.ErrDuplicate
	}
	f.aggregates[key] = b
	return nil
}

func (f *fakeStore) aggregate(symbol string, start time.Time) (models.MAggregateBucket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.aggregates[bucketKey{symbol, start.UnixNano()}]
	return b, ok
}

func (f *fakeStore) addTick(t models.MTick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, t)
}
