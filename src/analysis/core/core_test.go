package core

import (
	"testing"
	"time"

	"sentiment-observer/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticksAt(prices ...string) []models.MTick {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.MTick, len(prices))
	for i, p := range prices {
		out[i] = models.MTick{
			Symbol:    "BTC-USD",
			Price:     decimal.RequireFromString(p),
			Volume:    decimal.NewFromInt(int64(i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestComputeOHLCV(t *testing.T) {
	ohlcv, ok := ComputeOHLCV(ticksAt("100", "105", "98", "102"))
	require.True(t, ok)
	assert.Equal(t, "100", ohlcv.Open.String())
	assert.Equal(t, "105", ohlcv.High.String())
	assert.Equal(t, "98", ohlcv.Low.String())
	assert.Equal(t, "102", ohlcv.Close.String())
	assert.Equal(t, "6", ohlcv.Volume.String())

	_, ok = ComputeOHLCV(nil)
	assert.False(t, ok)
}

func TestCalculateChangePercent(t *testing.T) {
	testCases := []struct {
		name  string
		open  string
		close string
		want  float64
	}{
		{name: "gain", open: "100", close: "102", want: 2},
		{name: "loss", open: "200", close: "150", want: -25},
		{name: "flat", open: "3.3", close: "3.3", want: 0},
		{name: "zero open", open: "0", close: "5", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateChangePercent(decimal.RequireFromString(tc.close), decimal.RequireFromString(tc.open))
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestSummarizeSentiment(t *testing.T) {
	s, ok := SummarizeSentiment([]float64{0.5, -0.5, 1})
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, s.Avg, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.Strength, 1e-9)
	assert.Equal(t, 3, s.Count)

	_, ok = SummarizeSentiment(nil)
	assert.False(t, ok)
}
