package core

import (
	"math"

	"github.com/montanaflynn/stats"
)

// SentimentSummary holds the per-bucket sentiment statistics.
type SentimentSummary struct {
	Avg      float64 // signed mean
	Strength float64 // mean of absolute values
	Count    int
}

// -----------------------------------------------------------------------------

// SummarizeSentiment computes mean and mean-absolute of scores. ok is false when
// scores is empty.
func SummarizeSentiment(scores []float64) (SentimentSummary, bool) {
	if len(scores) == 0 {
		return SentimentSummary{}, false
	}

	abs := make(stats.Float64Data, len(scores))
	for i, s := range scores {
		abs[i] = math.Abs(s)
	}

	avg, err := stats.Mean(stats.Float64Data(scores))
	if err != nil {
		return SentimentSummary{}, false
	}
	strength, err := stats.Mean(abs)
	if err != nil {
		return SentimentSummary{}, false
	}

	return SentimentSummary{Avg: avg, Strength: strength, Count: len(scores)}, true
}
