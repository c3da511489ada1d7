package analysis

import (
	"strings"

	"sentiment-observer/src/models"
)

// -----------------------------------------------------------------------------

// FilterByKeywords keeps observations whose text contains any keyword,
// case-insensitively. No keywords means no matches.
func FilterByKeywords(obs []models.MSentimentObservation, keywords []string) []models.MSentimentObservation {
	needles := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			needles = append(needles, kw)
		}
	}
	if len(needles) == 0 || len(obs) == 0 {
		return nil
	}

	var matched []models.MSentimentObservation
	for _, o := range obs {
		text := strings.ToLower(o.Text)
		for _, kw := range needles {
			if strings.Contains(text, kw) {
				matched = append(matched, o)
				break
			}
		}
	}
	return matched
}

// -----------------------------------------------------------------------------

// SelectSentimentScores picks the keyword-matched scores for a symbol, falling back
// to the whole window when nothing matched. nil when the window is empty.
func SelectSentimentScores(window []models.MSentimentObservation, keywords []string) []float64 {
	chosen := FilterByKeywords(window, keywords)
	if len(chosen) == 0 {
		chosen = window
	}
	if len(chosen) == 0 {
		return nil
	}

	scores := make([]float64, len(chosen))
	for i, o := range chosen {
		scores[i] = o.Sentiment
	}
	return scores
}
