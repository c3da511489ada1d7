package models

import "time"

// MSentimentObservation is a scored piece of text produced by the text ingestion side.
type MSentimentObservation struct {
	Text      string    `json:"text"`
	Sentiment float64   `json:"sentiment"`
	Timestamp time.Time `json:"timestamp"`
}
