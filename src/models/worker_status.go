package models

import "time"

// MWorkerStatus is the supervisor's view of one symbol's connection worker.
type MWorkerStatus struct {
	Symbol      string    `json:"symbol"`
	Running     bool      `json:"running"`
	Connected   bool      `json:"connected"`
	Restarts    int       `json:"restarts"`
	LastError   string    `json:"last_error,omitempty"`
	LastChanged time.Time `json:"last_changed"`
}
