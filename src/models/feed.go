package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Upstream feed wire messages (Coinbase Exchange websocket)
// -----------------------------------------------------------------------------

type MFeedChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

type MSubscribeMessage struct {
	Type     string         `json:"type"`
	Channels []MFeedChannel `json:"channels"`
}

// MFeedEvent holds the fields consumed from inbound events. Price and size
// accept quoted or bare numbers; an absent or null value leaves Valid false.
type MFeedEvent struct {
	Type      string              `json:"type"`
	ProductID string              `json:"product_id"`
	Price     decimal.NullDecimal `json:"price"`
	LastSize  decimal.NullDecimal `json:"last_size"`
	Time      string              `json:"time"`
	TradeID   json.RawMessage     `json:"trade_id"` // Number or string; decoded leniently
	Message   string              `json:"message"`  // Set on "error" events
	Reason    string              `json:"reason"`
}
