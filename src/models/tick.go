package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MTick is one raw price/volume observation for a symbol.
type MTick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
	TradeID   *int64          `json:"trade_id,omitempty"` // Feed trade id, nil when absent
}
