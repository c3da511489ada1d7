package core

import (
	"sentiment-observer/src/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OHLCV is the price/volume summary of an ordered run of ticks.
type OHLCV struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// -----------------------------------------------------------------------------

// ComputeOHLCV summarises ticks that are already ordered by timestamp.
// ok is false for an empty slice.
func ComputeOHLCV(ticks []models.MTick) (OHLCV, bool) {
	if len(ticks) == 0 {
		return OHLCV{}, false
	}

	out := OHLCV{
		Open:   ticks[0].Price,
		High:   ticks[0].Price,
		Low:    ticks[0].Price,
		Close:  ticks[len(ticks)-1].Price,
		Volume: decimal.Zero,
	}

	for _, t := range ticks {
		if t.Price.GreaterThan(out.High) {
			out.High = t.Price
		}
		if t.Price.LessThan(out.Low) {
			out.Low = t.Price
		}
		// Zero value Decimal is 0, so a missing volume adds nothing.
		out.Volume = out.Volume.Add(t.Volume)
	}

	return out, true
}

// -----------------------------------------------------------------------------

// CalculateChangePercent returns (close-open)/open*100, or 0 when open is 0.
func CalculateChangePercent(closePrice, open decimal.Decimal) float64 {
	if open.IsZero() {
		return 0.0
	}
	pct, _ := closePrice.Sub(open).Div(open).Mul(hundred).Float64()
	return pct
}
