// Package indicators computes technical indicators over candle sequences.
// Series results are index-aligned with the input and nil until warm.
package indicators

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// ATR returns the simple moving average of true range over period bars, at 8 decimals.
// The first bar's true range is its high-low range.
func ATR(candles []domain.Candle, period int) []*decimal.Decimal {
	if len(candles) == 0 || period <= 0 {
		return nil
	}
	out := make([]*decimal.Decimal, len(candles))
	if len(candles) < period {
		return out
	}

	tr := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		rng := c.High.Sub(c.Low).Abs()
		if i == 0 {
			tr[i] = rng
			continue
		}
		prev := candles[i-1].Close
		tr[i] = decimal.Max(rng, c.High.Sub(prev).Abs(), c.Low.Sub(prev).Abs())
	}

	n := decimal.NewFromInt(int64(period))
	sum := decimal.Sum(domain.Zero, tr[:period]...)
	out[period-1] = domain.Ptr(sum.DivRound(n, 8))
	for i := period; i < len(tr); i++ {
		sum = sum.Sub(tr[i-period]).Add(tr[i])
		out[i] = domain.Ptr(sum.DivRound(n, 8))
	}
	return out
}

// LastDefined returns the last non-nil value of a series.
func LastDefined(series []*decimal.Decimal) *decimal.Decimal {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != nil {
			return series[i]
		}
	}
	return nil
}

// LastATR is LastDefined(ATR(candles, period)).
func LastATR(candles []domain.Candle, period int) *decimal.Decimal {
	return LastDefined(ATR(candles, period))
}

// SMA is the mean close of candles at 8 decimals.
func SMA(candles []domain.Candle) decimal.Decimal {
	return domain.Mean(domain.Closes(candles), 8)
}

// AvgVolume is the mean volume of candles at 6 decimals.
func AvgVolume(candles []domain.Candle) decimal.Decimal {
	vols := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}
	return domain.Mean(vols, 6)
}
