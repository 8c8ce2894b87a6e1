package indicators

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// Bandwidth returns the Bollinger bandwidth series (upper-lower)/middle using
// population standard deviation, at 8 decimals. Bars with a non-positive mean stay nil.
func Bandwidth(candles []domain.Candle, period int, stdDev float64) []*decimal.Decimal {
	out := make([]*decimal.Decimal, len(candles))
	if period < 2 || len(candles) < period {
		return out
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
	}
	upper, middle, lower := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	for i := period - 1; i < len(candles); i++ {
		if middle[i] <= 0 {
			continue
		}
		bw := (upper[i] - lower[i]) / middle[i]
		out[i] = domain.Ptr(decimal.NewFromFloat(bw).Round(8))
	}
	return out
}
