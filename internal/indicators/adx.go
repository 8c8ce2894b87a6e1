package indicators

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// ADX returns the latest Wilder ADX over period, rounded to 4 decimals.
// Nil below 2*period bars.
func ADX(candles []domain.Candle, period int) *decimal.Decimal {
	if period <= 0 || len(candles) < period*2 {
		return nil
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
	}
	series := talib.Adx(highs, lows, closes, period)
	if len(series) == 0 {
		return nil
	}
	return domain.Ptr(decimal.NewFromFloat(series[len(series)-1]).Round(4))
}
