package indicators

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// EfficiencyRatio is |net close change| over the summed absolute bar-to-bar changes
// across the last period bars, at 6 decimals and clamped to [0, 1].
// Nil below period+1 bars; zero when price did not move.
func EfficiencyRatio(candles []domain.Candle, period int) *decimal.Decimal {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}
	end := len(candles) - 1
	start := end - period
	net := candles[end].Close.Sub(candles[start].Close).Abs()

	path := domain.Zero
	for i := start + 1; i <= end; i++ {
		path = path.Add(candles[i].Close.Sub(candles[i-1].Close).Abs())
	}
	if !path.IsPositive() {
		return domain.Ptr(domain.Zero)
	}
	return domain.Ptr(domain.Clamp01(net.DivRound(path, 6)))
}
