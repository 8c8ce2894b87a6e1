package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

// ComputeFeatures derives the regime feature vector for the last bar.
// Returns nil when there are no candles or the last close is not positive.
func ComputeFeatures(candles, htf []domain.Candle, p Params) *domain.RegimeFeatures {
	if len(candles) == 0 {
		return nil
	}
	last := candles[len(candles)-1]
	if !last.Close.IsPositive() {
		return nil
	}
	return &domain.RegimeFeatures{
		TrendSlope: trendSlope(htf, p.Regime.SlopeLookbackBars),
		MASpread:   maSpread(htf, last.Close),
		ATRPercent: atrPercent(candles, p.Volatility.ATRPeriod, last.Close),
		RelVolume:  relVolume(candles, p.Volume.Period),
	}
}

func atrPercent(candles []domain.Candle, period int, last decimal.Decimal) *decimal.Decimal {
	if len(candles) < period+1 {
		return nil
	}
	atr := indicators.LastATR(candles, period)
	if atr == nil {
		return nil
	}
	return domain.Ptr(atr.DivRound(last, 6))
}

func relVolume(candles []domain.Candle, period int) *decimal.Decimal {
	if len(candles) < period+1 {
		return nil
	}
	avg := indicators.AvgVolume(domain.Tail(candles, period))
	if !avg.IsPositive() {
		return nil
	}
	return domain.Ptr(candles[len(candles)-1].Volume.DivRound(avg, 6))
}

func trendSlope(htf []domain.Candle, lookback int) *decimal.Decimal {
	if len(htf) < 50+lookback {
		return nil
	}
	current := indicators.SMA(domain.Tail(htf, 50))
	past := indicators.SMA(domain.Tail(htf[:len(htf)-lookback], 50))
	if past.IsZero() {
		return nil
	}
	return domain.Ptr(current.Sub(past).DivRound(past, 6))
}

func maSpread(htf []domain.Candle, last decimal.Decimal) *decimal.Decimal {
	if len(htf) < 200 {
		return nil
	}
	fast := indicators.SMA(domain.Tail(htf, 50))
	slow := indicators.SMA(domain.Tail(htf, 200))
	return domain.Ptr(fast.Sub(slow).DivRound(last, 6))
}
