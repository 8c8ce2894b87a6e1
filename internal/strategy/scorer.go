package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

// WaveScore holds the component scores for a wave-2 setup.
type WaveScore struct {
	Fib        decimal.Decimal
	Trend      decimal.Decimal
	Volume     decimal.Decimal
	Swing      decimal.Decimal
	Score      decimal.Decimal
	Confidence decimal.Decimal
}

var (
	three = decimal.NewFromInt(3)
	four  = decimal.NewFromInt(4)
)

// ScoreSetup grades a wave-2 setup. Score averages fib, trend and volume;
// confidence also folds in the swing-size component.
func ScoreSetup(setup domain.Wave2Setup, long bool, candles, htf []domain.Candle, atr *decimal.Decimal, p Params) WaveScore {
	s := WaveScore{
		Fib:    fibScore(setup, long, p.Elliott.Fib),
		Trend:  trendScore(htf, long),
		Volume: volumeScore(setup, candles, p.Volume),
		Swing:  swingScore(setup, atr, p.Elliott.SwingATRMultiplier),
	}
	base := s.Fib.Add(s.Trend).Add(s.Volume)
	s.Score = base.DivRound(three, 4)
	s.Confidence = base.Add(s.Swing).DivRound(four, 4)
	return s
}

func fibScore(setup domain.Wave2Setup, long bool, fib FibParams) decimal.Decimal {
	size := setup.Wave1Size()
	if size.IsZero() {
		return domain.Zero
	}
	move := setup.Wave2End.Price.Sub(setup.Wave1End.Price)
	if long {
		move = setup.Wave1End.Price.Sub(setup.Wave2End.Price)
	}
	retrace := move.DivRound(size, 4)

	diff := domain.Zero
	switch {
	case retrace.LessThan(fib.Wave2PreferredMin):
		diff = fib.Wave2PreferredMin.Sub(retrace)
	case retrace.GreaterThan(fib.Wave2PreferredMax):
		diff = retrace.Sub(fib.Wave2PreferredMax)
	}
	return domain.Clamp01(domain.One.Sub(diff))
}

func trendScore(htf []domain.Candle, long bool) decimal.Decimal {
	if len(htf) < 200 {
		return domain.Half
	}
	fast := indicators.SMA(domain.Tail(htf, 50))
	slow := indicators.SMA(domain.Tail(htf, 200))
	if long && fast.GreaterThan(slow) || !long && fast.LessThan(slow) {
		return domain.One
	}
	return domain.Zero
}

func volumeScore(setup domain.Wave2Setup, candles []domain.Candle, vp VolumeParams) decimal.Decimal {
	if len(candles) == 0 {
		return domain.Half
	}
	var wave1 []domain.Candle
	for _, c := range candles {
		if !c.OpenTime.Before(setup.Wave1Start.Time) && !c.OpenTime.After(setup.Wave1End.Time) {
			wave1 = append(wave1, c)
		}
	}
	if len(wave1) == 0 {
		return domain.Half
	}
	baseline := indicators.AvgVolume(domain.Tail(candles, vp.Period))
	if !baseline.IsPositive() {
		return domain.Half
	}
	ratio := indicators.AvgVolume(wave1).DivRound(baseline, 6)
	return domain.Clamp01(domain.Div(ratio, vp.MinMultiplier, 6))
}

func swingScore(setup domain.Wave2Setup, atr *decimal.Decimal, mult decimal.Decimal) decimal.Decimal {
	if atr == nil || atr.IsZero() {
		return domain.Half
	}
	baseline := atr.Mul(mult)
	if baseline.IsZero() {
		return domain.Half
	}
	return domain.Clamp01(domain.Div(setup.Wave1Size(), baseline, 6))
}
