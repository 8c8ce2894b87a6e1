package strategy

import (
	"sort"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

// PassesVolExpansion requires a recent Bollinger squeeze followed, optionally,
// by a widening band. Short histories pass.
func PassesVolExpansion(candles []domain.Candle, vp VolExpansionParams) bool {
	if !vp.Enabled || len(candles) < vp.Period+2 {
		return true
	}
	sd, _ := vp.StdDevMultiplier.Float64()
	series := indicators.Bandwidth(candles, vp.Period, sd)

	defined := make([]decimal.Decimal, 0, len(series))
	for _, bw := range series {
		if bw != nil {
			defined = append(defined, *bw)
		}
	}
	if len(defined) < vp.Lookback {
		return true
	}
	window := defined[len(defined)-vp.Lookback:]

	sorted := make([]decimal.Decimal, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	q, _ := domain.Clamp01(vp.CompressionQuantile).Float64()
	threshold := sorted[int(q*float64(len(sorted)-1))]

	recent := window
	if vp.RecentCompressionBars < len(window) {
		recent = window[len(window)-vp.RecentCompressionBars:]
	}
	compressed := false
	for _, bw := range recent {
		if bw.LessThan(threshold) {
			compressed = true
			break
		}
	}
	if !compressed {
		return false
	}
	if vp.RequireRising && len(window) >= 2 {
		return window[len(window)-1].GreaterThan(window[len(window)-2])
	}
	return true
}
