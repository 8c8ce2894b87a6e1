package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

// barContext is the per-evaluation view shared by filters and entry paths.
type barContext struct {
	candles  []domain.Candle
	htf      []domain.Candle
	last     domain.Candle
	prev     domain.Candle
	atr      *decimal.Decimal
	features *domain.RegimeFeatures
	gate     *domain.RegimeGate
}

// filter is a pre-entry check. A failing filter rejects the bar with its reason.
type filter struct {
	reason domain.RejectReason
	passes func(p Params, bc *barContext) bool
}

// filterChain runs in order; the first failure wins.
var filterChain = []filter{
	{domain.RejectTrendFilter, passesTrendFilter},
	{domain.RejectTrendStrengthFilter, passesTrendStrength},
	{domain.RejectVolatilityFilter, passesVolatility},
	{domain.RejectVolumeFilter, passesVolume},
	{domain.RejectVolExpansionFilter, func(p Params, bc *barContext) bool {
		return PassesVolExpansion(bc.candles, p.VolExpansion)
	}},
}

func passesTrendFilter(p Params, bc *barContext) bool {
	if !p.Features.EnableTrendFilter {
		return true
	}
	if len(bc.htf) < 200 {
		return false
	}
	return indicators.SMA(domain.Tail(bc.htf, 50)).GreaterThan(indicators.SMA(domain.Tail(bc.htf, 200)))
}

func passesTrendStrength(p Params, bc *barContext) bool {
	ts := p.TrendStrength
	if !ts.Enabled || len(bc.htf) == 0 {
		return true
	}
	var value *decimal.Decimal
	switch ts.Model {
	case TrendStrengthADX:
		value = indicators.ADX(bc.htf, ts.N)
	default:
		value = indicators.EfficiencyRatio(bc.htf, ts.N)
	}
	if value == nil {
		return true
	}
	return value.GreaterThanOrEqual(ts.Threshold)
}

func passesVolatility(p Params, bc *barContext) bool {
	vp := p.Volatility
	if len(bc.candles) < vp.ATRPeriod+1 || !bc.last.Close.IsPositive() {
		return true
	}
	atr := indicators.LastATR(bc.candles, vp.ATRPeriod)
	if atr == nil {
		return true
	}
	pct := atr.DivRound(bc.last.Close, 6)
	if vp.MinATRPercent.IsPositive() && pct.LessThan(vp.MinATRPercent) {
		return false
	}
	return !pct.GreaterThan(vp.MaxATRPercent)
}

func passesVolume(p Params, bc *barContext) bool {
	if !p.Features.EnableVolumeFilter || len(bc.candles) < p.Volume.Period+1 {
		return true
	}
	avg := indicators.AvgVolume(domain.Tail(bc.candles, p.Volume.Period))
	if !avg.IsPositive() {
		return true
	}
	return bc.last.Volume.GreaterThanOrEqual(avg.Mul(p.Volume.MinMultiplier))
}

// regimeBlocked reports whether the long regime gate rejects this bar.
func regimeBlocked(p Params, bc *barContext) bool {
	if !p.Features.EnableRegimeGate || bc.features == nil || bc.gate == nil {
		return false
	}
	bucket := domain.Bucket(*bc.features, bc.gate.Thresholds, p.Regime.WeakSlope, p.Regime.StrongSlope)
	return bc.gate.IsBlocked(bucket)
}

// passesShortGate applies the short-side trend requirement and bucket lists.
func passesShortGate(p Params, bc *barContext) bool {
	sg := p.ShortGate
	if !sg.Enabled {
		return true
	}
	if sg.RequireDowntrend {
		if len(bc.htf) < 200 {
			return false
		}
		if !indicators.SMA(domain.Tail(bc.htf, 50)).LessThan(indicators.SMA(domain.Tail(bc.htf, 200))) {
			return false
		}
	}
	th := p.Regime.Thresholds
	if !th.Configured() {
		return true
	}
	if bc.features == nil {
		return false
	}
	gate := domain.RegimeGate{
		Thresholds: th,
		Allowed:    domain.ParseBucketSet(sg.Allowed),
		Blocked:    domain.ParseBucketSet(sg.Blocked),
	}
	return !gate.IsBlocked(domain.Bucket(*bc.features, th, p.Regime.WeakSlope, p.Regime.StrongSlope))
}

// stopTooWide rejects stops farther than MaxStopATRMultiplier ATRs from entry.
func stopTooWide(entry decimal.Decimal, stop, atr *decimal.Decimal, maxMult decimal.Decimal) bool {
	if stop == nil || atr == nil || !maxMult.IsPositive() {
		return false
	}
	return entry.Sub(*stop).Abs().GreaterThan(atr.Mul(maxMult))
}

func rewardRiskTooLow(entry decimal.Decimal, stop, tp *decimal.Decimal, minRR decimal.Decimal) bool {
	if stop == nil || tp == nil {
		return false
	}
	risk := entry.Sub(*stop).Abs()
	if !risk.IsPositive() {
		return true
	}
	rr := tp.Sub(entry).Abs().DivRound(risk, 6)
	return rr.LessThan(minRR)
}
