package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// BuildExitPlan resolves stop, target and trailing levels for an entry.
// stopCandidate and tpCandidate are the structural levels; atr may be nil.
func BuildExitPlan(model ExitModel, long bool, entry decimal.Decimal, stopCandidate, tpCandidate, atr *decimal.Decimal, ep ExitParams) *domain.ExitPlan {
	sign := decimal.NewFromInt(1)
	if !long {
		sign = sign.Neg()
	}
	atrLevel := func(mult decimal.Decimal, dir decimal.Decimal) *decimal.Decimal {
		if atr == nil {
			return nil
		}
		return domain.Ptr(entry.Add(atr.Mul(mult).Mul(dir)))
	}

	plan := &domain.ExitPlan{}
	plan.StopPrice, plan.TakeProfitPrice = exitResolver(model)(long, stopCandidate, tpCandidate,
		atrLevel(ep.ATRStopMultiplier, sign.Neg()), atrLevel(ep.ATRTakeProfitMultiplier, sign))

	if atr != nil {
		plan.TrailActivationPrice = atrLevel(ep.TrailActivationATR, sign)
		plan.TrailDistance = domain.Ptr(atr.Mul(ep.TrailDistanceATR))
		if ep.BreakEvenATR.IsPositive() {
			plan.BreakEvenPrice = atrLevel(ep.BreakEvenATR, sign)
		}
	}
	if model == ExitTimeStop || model == ExitHybrid {
		bars := ep.TimeStopBars
		plan.TimeStopBars = &bars
	}
	return plan
}

// levelResolver picks stop and target from the structural candidates and the ATR-derived levels.
type levelResolver func(long bool, stopCandidate, tpCandidate, atrStop, atrTP *decimal.Decimal) (stop, tp *decimal.Decimal)

func exitResolver(model ExitModel) levelResolver {
	switch model {
	case ExitATRDynamic:
		return func(_ bool, stopCandidate, tpCandidate, atrStop, atrTP *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
			return orFallback(atrStop, stopCandidate), orFallback(atrTP, tpCandidate)
		}
	case ExitHybrid:
		return func(long bool, stopCandidate, tpCandidate, atrStop, atrTP *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
			return pickForSide(long, stopCandidate, atrStop), pickForSide(long, tpCandidate, atrTP)
		}
	default:
		return func(_ bool, stopCandidate, tpCandidate, _, _ *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
			return stopCandidate, tpCandidate
		}
	}
}

func orFallback(v, fallback *decimal.Decimal) *decimal.Decimal {
	if v != nil {
		return v
	}
	return fallback
}

// pickForSide picks the higher level for longs and the lower for shorts, ignoring nils.
func pickForSide(long bool, a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if long == a.GreaterThan(*b) {
		return a
	}
	return b
}
