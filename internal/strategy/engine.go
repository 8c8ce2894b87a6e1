package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

const minCandles = 10

// Engine evaluates the latest bar of a candle window and returns a trade signal.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	params Params
	gate   entryGate
}

// New creates an Engine for the given parameters.
func New(params Params) *Engine {
	return &Engine{params: params, gate: entryGateFor(params.Features.EntryModel)}
}

// Params returns the engine's configuration.
func (e *Engine) Params() Params {
	return e.params
}

// Evaluate runs the filter chain and the configured entry path over candles.
// htf is the higher-timeframe series; gate may be nil.
func (e *Engine) Evaluate(candles, htf []domain.Candle, gate *domain.RegimeGate) domain.TradeSignal {
	if len(candles) < minCandles {
		return domain.Hold(domain.RejectNoSetup, nil, nil, nil)
	}
	p := e.params
	bc := &barContext{
		candles:  candles,
		htf:      htf,
		last:     candles[len(candles)-1],
		prev:     candles[len(candles)-2],
		atr:      indicators.LastATR(candles, p.Volatility.ATRPeriod),
		features: ComputeFeatures(candles, htf, p),
		gate:     gate,
	}

	for _, f := range filterChain {
		if !f.passes(p, bc) {
			return domain.Hold(f.reason, bc.features, nil, nil)
		}
	}

	if p.Features.EntryModel == EntryFastBreakout {
		return e.evaluateFastBreakout(bc)
	}
	if !p.Features.EnableWaveFilter {
		return e.evaluateSwingBreak(bc)
	}
	sig := e.evaluateWave(bc)
	if p.Features.EnableSwingFallback && sig.Type == domain.SignalHold && sig.RejectReason == domain.RejectNoSetup {
		return e.evaluateSwingBreak(bc)
	}
	return sig
}

func (e *Engine) evaluateWave(bc *barContext) domain.TradeSignal {
	p := e.params
	swings := ZigZag(bc.candles, p.ZigZag)

	var signals []domain.TradeSignal
	if setup, ok := FindWave2Setup(swings); ok {
		signals = append(signals, e.waveSignal(bc, setup, true))
	}
	if p.Features.EnableShortWave {
		if setup, ok := FindWave2SetupDown(swings); ok {
			signals = append(signals, e.waveSignal(bc, setup, false))
		}
	}
	if len(signals) == 0 {
		return domain.Hold(domain.RejectNoSetup, bc.features, nil, nil)
	}

	var best *domain.TradeSignal
	for i := range signals {
		s := &signals[i]
		if !s.IsEntry() {
			continue
		}
		if best == nil || rank(s).GreaterThan(rank(best)) {
			best = s
		}
	}
	if best == nil {
		fb := signals[0]
		return domain.Hold(fb.RejectReason, bc.features, fb.Score, fb.Confidence)
	}
	return *best
}

func rank(s *domain.TradeSignal) decimal.Decimal {
	switch {
	case s.Confidence != nil:
		return *s.Confidence
	case s.Score != nil:
		return *s.Score
	}
	return domain.Zero
}

func (e *Engine) waveSignal(bc *barContext, setup domain.Wave2Setup, long bool) domain.TradeSignal {
	p := e.params
	if long && regimeBlocked(p, bc) {
		return domain.Hold(domain.RejectRegimeGated, bc.features, nil, nil)
	}
	if !long && !passesShortGate(p, bc) {
		return domain.Hold(domain.RejectShortGate, bc.features, nil, nil)
	}

	ws := ScoreSetup(setup, long, bc.candles, bc.htf, bc.atr, p)
	score, confidence := domain.Ptr(ws.Score), domain.Ptr(ws.Confidence)
	if !e.gate(ws, long, p.Elliott.MinScoreToTrade, bc) {
		return domain.Hold(domain.RejectLowScore, bc.features, score, confidence)
	}

	px := bc.last.Close
	w1End := setup.Wave1End.Price
	if long && !px.GreaterThan(w1End) || !long && !px.LessThan(w1End) {
		return domain.Hold(domain.RejectNoSetup, bc.features, score, confidence)
	}

	ext := setup.Wave1Size().Mul(p.Elliott.Fib.TakeProfitExtension)
	tp := w1End.Add(ext)
	if !long {
		tp = w1End.Sub(ext)
	}
	plan := BuildExitPlan(p.Features.ExitModel, long, px, domain.Ptr(setup.Wave1Start.Price), &tp, bc.atr, p.Exit)
	if reason, rejected := e.checkPlan(px, plan, bc.atr); rejected {
		return domain.Hold(reason, bc.features, score, confidence)
	}
	return e.entry(long, px, plan, domain.EntryWave2Break, score, confidence, bc.features)
}

// entryGate reports whether a scored setup may be traded under the configured entry model.
type entryGate func(ws WaveScore, long bool, th decimal.Decimal, bc *barContext) bool

func entryGateFor(model EntryModel) entryGate {
	switch model {
	case EntryConfidenceThreshold:
		return func(ws WaveScore, _ bool, th decimal.Decimal, _ *barContext) bool {
			return ws.Confidence.GreaterThanOrEqual(th)
		}
	case EntryMomentumConfirm:
		return func(ws WaveScore, long bool, th decimal.Decimal, bc *barContext) bool {
			return ws.Score.GreaterThanOrEqual(th) && momentum(long, bc)
		}
	case EntryRelaxed, EntryFastBreakout:
		return func(WaveScore, bool, decimal.Decimal, *barContext) bool { return true }
	default:
		return func(ws WaveScore, _ bool, th decimal.Decimal, _ *barContext) bool {
			return ws.Score.GreaterThanOrEqual(th)
		}
	}
}

// momentum requires the close to clear the previous bar's range in the trade direction.
func momentum(long bool, bc *barContext) bool {
	if long {
		return bc.last.Close.GreaterThan(bc.prev.High)
	}
	return bc.last.Close.LessThan(bc.prev.Low)
}

// evaluateSwingBreak measures the current close against the swing structure
// formed before it, so the current bar never becomes its own reference pivot.
func (e *Engine) evaluateSwingBreak(bc *barContext) domain.TradeSignal {
	p := e.params
	swings := ZigZag(bc.candles[:len(bc.candles)-1], p.ZigZag)
	lastHigh, okHigh := lastSwing(swings, domain.SwingHigh)
	lastLow, okLow := lastSwing(swings, domain.SwingLow)
	if !okHigh || !okLow {
		return domain.Hold(domain.RejectNoSetup, bc.features, nil, nil)
	}

	px := bc.last.Close
	momentumOnly := p.Features.EntryModel == EntryMomentumConfirm
	ext := p.Elliott.Fib.TakeProfitExtension

	switch {
	case px.GreaterThan(lastHigh.Price):
		if regimeBlocked(p, bc) {
			return domain.Hold(domain.RejectRegimeGated, bc.features, nil, nil)
		}
		if momentumOnly && !momentum(true, bc) {
			return domain.Hold(domain.RejectLowScore, bc.features, nil, nil)
		}
		stop := lastLow.Price
		tp := px.Add(px.Sub(stop).Mul(ext))
		return e.breakoutSignal(bc, true, &stop, &tp, domain.EntrySwingBreakout)

	case px.LessThan(lastLow.Price):
		if !passesShortGate(p, bc) {
			return domain.Hold(domain.RejectShortGate, bc.features, nil, nil)
		}
		if momentumOnly && !momentum(false, bc) {
			return domain.Hold(domain.RejectLowScore, bc.features, nil, nil)
		}
		stop := lastHigh.Price
		tp := px.Sub(stop.Sub(px).Mul(ext))
		return e.breakoutSignal(bc, false, &stop, &tp, domain.EntrySwingBreakdown)
	}
	return domain.Hold(domain.RejectNoSetup, bc.features, nil, nil)
}

func lastSwing(swings []domain.SwingPoint, t domain.SwingType) (domain.SwingPoint, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Type == t {
			return swings[i], true
		}
	}
	return domain.SwingPoint{}, false
}

func (e *Engine) evaluateFastBreakout(bc *barContext) domain.TradeSignal {
	fb := e.params.FastBreakout
	n := len(bc.candles)
	if n <= fb.LookbackBars || bc.atr == nil {
		return domain.Hold(domain.RejectNoSetup, bc.features, nil, nil)
	}
	window := bc.candles[n-fb.LookbackBars-1 : n-1]
	maxHigh, minLow := window[0].High, window[0].Low
	for _, c := range window[1:] {
		maxHigh = decimal.Max(maxHigh, c.High)
		minLow = decimal.Min(minLow, c.Low)
	}

	px := bc.last.Close
	stopDist := bc.atr.Mul(fb.ATRStopMultiplier)
	tpDist := bc.atr.Mul(fb.ATRTakeProfitMultiplier)

	switch {
	case px.GreaterThan(maxHigh):
		if regimeBlocked(e.params, bc) {
			return domain.Hold(domain.RejectRegimeGated, bc.features, nil, nil)
		}
		stop, tp := px.Sub(stopDist), px.Add(tpDist)
		return e.breakoutSignal(bc, true, &stop, &tp, domain.EntryFastBreakout)

	case px.LessThan(minLow):
		if !passesShortGate(e.params, bc) {
			return domain.Hold(domain.RejectShortGate, bc.features, nil, nil)
		}
		stop, tp := px.Add(stopDist), px.Sub(tpDist)
		return e.breakoutSignal(bc, false, &stop, &tp, domain.EntryFastBreakout)
	}
	return domain.Hold(domain.RejectNoSetup, bc.features, nil, nil)
}

// breakoutSignal builds the exit plan for an unscored breakout and applies the plan checks.
func (e *Engine) breakoutSignal(bc *barContext, long bool, stop, tp *decimal.Decimal, reason domain.EntryReason) domain.TradeSignal {
	px := bc.last.Close
	plan := BuildExitPlan(e.params.Features.ExitModel, long, px, stop, tp, bc.atr, e.params.Exit)
	if rejectReason, rejected := e.checkPlan(px, plan, bc.atr); rejected {
		return domain.Hold(rejectReason, bc.features, nil, nil)
	}
	return e.entry(long, px, plan, reason, nil, nil, bc.features)
}

// checkPlan runs the fee, stop-distance and reward-to-risk checks in that order.
func (e *Engine) checkPlan(entry decimal.Decimal, plan *domain.ExitPlan, atr *decimal.Decimal) (domain.RejectReason, bool) {
	p := e.params
	if !PassesFeeGate(entry, plan.TakeProfitPrice, p.FeeRate, p.SlippageBps, p.FeeAware) {
		return domain.RejectFeeEdgeFilter, true
	}
	if stopTooWide(entry, plan.StopPrice, atr, p.Exit.MaxStopATRMultiplier) {
		return domain.RejectStopDistance, true
	}
	if rewardRiskTooLow(entry, plan.StopPrice, plan.TakeProfitPrice, p.Entry.MinRewardRisk) {
		return domain.RejectLowRewardRisk, true
	}
	return "", false
}

func (e *Engine) entry(long bool, price decimal.Decimal, plan *domain.ExitPlan, reason domain.EntryReason, score, confidence *decimal.Decimal, features *domain.RegimeFeatures) domain.TradeSignal {
	t := domain.SignalEnterLong
	if !long {
		t = domain.SignalEnterShort
	}
	return domain.TradeSignal{
		Type:        t,
		EntryPrice:  domain.Ptr(price),
		ExitPlan:    plan,
		Score:       score,
		Confidence:  confidence,
		EntryReason: reason,
		Features:    features,
	}
}
