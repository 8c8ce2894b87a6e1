package strategy_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/creasty/defaults"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bars(prices ...float64) []domain.Candle {
	out := make([]domain.Candle, len(prices))
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		out[i] = domain.Candle{
			OpenTime: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:     d, High: d, Low: d, Close: d,
			Volume: decimal.NewFromInt(100),
		}
	}
	return out
}

// relaxedParams returns defaults with every secondary filter disabled.
func relaxedParams(t *testing.T) strategy.Params {
	t.Helper()
	var p strategy.Params
	require.NoError(t, defaults.Set(&p))
	p.Features.EnableTrendFilter = false
	p.Features.EnableVolumeFilter = false
	p.FeeAware.Enabled = false
	p.TrendStrength.Enabled = false
	p.VolExpansion.Enabled = false
	p.Volatility.MaxATRPercent = domain.Dec("1.0")
	p.Exit.MaxStopATRMultiplier = domain.Zero
	return p
}

// pullbackBars rises to 120, pulls back to 112 and breaks out to 122.
func pullbackBars() []domain.Candle {
	return bars(100, 102, 104, 106, 108, 110, 112, 114, 116, 118, 120,
		118, 116, 114, 112,
		115, 118, 122)
}

func pct(s string) strategy.ZigZagParams {
	return strategy.ZigZagParams{Mode: strategy.ZigZagPercent, PercentThreshold: domain.Dec(s), ATRPeriod: 14, ATRMultiplier: domain.Dec("2")}
}

// --- ZigZag ---

func TestZigZag_PercentThreshold(t *testing.T) {
	swings := strategy.ZigZag(bars(100, 111, 115, 103, 95, 105, 120), pct("0.10"))

	require.Len(t, swings, 4)
	want := []struct {
		typ   domain.SwingType
		price string
	}{
		{domain.SwingLow, "100"},
		{domain.SwingHigh, "115"},
		{domain.SwingLow, "95"},
		{domain.SwingHigh, "120"},
	}
	for i, w := range want {
		assert.Equal(t, w.typ, swings[i].Type, "swing %d", i)
		assert.True(t, domain.Dec(w.price).Equal(swings[i].Price), "swing %d price %s", i, swings[i].Price)
	}
}

func TestZigZag_ATRModeFallsBackToPercentBeforeWarmup(t *testing.T) {
	p := pct("0.10")
	p.Mode = strategy.ZigZagATR
	candles := bars(100, 111, 115, 103, 95, 105, 120)

	assert.Equal(t, strategy.ZigZag(candles, pct("0.10")), strategy.ZigZag(candles, p))
}

func TestZigZag_TooFewCandles(t *testing.T) {
	assert.Empty(t, strategy.ZigZag(bars(100), pct("0.01")))
}

// --- Wave detector ---

func swing(typ domain.SwingType, price string, i int) domain.SwingPoint {
	return domain.SwingPoint{Time: t0.Add(time.Duration(i) * time.Hour), Price: domain.Dec(price), Type: typ}
}

func TestFindWave2Setup_LatestHigherLow(t *testing.T) {
	swings := []domain.SwingPoint{
		swing(domain.SwingLow, "100", 0),
		swing(domain.SwingHigh, "120", 1),
		swing(domain.SwingLow, "112", 2),
		swing(domain.SwingHigh, "125", 3),
	}
	setup, ok := strategy.FindWave2Setup(swings)
	require.True(t, ok)
	assert.True(t, setup.Wave1End.Price.Equal(domain.Dec("120")))
	assert.True(t, setup.Wave2End.Price.Equal(domain.Dec("112")))

	_, ok = strategy.FindWave2SetupDown(swings)
	assert.False(t, ok)
}

func TestFindWave2Setup_RejectsLowerLow(t *testing.T) {
	swings := []domain.SwingPoint{
		swing(domain.SwingLow, "100", 0),
		swing(domain.SwingHigh, "120", 1),
		swing(domain.SwingLow, "95", 2),
	}
	_, ok := strategy.FindWave2Setup(swings)
	assert.False(t, ok)
}

func impulse(w4 string, w3 string) []domain.SwingPoint {
	return []domain.SwingPoint{
		swing(domain.SwingLow, "100", 0),
		swing(domain.SwingHigh, "110", 1),
		swing(domain.SwingLow, "105", 2),
		swing(domain.SwingHigh, w3, 3),
		swing(domain.SwingLow, w4, 4),
		swing(domain.SwingHigh, "125", 5),
	}
}

func TestFindLatestImpulse_Valid(t *testing.T) {
	imp, ok := strategy.FindLatestImpulse(impulse("115", "130"), true)
	require.True(t, ok)
	assert.True(t, imp.Wave5End.Price.Equal(domain.Dec("125")))
}

func TestFindLatestImpulse_Wave4Overlap(t *testing.T) {
	_, ok := strategy.FindLatestImpulse(impulse("108", "130"), true)
	assert.False(t, ok)

	_, ok = strategy.FindLatestImpulse(impulse("108", "130"), false)
	assert.True(t, ok)
}

func TestFindLatestImpulse_Wave3Shortest(t *testing.T) {
	_, ok := strategy.FindLatestImpulse(impulse("115", "112"), false)
	assert.False(t, ok)
}

func TestFindLatestImpulse_Wave2BelowWave1Start(t *testing.T) {
	swings := impulse("115", "130")
	swings[2] = swing(domain.SwingLow, "95", 2)

	_, ok := strategy.FindLatestImpulse(swings, false)
	assert.False(t, ok)
}

func downImpulse(w2, w4 string) domain.WaveImpulse {
	return domain.WaveImpulse{
		Wave1Start: swing(domain.SwingHigh, "100", 0),
		Wave1End:   swing(domain.SwingLow, "90", 1),
		Wave2End:   swing(domain.SwingHigh, w2, 2),
		Wave3End:   swing(domain.SwingLow, "70", 3),
		Wave4End:   swing(domain.SwingHigh, w4, 4),
		Wave5End:   swing(domain.SwingLow, "75", 5),
	}
}

func TestIsValidImpulse_DownImpulseMirrorsRules(t *testing.T) {
	assert.True(t, strategy.IsValidImpulse(downImpulse("95", "85"), true))

	assert.False(t, strategy.IsValidImpulse(downImpulse("105", "85"), false), "wave 2 above wave 1 start")

	assert.False(t, strategy.IsValidImpulse(downImpulse("95", "92"), true), "wave 4 overlaps wave 1")
	assert.True(t, strategy.IsValidImpulse(downImpulse("95", "92"), false))

	short := downImpulse("95", "85")
	short.Wave3End = swing(domain.SwingLow, "88", 3)
	assert.False(t, strategy.IsValidImpulse(short, false), "wave 3 shortest")
}

// --- Exit plan ---

func TestBuildExitPlan_ATRDynamic(t *testing.T) {
	ep := strategy.ExitParams{
		ATRStopMultiplier:       domain.Dec("2"),
		ATRTakeProfitMultiplier: domain.Dec("3"),
		TrailActivationATR:      domain.Dec("1"),
		TrailDistanceATR:        domain.Dec("1"),
	}
	plan := strategy.BuildExitPlan(strategy.ExitATRDynamic, true, domain.Dec("100"), domain.Ptr(domain.Dec("90")), domain.Ptr(domain.Dec("120")), domain.Ptr(domain.Dec("2")), ep)

	assert.True(t, plan.StopPrice.Equal(domain.Dec("96")), "stop %s", plan.StopPrice)
	assert.True(t, plan.TakeProfitPrice.Equal(domain.Dec("106")), "tp %s", plan.TakeProfitPrice)
	assert.True(t, plan.TrailActivationPrice.Equal(domain.Dec("102")))
	assert.True(t, plan.TrailDistance.Equal(domain.Dec("2")))
	assert.Nil(t, plan.BreakEvenPrice)
	assert.Nil(t, plan.TimeStopBars)
}

func TestBuildExitPlan_HybridPicksTighterLevels(t *testing.T) {
	ep := strategy.ExitParams{
		ATRStopMultiplier:       domain.Dec("2"),
		ATRTakeProfitMultiplier: domain.Dec("3"),
		TimeStopBars:            24,
		BreakEvenATR:            domain.Dec("1"),
	}
	atr := domain.Ptr(domain.Dec("2"))

	long := strategy.BuildExitPlan(strategy.ExitHybrid, true, domain.Dec("100"), domain.Ptr(domain.Dec("90")), domain.Ptr(domain.Dec("120")), atr, ep)
	assert.True(t, long.StopPrice.Equal(domain.Dec("96")))
	assert.True(t, long.TakeProfitPrice.Equal(domain.Dec("120")))
	assert.True(t, long.BreakEvenPrice.Equal(domain.Dec("102")))
	require.NotNil(t, long.TimeStopBars)
	assert.Equal(t, 24, *long.TimeStopBars)

	short := strategy.BuildExitPlan(strategy.ExitHybrid, false, domain.Dec("100"), domain.Ptr(domain.Dec("110")), domain.Ptr(domain.Dec("80")), atr, ep)
	assert.True(t, short.StopPrice.Equal(domain.Dec("104")))
	assert.True(t, short.TakeProfitPrice.Equal(domain.Dec("80")))
}

func TestBuildExitPlan_ATRDynamicWithoutATRUsesCandidates(t *testing.T) {
	plan := strategy.BuildExitPlan(strategy.ExitATRDynamic, true, domain.Dec("100"), domain.Ptr(domain.Dec("90")), domain.Ptr(domain.Dec("120")), nil, strategy.ExitParams{})

	assert.True(t, plan.StopPrice.Equal(domain.Dec("90")))
	assert.True(t, plan.TakeProfitPrice.Equal(domain.Dec("120")))
	assert.Nil(t, plan.TrailDistance)
}

func TestBuildExitPlan_FixedKeepsStructuralLevels(t *testing.T) {
	ep := strategy.ExitParams{
		ATRStopMultiplier:       domain.Dec("2"),
		ATRTakeProfitMultiplier: domain.Dec("3"),
		TrailActivationATR:      domain.Dec("1"),
		TrailDistanceATR:        domain.Dec("1"),
		TimeStopBars:            24,
	}
	plan := strategy.BuildExitPlan(strategy.ExitFixed, true, domain.Dec("100"), domain.Ptr(domain.Dec("90")), domain.Ptr(domain.Dec("120")), domain.Ptr(domain.Dec("2")), ep)

	assert.True(t, plan.StopPrice.Equal(domain.Dec("90")))
	assert.True(t, plan.TakeProfitPrice.Equal(domain.Dec("120")))
	assert.True(t, plan.TrailActivationPrice.Equal(domain.Dec("102")))
	assert.Nil(t, plan.TimeStopBars)
}

func TestBuildExitPlan_TimeStop(t *testing.T) {
	ep := strategy.ExitParams{ATRStopMultiplier: domain.Dec("2"), TimeStopBars: 32}
	plan := strategy.BuildExitPlan(strategy.ExitTimeStop, false, domain.Dec("100"), domain.Ptr(domain.Dec("110")), domain.Ptr(domain.Dec("80")), domain.Ptr(domain.Dec("2")), ep)

	assert.True(t, plan.StopPrice.Equal(domain.Dec("110")))
	assert.True(t, plan.TakeProfitPrice.Equal(domain.Dec("80")))
	require.NotNil(t, plan.TimeStopBars)
	assert.Equal(t, 32, *plan.TimeStopBars)
}

// --- Fee gate ---

func TestPassesFeeGate_RejectsThinEdge(t *testing.T) {
	fa := strategy.FeeAwareParams{Enabled: true, MinEdgeMultiple: domain.Dec("2"), BufferBps: domain.Dec("1")}
	ok := strategy.PassesFeeGate(domain.Dec("100"), domain.Ptr(domain.Dec("100.1")), domain.Dec("0.001"), 2, fa)
	assert.False(t, ok)
}

func TestPassesFeeGate_AcceptsWideTarget(t *testing.T) {
	fa := strategy.FeeAwareParams{Enabled: true, MinEdgeMultiple: domain.Dec("1.5"), BufferBps: domain.Dec("1")}
	ok := strategy.PassesFeeGate(domain.Dec("100"), domain.Ptr(domain.Dec("102")), domain.Dec("0.0001"), 1, fa)
	assert.True(t, ok)
}

func TestPassesFeeGate_NoTarget(t *testing.T) {
	fa := strategy.FeeAwareParams{Enabled: true, MinEdgeMultiple: domain.Dec("2")}
	assert.True(t, strategy.PassesFeeGate(domain.Dec("100"), nil, domain.Dec("0.01"), 10, fa))
}

// --- Volatility expansion ---

func volExpansion() strategy.VolExpansionParams {
	return strategy.VolExpansionParams{
		Enabled:               true,
		Lookback:              12,
		CompressionQuantile:   domain.Dec("0.3"),
		RequireRising:         true,
		RecentCompressionBars: 6,
		Period:                5,
		StdDevMultiplier:      domain.Dec("2"),
	}
}

func TestPassesVolExpansion_InsufficientHistoryPasses(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 102, 104}
	assert.True(t, strategy.PassesVolExpansion(bars(prices...), volExpansion()))
}

func TestPassesVolExpansion_SteadyTrendFails(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = float64(100 + i)
	}
	assert.False(t, strategy.PassesVolExpansion(bars(prices...), volExpansion()))
}

// --- Engine ---

func TestEngine_TooFewCandlesHolds(t *testing.T) {
	sig := strategy.New(relaxedParams(t)).Evaluate(bars(100, 101, 102), nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectNoSetup, sig.RejectReason)
}

func TestEngine_WaveBreakoutEntersLong(t *testing.T) {
	sig := strategy.New(relaxedParams(t)).Evaluate(pullbackBars(), nil, nil)

	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntryWave2Break, sig.EntryReason)
	assert.True(t, sig.EntryPrice.Equal(domain.Dec("122")))
	assert.True(t, sig.Score.Equal(domain.Dec("0.8")), "score %s", sig.Score)
	assert.True(t, sig.Confidence.Equal(domain.Dec("0.85")), "confidence %s", sig.Confidence)
	require.NotNil(t, sig.ExitPlan)
	assert.True(t, sig.ExitPlan.StopPrice.Equal(domain.Dec("100")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.Equal(domain.Dec("152.36")))
}

func TestEngine_BeforeTriggerHoldsWithScore(t *testing.T) {
	candles := pullbackBars()[:17]
	sig := strategy.New(relaxedParams(t)).Evaluate(candles, nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectNoSetup, sig.RejectReason)
	assert.NotNil(t, sig.Score)
}

func TestEngine_HighScoreThresholdRejects(t *testing.T) {
	p := relaxedParams(t)
	p.Elliott.MinScoreToTrade = domain.Dec("0.9")
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)

	assert.Equal(t, domain.RejectLowScore, sig.RejectReason)
}

func TestEngine_StopDistanceCap(t *testing.T) {
	p := relaxedParams(t)
	p.Exit.MaxStopATRMultiplier = domain.Dec("4")
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)

	assert.Equal(t, domain.RejectStopDistance, sig.RejectReason)
}

func TestEngine_TrendFilterNeedsHTFHistory(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableTrendFilter = true
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)

	assert.Equal(t, domain.RejectTrendFilter, sig.RejectReason)
}

func TestEngine_VolatilityCeiling(t *testing.T) {
	p := relaxedParams(t)
	p.Volatility.MaxATRPercent = domain.Dec("0.001")
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)

	assert.Equal(t, domain.RejectVolatilityFilter, sig.RejectReason)
	assert.NotNil(t, sig.Features)
}

func TestEngine_RegimeGateBlocksLong(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableRegimeGate = true
	th := domain.RegimeThresholds{
		ATRLow: domain.Dec("0.01"), ATRHigh: domain.Dec("0.03"),
		VolumeLow: domain.Dec("0.8"), VolumeHigh: domain.Dec("1.2"),
	}
	gate := &domain.RegimeGate{
		Thresholds: th,
		Blocked:    domain.ParseBucketSet([]string{"FLAT|MID|LOW"}),
	}
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, gate)

	assert.Equal(t, domain.RejectRegimeGated, sig.RejectReason)
}

func TestEngine_FastBreakout(t *testing.T) {
	candles := make([]domain.Candle, 0, 26)
	for i := 0; i < 25; i++ {
		candles = append(candles, domain.Candle{
			OpenTime: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:     domain.Dec("100"), High: domain.Dec("101"), Low: domain.Dec("99"), Close: domain.Dec("100"),
			Volume: decimal.NewFromInt(100),
		})
	}
	candles = append(candles, domain.Candle{
		OpenTime: t0.Add(25 * 15 * time.Minute),
		Open:     domain.Dec("100"), High: domain.Dec("105"), Low: domain.Dec("100"), Close: domain.Dec("105"),
		Volume: decimal.NewFromInt(100),
	})
	p := relaxedParams(t)
	p.Features.EntryModel = strategy.EntryFastBreakout

	sig := strategy.New(p).Evaluate(candles, nil, nil)

	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntryFastBreakout, sig.EntryReason)
	assert.Nil(t, sig.Score)
	assert.True(t, sig.ExitPlan.StopPrice.LessThan(domain.Dec("105")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.GreaterThan(domain.Dec("105")))
}

// mirror reflects a series around 120 so rallies become declines.
func mirror(candles []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, len(candles))
	for i, c := range candles {
		p := domain.Dec("240").Sub(c.Close)
		c.Open, c.High, c.Low, c.Close = p, p, p, p
		out[i] = c
	}
	return out
}

func TestEngine_MomentumConfirmNeedsCloseBeyondPriorBar(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EntryModel = strategy.EntryMomentumConfirm

	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)
	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)

	candles := pullbackBars()
	candles[16].High = domain.Dec("125")
	sig = strategy.New(p).Evaluate(candles, nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectLowScore, sig.RejectReason)
	assert.NotNil(t, sig.Score)
}

func TestEngine_ConfidenceThresholdGatesOnConfidence(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EntryModel = strategy.EntryConfidenceThreshold

	p.Elliott.MinScoreToTrade = domain.Dec("0.8499")
	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)
	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)

	p.Elliott.MinScoreToTrade = domain.Dec("0.8501")
	sig = strategy.New(p).Evaluate(pullbackBars(), nil, nil)
	assert.Equal(t, domain.RejectLowScore, sig.RejectReason)
	assert.True(t, sig.Confidence.Equal(domain.Dec("0.85")), "confidence %s", sig.Confidence)
}

func TestEngine_ShortWaveEntersShort(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableShortWave = true

	sig := strategy.New(p).Evaluate(mirror(pullbackBars()), nil, nil)

	require.Equal(t, domain.SignalEnterShort, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntryWave2Break, sig.EntryReason)
	assert.True(t, sig.EntryPrice.Equal(domain.Dec("118")))
	assert.True(t, sig.Score.Equal(domain.Dec("0.8")), "score %s", sig.Score)
	require.NotNil(t, sig.ExitPlan)
	assert.True(t, sig.ExitPlan.StopPrice.Equal(domain.Dec("140")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.Equal(domain.Dec("87.64")), "tp %s", sig.ExitPlan.TakeProfitPrice)
}

func TestEngine_ShortWaveDisabledHolds(t *testing.T) {
	sig := strategy.New(relaxedParams(t)).Evaluate(mirror(pullbackBars()), nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectNoSetup, sig.RejectReason)
}

func TestEngine_ShortGateNeedsDowntrend(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableShortWave = true
	p.ShortGate.Enabled = true
	p.ShortGate.RequireDowntrend = true

	sig := strategy.New(p).Evaluate(mirror(pullbackBars()), nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectShortGate, sig.RejectReason)
}

func TestEngine_SwingBreakoutWithoutWaveFilter(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableWaveFilter = false

	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)

	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntrySwingBreakout, sig.EntryReason)
	assert.Nil(t, sig.Score)
	assert.True(t, sig.EntryPrice.Equal(domain.Dec("122")))
	assert.True(t, sig.ExitPlan.StopPrice.Equal(domain.Dec("112")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.Equal(domain.Dec("138.18")), "tp %s", sig.ExitPlan.TakeProfitPrice)
}

func TestEngine_SwingBreakdownWithoutWaveFilter(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableWaveFilter = false

	sig := strategy.New(p).Evaluate(mirror(pullbackBars()), nil, nil)

	require.Equal(t, domain.SignalEnterShort, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntrySwingBreakdown, sig.EntryReason)
	assert.True(t, sig.EntryPrice.Equal(domain.Dec("118")))
	assert.True(t, sig.ExitPlan.StopPrice.Equal(domain.Dec("128")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.Equal(domain.Dec("101.82")), "tp %s", sig.ExitPlan.TakeProfitPrice)
}

func TestEngine_SwingFallbackBeforeWaveTrigger(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableSwingFallback = true

	sig := strategy.New(p).Evaluate(pullbackBars()[:17], nil, nil)

	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)
	assert.Equal(t, domain.EntrySwingBreakout, sig.EntryReason)
	assert.True(t, sig.EntryPrice.Equal(domain.Dec("118")))
	assert.True(t, sig.ExitPlan.StopPrice.Equal(domain.Dec("112")))
	assert.True(t, sig.ExitPlan.TakeProfitPrice.Equal(domain.Dec("127.708")), "tp %s", sig.ExitPlan.TakeProfitPrice)
}

func TestEngine_TrendStrengthRejectsChoppyHTF(t *testing.T) {
	p := relaxedParams(t)
	p.TrendStrength.Enabled = true
	p.TrendStrength.Model = strategy.TrendStrengthER

	choppy := make([]float64, 30)
	for i := range choppy {
		choppy[i] = float64(100 + i%2)
	}
	sig := strategy.New(p).Evaluate(pullbackBars(), bars(choppy...), nil)
	assert.Equal(t, domain.RejectTrendStrengthFilter, sig.RejectReason)

	sig = strategy.New(p).Evaluate(pullbackBars(), risingHTF(30), nil)
	assert.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)
}

func TestEngine_VolumeFilterRejectsThinBar(t *testing.T) {
	p := relaxedParams(t)
	p.Features.EnableVolumeFilter = true
	p.Volume.Period = 10

	sig := strategy.New(p).Evaluate(pullbackBars(), nil, nil)
	require.Equal(t, domain.SignalEnterLong, sig.Type, "reject %s", sig.RejectReason)

	candles := pullbackBars()
	candles[len(candles)-1].Volume = decimal.NewFromInt(10)
	sig = strategy.New(p).Evaluate(candles, nil, nil)

	assert.Equal(t, domain.SignalHold, sig.Type)
	assert.Equal(t, domain.RejectVolumeFilter, sig.RejectReason)
}

// --- Configured gate ---

func TestParams_ConfiguredGate(t *testing.T) {
	p := relaxedParams(t)
	assert.Nil(t, p.ConfiguredGate())

	p.Features.EnableRegimeGate = true
	p.Regime.Thresholds = domain.RegimeThresholds{
		ATRLow: domain.Dec("0.01"), ATRHigh: domain.Dec("0.03"),
		VolumeLow: domain.Dec("0.8"), VolumeHigh: domain.Dec("1.2"),
	}
	assert.Nil(t, p.ConfiguredGate())

	p.Regime.Blocked = []string{"FLAT|LOW|LOW", "bogus"}
	gate := p.ConfiguredGate()
	require.NotNil(t, gate)
	assert.Len(t, gate.Blocked, 1)
}
