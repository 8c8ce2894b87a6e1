package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

type ZigZagMode string

const (
	ZigZagPercent ZigZagMode = "PERCENT"
	ZigZagATR     ZigZagMode = "ATR"
)

// EntryModel selects the gate a scored setup must pass, or the fast-breakout path.
type EntryModel string

const (
	EntryBaseline            EntryModel = "BASELINE"
	EntryConfidenceThreshold EntryModel = "CONFIDENCE_THRESHOLD"
	EntryMomentumConfirm     EntryModel = "MOMENTUM_CONFIRM"
	EntryRelaxed             EntryModel = "RELAXED"
	EntryFastBreakout        EntryModel = "FAST_BREAKOUT"
)

// ExitModel selects how stop and target are derived from structure and ATR.
type ExitModel string

const (
	ExitFixed      ExitModel = "FIXED"
	ExitATRDynamic ExitModel = "ATR_DYNAMIC"
	ExitTimeStop   ExitModel = "TIME_STOP"
	ExitHybrid     ExitModel = "HYBRID"
)

type TrendStrengthModel string

const (
	TrendStrengthER  TrendStrengthModel = "ER"
	TrendStrengthADX TrendStrengthModel = "ADX"
)

// Params is the immutable strategy configuration. Built once at startup.
type Params struct {
	ZigZag        ZigZagParams        `yaml:"zigzag"`
	Elliott       ElliottParams       `yaml:"elliott"`
	Volatility    VolatilityParams    `yaml:"volatility"`
	Volume        VolumeParams        `yaml:"volume"`
	Features      FeatureFlags        `yaml:"features"`
	Exit          ExitParams          `yaml:"exit"`
	Entry         EntryParams         `yaml:"entry"`
	FeeAware      FeeAwareParams      `yaml:"fee_aware"`
	TrendStrength TrendStrengthParams `yaml:"trend_strength"`
	VolExpansion  VolExpansionParams  `yaml:"vol_expansion"`
	FastBreakout  FastBreakoutParams  `yaml:"fast_breakout"`
	Pyramiding    PyramidingParams    `yaml:"pyramiding"`
	ShortGate     ShortGateParams     `yaml:"short_gate"`
	Regime        RegimeParams        `yaml:"regime"`

	// Execution costs used by the fee-aware gate. Filled from backtest settings.
	FeeRate     decimal.Decimal `yaml:"-"`
	SlippageBps int             `yaml:"-"`
}

type ZigZagParams struct {
	Mode             ZigZagMode      `yaml:"mode" default:"PERCENT" validate:"oneof=PERCENT ATR"`
	PercentThreshold decimal.Decimal `yaml:"percent_threshold" default:"0.015" validate:"gt=0"`
	ATRPeriod        int             `yaml:"atr_period" default:"14" validate:"gt=0"`
	ATRMultiplier    decimal.Decimal `yaml:"atr_multiplier" default:"2.0" validate:"gt=0"`
}

type FibParams struct {
	Wave2PreferredMin   decimal.Decimal `yaml:"wave2_preferred_min" default:"0.5"`
	Wave2PreferredMax   decimal.Decimal `yaml:"wave2_preferred_max" default:"0.618"`
	TakeProfitExtension decimal.Decimal `yaml:"take_profit_extension" default:"1.618" validate:"gt=0"`
}

type ElliottParams struct {
	EnforceWave4NoOverlap bool            `yaml:"enforce_wave4_no_overlap" default:"true"`
	MinScoreToTrade       decimal.Decimal `yaml:"min_score_to_trade" default:"0.60"`
	SwingATRMultiplier    decimal.Decimal `yaml:"swing_atr_multiplier" default:"2.0"`
	Fib                   FibParams       `yaml:"fib"`
}

type VolatilityParams struct {
	ATRPeriod     int             `yaml:"atr_period" default:"14" validate:"gt=0"`
	MinATRPercent decimal.Decimal `yaml:"min_atr_percent" default:"0.001"`
	MaxATRPercent decimal.Decimal `yaml:"max_atr_percent" default:"0.05" validate:"gt=0"`
}

type VolumeParams struct {
	Period        int             `yaml:"period" default:"20" validate:"gt=0"`
	MinMultiplier decimal.Decimal `yaml:"min_multiplier" default:"1.0" validate:"gt=0"`
}

type FeatureFlags struct {
	EnableWaveFilter    bool       `yaml:"enable_wave_filter" default:"true"`
	EnableShortWave     bool       `yaml:"enable_short_wave"`
	EnableTrendFilter   bool       `yaml:"enable_trend_filter" default:"true"`
	EnableVolumeFilter  bool       `yaml:"enable_volume_filter" default:"true"`
	EnableRegimeGate    bool       `yaml:"enable_regime_gate"`
	EnableSwingFallback bool       `yaml:"enable_swing_fallback"`
	EntryModel          EntryModel `yaml:"entry_model" default:"BASELINE" validate:"oneof=BASELINE CONFIDENCE_THRESHOLD MOMENTUM_CONFIRM RELAXED FAST_BREAKOUT"`
	ExitModel           ExitModel  `yaml:"exit_model" default:"FIXED" validate:"oneof=FIXED ATR_DYNAMIC TIME_STOP HYBRID"`
}

type ExitParams struct {
	ATRStopMultiplier       decimal.Decimal `yaml:"atr_stop_multiplier" default:"1.5"`
	ATRTakeProfitMultiplier decimal.Decimal `yaml:"atr_take_profit_multiplier" default:"3.0"`
	TrailActivationATR      decimal.Decimal `yaml:"trail_activation_atr" default:"1.0"`
	TrailDistanceATR        decimal.Decimal `yaml:"trail_distance_atr" default:"1.0"`
	TimeStopBars            int             `yaml:"time_stop_bars" default:"32" validate:"gte=0"`
	MaxStopATRMultiplier    decimal.Decimal `yaml:"max_stop_atr_multiplier" default:"4.0"`
	BreakEvenATR            decimal.Decimal `yaml:"break_even_atr" default:"1.0"`
}

type EntryParams struct {
	MinRewardRisk decimal.Decimal `yaml:"min_reward_risk" default:"1.2"`
}

type FeeAwareParams struct {
	Enabled         bool            `yaml:"enabled" default:"true"`
	MinEdgeMultiple decimal.Decimal `yaml:"min_edge_multiple" default:"2.0"`
	BufferBps       decimal.Decimal `yaml:"buffer_bps" default:"1.0"`
}

type TrendStrengthParams struct {
	Enabled   bool               `yaml:"enabled" default:"true"`
	Model     TrendStrengthModel `yaml:"model" default:"ER" validate:"oneof=ER ADX"`
	N         int                `yaml:"n" default:"20" validate:"gt=0"`
	Threshold decimal.Decimal    `yaml:"threshold" default:"0.35"`
}

type VolExpansionParams struct {
	Enabled               bool            `yaml:"enabled" default:"true"`
	Lookback              int             `yaml:"lookback" default:"120" validate:"gt=0"`
	CompressionQuantile   decimal.Decimal `yaml:"compression_quantile" default:"0.2"`
	RequireRising         bool            `yaml:"require_rising" default:"true"`
	RecentCompressionBars int             `yaml:"recent_compression_bars" default:"40" validate:"gt=0"`
	Period                int             `yaml:"period" default:"20" validate:"gt=1"`
	StdDevMultiplier      decimal.Decimal `yaml:"std_dev_multiplier" default:"2.0"`
}

type FastBreakoutParams struct {
	LookbackBars            int             `yaml:"lookback_bars" default:"20" validate:"gt=0"`
	ATRStopMultiplier       decimal.Decimal `yaml:"atr_stop_multiplier" default:"1.5"`
	ATRTakeProfitMultiplier decimal.Decimal `yaml:"atr_take_profit_multiplier" default:"3.0"`
}

type PyramidingParams struct {
	Enabled            bool            `yaml:"enabled"`
	MaxAdds            int             `yaml:"max_adds" default:"1" validate:"gte=0"`
	AddOnRiskFraction  decimal.Decimal `yaml:"add_on_risk_fraction" default:"0.5"`
	MinBarsBetweenAdds int             `yaml:"min_bars_between_adds" default:"4" validate:"gte=0"`
	MinMoveATR         decimal.Decimal `yaml:"min_move_atr" default:"0.8"`
}

type ShortGateParams struct {
	Enabled          bool     `yaml:"enabled"`
	RequireDowntrend bool     `yaml:"require_downtrend" default:"true"`
	Allowed          []string `yaml:"allowed"`
	Blocked          []string `yaml:"blocked"`
}

type RegimeParams struct {
	SlopeLookbackBars  int                     `yaml:"slope_lookback_bars" default:"20" validate:"gt=0"`
	WeakSlope          decimal.Decimal         `yaml:"weak_slope" default:"0.002"`
	StrongSlope        decimal.Decimal         `yaml:"strong_slope" default:"0.01"`
	MinTradesPerBucket int                     `yaml:"min_trades_per_bucket" default:"12" validate:"gte=0"`
	Thresholds         domain.RegimeThresholds `yaml:"thresholds"`
	Blocked            []string                `yaml:"blocked"`
	Allowed            []string                `yaml:"allowed"`
}

// ConfiguredGate builds the regime gate from static configuration.
// Returns nil when the gate is disabled, thresholds are unset, or nothing is blocked.
func (p Params) ConfiguredGate() *domain.RegimeGate {
	if !p.Features.EnableRegimeGate || !p.Regime.Thresholds.Configured() {
		return nil
	}
	blocked := domain.ParseBucketSet(p.Regime.Blocked)
	if len(blocked) == 0 {
		return nil
	}
	return &domain.RegimeGate{
		Thresholds:         p.Regime.Thresholds,
		Blocked:            blocked,
		Allowed:            domain.ParseBucketSet(p.Regime.Allowed),
		MinTradesPerBucket: p.Regime.MinTradesPerBucket,
	}
}
