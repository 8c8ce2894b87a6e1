package domain

type EntryReason string

const (
	EntryWave2Break     EntryReason = "W2_COMPLETE_BREAK_W1_END"
	EntrySwingBreakout  EntryReason = "SWING_BREAKOUT"
	EntrySwingBreakdown EntryReason = "SWING_BREAKDOWN"
	EntryFastBreakout   EntryReason = "FAST_BREAKOUT"
)

type ExitReason string

const (
	ExitStopInvalidation ExitReason = "STOP_INVALIDATION"
	ExitTakeProfit       ExitReason = "TAKE_PROFIT"
	ExitTimeStop         ExitReason = "TIME_STOP"
	ExitTrailStop        ExitReason = "TRAIL_STOP"
	ExitManual           ExitReason = "MANUAL_EXIT"
)

// RejectReason explains why a bar produced HOLD instead of an entry.
type RejectReason string

const (
	RejectTrendFilter         RejectReason = "TREND_FILTER"
	RejectTrendStrengthFilter RejectReason = "TREND_STRENGTH_FILTER"
	RejectVolatilityFilter    RejectReason = "VOLATILITY_FILTER"
	RejectVolumeFilter        RejectReason = "VOLUME_FILTER"
	RejectVolExpansionFilter  RejectReason = "VOL_EXPANSION_FILTER"
	RejectFeeEdgeFilter       RejectReason = "FEE_EDGE_FILTER"
	RejectStopDistance        RejectReason = "STOP_DISTANCE"
	RejectLowRewardRisk       RejectReason = "LOW_REWARD_RISK"
	RejectLowScore            RejectReason = "LOW_SCORE"
	RejectNoSetup             RejectReason = "NO_SETUP"
	RejectRegimeGated         RejectReason = "REGIME_GATED"
	RejectShortGate           RejectReason = "SHORT_GATE"
	RejectRiskKillSwitch      RejectReason = "RISK_KILLSWITCH"
	RejectCooldown            RejectReason = "COOLDOWN"
)
