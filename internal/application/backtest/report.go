package backtest

import (
	"sort"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

const maxLosingPatterns = 10

// LosingPattern aggregates PnL by entry and exit reason.
type LosingPattern struct {
	Pattern string          `json:"pattern"`
	Trades  int             `json:"trades"`
	PnL     decimal.Decimal `json:"pnl"`
}

// RejectCount is how many bars were held for one reason.
type RejectCount struct {
	Reason domain.RejectReason `json:"reason"`
	Count  int                 `json:"count"`
}

// Report is the extended analysis of a run.
type Report struct {
	RunID          string              `json:"runId"`
	Result         Result              `json:"result"`
	Net            TradeMetrics        `json:"net"`
	Gross          TradeMetrics        `json:"gross"`
	Distribution   DistributionMetrics `json:"distribution"`
	Holding        HoldingMetrics      `json:"holding"`
	Fees           FeeMetrics          `json:"fees"`
	Rejects        []RejectCount       `json:"rejects"`
	LosingPatterns []LosingPattern     `json:"losingPatterns"`
	Regimes        RegimeAnalysis      `json:"regimes"`
	SuggestedGate  []string            `json:"suggestedGate"`
}

// ReportParams carries the regime settings the report needs.
type ReportParams struct {
	WeakSlope          decimal.Decimal
	StrongSlope        decimal.Decimal
	MinTradesPerBucket int
}

// BuildReport computes every report section for run.
func BuildReport(run *Run, p ReportParams) Report {
	regimes := AnalyzeRegimes(run.Trades, p.WeakSlope, p.StrongSlope)
	var suggested []string
	if gate := SuggestGate(regimes, p.MinTradesPerBucket); gate != nil {
		suggested = gate.BlockedKeys()
	}
	return Report{
		RunID:          run.ID,
		Result:         run.Result,
		Net:            ComputeTradeMetrics(run.Trades),
		Gross:          ComputeGrossTradeMetrics(run.Trades),
		Distribution:   ComputeDistribution(run.Trades),
		Holding:        ComputeHolding(run.Trades),
		Fees:           ComputeFeeMetrics(run.Trades),
		Rejects:        CountRejects(run.Decisions),
		LosingPatterns: TopLosingPatterns(run.Trades, maxLosingPatterns),
		Regimes:        regimes,
		SuggestedGate:  suggested,
	}
}

// CountRejects tallies HOLD decisions by reason, most frequent first.
func CountRejects(decisions []domain.DecisionRecord) []RejectCount {
	counts := make(map[domain.RejectReason]int)
	for _, d := range decisions {
		if d.RejectReason != "" {
			counts[d.RejectReason]++
		}
	}
	out := make([]RejectCount, 0, len(counts))
	for r, c := range counts {
		out = append(out, RejectCount{Reason: r, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// TopLosingPatterns returns up to limit "ENTRY -> EXIT" patterns with the lowest summed PnL.
func TopLosingPatterns(trades []domain.TradeRecord, limit int) []LosingPattern {
	byPattern := make(map[string]*LosingPattern)
	for _, t := range trades {
		key := string(t.EntryReason) + " -> " + string(t.ExitReason)
		lp, ok := byPattern[key]
		if !ok {
			lp = &LosingPattern{Pattern: key, PnL: domain.Zero}
			byPattern[key] = lp
		}
		lp.Trades++
		lp.PnL = lp.PnL.Add(t.PnL)
	}
	out := make([]LosingPattern, 0, len(byPattern))
	for _, lp := range byPattern {
		out = append(out, *lp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PnL.Equal(out[j].PnL) {
			return out[i].PnL.LessThan(out[j].PnL)
		}
		return out[i].Pattern < out[j].Pattern
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
