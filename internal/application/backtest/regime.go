package backtest

import (
	"sort"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// BucketMetrics summarises trades that entered in one regime bucket.
type BucketMetrics struct {
	Bucket       domain.RegimeBucketKey `json:"bucket"`
	Trades       int                    `json:"trades"`
	WinRate      decimal.Decimal        `json:"winRate"`
	ProfitFactor decimal.Decimal        `json:"profitFactor"`
	Expectancy   decimal.Decimal        `json:"expectancy"`
}

// RegimeAnalysis is the per-bucket breakdown of a trade set.
type RegimeAnalysis struct {
	Thresholds domain.RegimeThresholds `json:"thresholds"`
	Buckets    []BucketMetrics         `json:"buckets"`
}

// AnalyzeRegimes derives vol and volume thresholds from the trades' own features
// (33rd and 66th percentiles) and groups trades by bucket, most populated first.
// Trades without features are ignored.
func AnalyzeRegimes(trades []domain.TradeRecord, weakSlope, strongSlope decimal.Decimal) RegimeAnalysis {
	var withFeatures []domain.TradeRecord
	var atrs, vols []decimal.Decimal
	for _, t := range trades {
		if t.Features == nil {
			continue
		}
		withFeatures = append(withFeatures, t)
		if t.Features.ATRPercent != nil {
			atrs = append(atrs, *t.Features.ATRPercent)
		}
		if t.Features.RelVolume != nil {
			vols = append(vols, *t.Features.RelVolume)
		}
	}

	th := domain.RegimeThresholds{
		ATRLow:     quantile(atrs, 0.33),
		ATRHigh:    quantile(atrs, 0.66),
		VolumeLow:  quantile(vols, 0.33),
		VolumeHigh: quantile(vols, 0.66),
	}

	groups := make(map[domain.RegimeBucketKey][]domain.TradeRecord)
	var order []domain.RegimeBucketKey
	for _, t := range withFeatures {
		key := domain.Bucket(*t.Features, th, weakSlope, strongSlope)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	buckets := make([]BucketMetrics, 0, len(order))
	for _, key := range order {
		group := groups[key]
		m := ComputeTradeMetrics(group)
		buckets = append(buckets, BucketMetrics{
			Bucket:       key,
			Trades:       len(group),
			WinRate:      m.WinRate,
			ProfitFactor: profitFactor(group),
			Expectancy:   m.Expectancy,
		})
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Trades > buckets[j].Trades })
	return RegimeAnalysis{Thresholds: th, Buckets: buckets}
}

// SuggestGate blocks every bucket with at least minTrades trades and negative expectancy.
// It returns nil when nothing qualifies.
func SuggestGate(a RegimeAnalysis, minTrades int) *domain.RegimeGate {
	blocked := make(map[domain.RegimeBucketKey]struct{})
	for _, b := range a.Buckets {
		if b.Trades >= minTrades && b.Expectancy.IsNegative() {
			blocked[b.Bucket] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	return &domain.RegimeGate{
		Thresholds:         a.Thresholds,
		Blocked:            blocked,
		MinTradesPerBucket: minTrades,
	}
}

func quantile(values []decimal.Decimal, q float64) decimal.Decimal {
	if len(values) == 0 {
		return domain.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return percentile(sorted, q)
}

// profitFactor is gross profit over gross loss of net PnL at 4 dp, zero without losses.
func profitFactor(trades []domain.TradeRecord) decimal.Decimal {
	gp, gl := domain.Zero, domain.Zero
	for _, t := range trades {
		switch {
		case t.PnL.IsPositive():
			gp = gp.Add(t.PnL)
		case t.PnL.IsNegative():
			gl = gl.Add(t.PnL.Abs())
		}
	}
	return domain.Div(gp, gl, 4)
}
