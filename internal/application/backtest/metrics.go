package backtest

import (
	"sort"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// TradeMetrics summarises per-trade edge.
type TradeMetrics struct {
	WinRate    decimal.Decimal `json:"winRate"`
	AvgWin     decimal.Decimal `json:"avgWin"`
	AvgLoss    decimal.Decimal `json:"avgLoss"`
	Expectancy decimal.Decimal `json:"expectancy"`
}

// DistributionMetrics describes the spread of net trade PnL.
type DistributionMetrics struct {
	Median      decimal.Decimal `json:"median"`
	P25         decimal.Decimal `json:"p25"`
	P75         decimal.Decimal `json:"p75"`
	LargestWin  decimal.Decimal `json:"largestWin"`
	LargestLoss decimal.Decimal `json:"largestLoss"`
}

type HoldingMetrics struct {
	TradesPerMonth decimal.Decimal `json:"tradesPerMonth"`
	AvgMinutes     float64         `json:"avgMinutes"`
}

type FeeMetrics struct {
	AvgFeePerTrade     decimal.Decimal `json:"avgFeePerTrade"`
	FeeDragBpsPerTrade decimal.Decimal `json:"feeDragBpsPerTrade"`
}

// ComputeTradeMetrics uses net PnL.
func ComputeTradeMetrics(trades []domain.TradeRecord) TradeMetrics {
	return computeTradeMetrics(trades, func(t domain.TradeRecord) decimal.Decimal { return t.PnL })
}

// ComputeGrossTradeMetrics uses PnL before fees.
func ComputeGrossTradeMetrics(trades []domain.TradeRecord) TradeMetrics {
	return computeTradeMetrics(trades, func(t domain.TradeRecord) decimal.Decimal { return t.GrossPnL })
}

func computeTradeMetrics(trades []domain.TradeRecord, pnl func(domain.TradeRecord) decimal.Decimal) TradeMetrics {
	if len(trades) == 0 {
		return TradeMetrics{}
	}
	var wins, losses []decimal.Decimal
	for _, t := range trades {
		v := pnl(t)
		switch {
		case v.IsPositive():
			wins = append(wins, v)
		case v.IsNegative():
			losses = append(losses, v.Abs())
		}
	}
	winRate := decimal.NewFromInt(int64(len(wins))).DivRound(decimal.NewFromInt(int64(len(trades))), 4)
	avgWin := domain.Mean(wins, 6)
	avgLoss := domain.Mean(losses, 6)
	return TradeMetrics{
		WinRate:    winRate,
		AvgWin:     avgWin,
		AvgLoss:    avgLoss,
		Expectancy: expectancy(winRate, avgWin, avgLoss),
	}
}

func expectancy(winRate, avgWin, avgLoss decimal.Decimal) decimal.Decimal {
	return winRate.Mul(avgWin).Sub(domain.One.Sub(winRate).Mul(avgLoss))
}

// ComputeDistribution reports nearest-rank percentiles of net PnL.
func ComputeDistribution(trades []domain.TradeRecord) DistributionMetrics {
	if len(trades) == 0 {
		return DistributionMetrics{}
	}
	sorted := make([]decimal.Decimal, len(trades))
	for i, t := range trades {
		sorted[i] = t.PnL
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return DistributionMetrics{
		Median:      percentile(sorted, 0.5),
		P25:         percentile(sorted, 0.25),
		P75:         percentile(sorted, 0.75),
		LargestWin:  sorted[len(sorted)-1],
		LargestLoss: sorted[0],
	}
}

// percentile indexes a sorted slice at floor(p*(n-1)).
func percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	if len(sorted) == 0 {
		return domain.Zero
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ComputeHolding reports trade frequency and average holding time.
func ComputeHolding(trades []domain.TradeRecord) HoldingMetrics {
	if len(trades) == 0 {
		return HoldingMetrics{}
	}
	var totalMinutes int64
	first, last := trades[0].EntryTime, trades[0].ExitTime
	for _, t := range trades {
		totalMinutes += int64(t.ExitTime.Sub(t.EntryTime).Minutes())
		if t.EntryTime.Before(first) {
			first = t.EntryTime
		}
		if t.ExitTime.After(last) {
			last = t.ExitTime
		}
	}
	n := decimal.NewFromInt(int64(len(trades)))
	days := int64(last.Sub(first).Hours() / 24)
	months := decimal.NewFromInt(days).Div(decimal.NewFromInt(30))

	perMonth := n
	if months.IsPositive() {
		perMonth = n.DivRound(months, 2)
	}
	return HoldingMetrics{
		TradesPerMonth: perMonth.Round(2),
		AvgMinutes:     float64(totalMinutes) / float64(len(trades)),
	}
}

// ComputeFeeMetrics reports the average fee and the average fee drag in bps of entry notional.
func ComputeFeeMetrics(trades []domain.TradeRecord) FeeMetrics {
	if len(trades) == 0 {
		return FeeMetrics{}
	}
	fees := make([]decimal.Decimal, len(trades))
	drags := make([]decimal.Decimal, len(trades))
	for i, t := range trades {
		fees[i] = t.TotalFees()
		notional := t.EntryPrice.Mul(t.Qty)
		if notional.IsPositive() {
			drags[i] = t.TotalFees().DivRound(notional, 8).Mul(domain.BpsFactor)
		}
	}
	return FeeMetrics{
		AvgFeePerTrade:     domain.Mean(fees, 6),
		FeeDragBpsPerTrade: domain.Mean(drags, 6),
	}
}
