package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// PassesFeeGate reports whether the distance to target covers round-trip costs
// by at least the configured edge multiple, measured in basis points.
func PassesFeeGate(entry decimal.Decimal, takeProfit *decimal.Decimal, feeRate decimal.Decimal, slippageBps int, fa FeeAwareParams) bool {
	if !fa.Enabled || takeProfit == nil || !entry.IsPositive() {
		return true
	}
	moveBps := takeProfit.Sub(entry).Abs().DivRound(entry, 8).Mul(domain.BpsFactor)
	costBps := feeRate.Mul(domain.BpsFactor).Mul(two).
		Add(decimal.NewFromInt(int64(slippageBps)).Mul(two)).
		Add(fa.BufferBps)
	return moveBps.GreaterThanOrEqual(costBps.Mul(fa.MinEdgeMultiple))
}
