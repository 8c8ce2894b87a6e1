package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is an immutable ledger entry written on a full exit.
// PnL is net of entry and exit fees.
type TradeRecord struct {
	ID          string           `json:"id"`
	Side        Side             `json:"side"`
	EntryPrice  decimal.Decimal  `json:"entryPrice"`
	ExitPrice   decimal.Decimal  `json:"exitPrice"`
	Qty         decimal.Decimal  `json:"qty"`
	GrossPnL    decimal.Decimal  `json:"grossPnl"`
	EntryFee    decimal.Decimal  `json:"entryFee"`
	ExitFee     decimal.Decimal  `json:"exitFee"`
	PnL         decimal.Decimal  `json:"pnl"`
	EntryTime   time.Time        `json:"entryTime"`
	ExitTime    time.Time        `json:"exitTime"`
	EntryReason EntryReason      `json:"entryReason,omitempty"`
	ExitReason  ExitReason       `json:"exitReason,omitempty"`
	EntryScore  *decimal.Decimal `json:"entryScore,omitempty"`
	Confidence  *decimal.Decimal `json:"confidence,omitempty"`
	Features    *RegimeFeatures  `json:"features,omitempty"`
}

// TotalFees is entry plus exit fee.
func (t TradeRecord) TotalFees() decimal.Decimal {
	return t.EntryFee.Add(t.ExitFee)
}

// DecisionRecord is one entry of the backtest decision audit.
type DecisionRecord struct {
	Time         time.Time        `json:"time"`
	SignalType   SignalType       `json:"signalType"`
	EntryReason  EntryReason      `json:"entryReason,omitempty"`
	RejectReason RejectReason     `json:"rejectReason,omitempty"`
	Score        *decimal.Decimal `json:"score,omitempty"`
	Confidence   *decimal.Decimal `json:"confidence,omitempty"`
	Features     *RegimeFeatures  `json:"features,omitempty"`
}
