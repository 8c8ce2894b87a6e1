package domain

import "github.com/shopspring/decimal"

type SignalType string

const (
	SignalEnterLong  SignalType = "ENTER_LONG"
	SignalEnterShort SignalType = "ENTER_SHORT"
	SignalHold       SignalType = "HOLD"
)

// ExitPlan describes how a position opened on a signal should be managed.
type ExitPlan struct {
	StopPrice            *decimal.Decimal `json:"stopPrice,omitempty"`
	TakeProfitPrice      *decimal.Decimal `json:"takeProfitPrice,omitempty"`
	TrailActivationPrice *decimal.Decimal `json:"trailActivationPrice,omitempty"`
	TrailDistance        *decimal.Decimal `json:"trailDistance,omitempty"`
	TimeStopBars         *int             `json:"timeStopBars,omitempty"`
	BreakEvenPrice       *decimal.Decimal `json:"breakEvenPrice,omitempty"`
}

// TradeSignal is the outcome of evaluating one bar.
type TradeSignal struct {
	Type         SignalType       `json:"type"`
	EntryPrice   *decimal.Decimal `json:"entryPrice,omitempty"`
	ExitPlan     *ExitPlan        `json:"exitPlan,omitempty"`
	Score        *decimal.Decimal `json:"score,omitempty"`
	Confidence   *decimal.Decimal `json:"confidence,omitempty"`
	EntryReason  EntryReason      `json:"entryReason,omitempty"`
	RejectReason RejectReason     `json:"rejectReason,omitempty"`
	Features     *RegimeFeatures  `json:"features,omitempty"`
}

// IsEntry reports whether the signal opens a position.
func (s TradeSignal) IsEntry() bool {
	return s.Type == SignalEnterLong || s.Type == SignalEnterShort
}

// Side maps an entry signal to a position side.
func (s TradeSignal) Side() Side {
	switch s.Type {
	case SignalEnterLong:
		return SideLong
	case SignalEnterShort:
		return SideShort
	}
	return SideFlat
}

// Hold builds a HOLD signal.
func Hold(reason RejectReason, features *RegimeFeatures, score, confidence *decimal.Decimal) TradeSignal {
	return TradeSignal{
		Type:         SignalHold,
		RejectReason: reason,
		Features:     features,
		Score:        score,
		Confidence:   confidence,
	}
}
