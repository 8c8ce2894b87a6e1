package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	SideFlat  Side = "FLAT"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is FLAT, LONG or SHORT. Only Long and Short carry a Holding,
// so stop and target levels cannot exist without an open position.
type Position interface {
	Side() Side
	isPosition()
}

// Flat is the no-position state.
type Flat struct{}

// Long is an open long position.
type Long struct{ Holding }

// Short is an open short position.
type Short struct{ Holding }

func (Flat) Side() Side  { return SideFlat }
func (Long) Side() Side  { return SideLong }
func (Short) Side() Side { return SideShort }

func (Flat) isPosition()  {}
func (Long) isPosition()  {}
func (Short) isPosition() {}

// Holding is everything an open position tracks.
type Holding struct {
	Qty                  decimal.Decimal
	AvgPrice             decimal.Decimal
	EntryFee             decimal.Decimal
	StopPrice            *decimal.Decimal
	TakeProfitPrice      *decimal.Decimal
	TrailActivationPrice *decimal.Decimal
	TrailDistance        *decimal.Decimal
	TimeStopBars         *int
	BreakEvenPrice       *decimal.Decimal
	TrailingActive       bool
	EntryTime            time.Time
	EntryReason          EntryReason
	EntryScore           *decimal.Decimal
	Confidence           *decimal.Decimal
	Features             *RegimeFeatures
	AddsCount            int
	LastAddTime          *time.Time
	LastAddPrice         *decimal.Decimal
}

// HoldingOf returns the holding of an open position.
func HoldingOf(p Position) (Holding, bool) {
	switch v := p.(type) {
	case Long:
		return v.Holding, true
	case Short:
		return v.Holding, true
	}
	return Holding{}, false
}

// OpenPosition wraps a holding in the position variant for side. SideFlat yields Flat.
func OpenPosition(side Side, h Holding) Position {
	switch side {
	case SideLong:
		return Long{h}
	case SideShort:
		return Short{h}
	}
	return Flat{}
}

// PositionRecord is the serializable form of a Position.
type PositionRecord struct {
	Side    Side     `json:"side"`
	Holding *Holding `json:"holding,omitempty"`
}

// RecordOf converts a position to its serializable form.
func RecordOf(p Position) PositionRecord {
	if p == nil {
		return PositionRecord{Side: SideFlat}
	}
	h, ok := HoldingOf(p)
	if !ok {
		return PositionRecord{Side: SideFlat}
	}
	return PositionRecord{Side: p.Side(), Holding: &h}
}

// Position rebuilds the position variant. A record without a holding is Flat.
func (r PositionRecord) Position() Position {
	if r.Holding == nil {
		return Flat{}
	}
	return OpenPosition(r.Side, *r.Holding)
}
