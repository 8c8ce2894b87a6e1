package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwingType marks a pivot as a local high or low.
type SwingType string

const (
	SwingHigh SwingType = "HIGH"
	SwingLow  SwingType = "LOW"
)

// SwingPoint is a pivot surviving the reversal threshold.
type SwingPoint struct {
	Time  time.Time
	Price decimal.Decimal
	Type  SwingType
}

// Wave2Setup is an impulse leg (wave 1) followed by its retracement (wave 2).
type Wave2Setup struct {
	Wave1Start SwingPoint
	Wave1End   SwingPoint
	Wave2End   SwingPoint
}

// Wave1Size is the absolute price length of wave 1.
func (s Wave2Setup) Wave1Size() decimal.Decimal {
	return s.Wave1End.Price.Sub(s.Wave1Start.Price).Abs()
}

// WaveImpulse is six alternating pivots forming a five-wave pattern.
type WaveImpulse struct {
	Wave1Start SwingPoint
	Wave1End   SwingPoint
	Wave2End   SwingPoint
	Wave3End   SwingPoint
	Wave4End   SwingPoint
	Wave5End   SwingPoint
}
