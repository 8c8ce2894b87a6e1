package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// FindWave2Setup returns the most recent LOW-HIGH-LOW triple whose second low holds above the first.
func FindWave2Setup(swings []domain.SwingPoint) (domain.Wave2Setup, bool) {
	return findTriple(swings, domain.SwingLow, func(s0, s2 domain.SwingPoint) bool {
		return s2.Price.GreaterThanOrEqual(s0.Price)
	})
}

// FindWave2SetupDown returns the most recent HIGH-LOW-HIGH triple whose second high stays below the first.
func FindWave2SetupDown(swings []domain.SwingPoint) (domain.Wave2Setup, bool) {
	return findTriple(swings, domain.SwingHigh, func(s0, s2 domain.SwingPoint) bool {
		return s2.Price.LessThanOrEqual(s0.Price)
	})
}

func findTriple(swings []domain.SwingPoint, outer domain.SwingType, holds func(s0, s2 domain.SwingPoint) bool) (domain.Wave2Setup, bool) {
	inner := domain.SwingHigh
	if outer == domain.SwingHigh {
		inner = domain.SwingLow
	}
	for i := len(swings) - 3; i >= 0; i-- {
		s0, s1, s2 := swings[i], swings[i+1], swings[i+2]
		if s0.Type == outer && s1.Type == inner && s2.Type == outer && holds(s0, s2) {
			return domain.Wave2Setup{Wave1Start: s0, Wave1End: s1, Wave2End: s2}, true
		}
	}
	return domain.Wave2Setup{}, false
}

var impulsePattern = [6]domain.SwingType{
	domain.SwingLow, domain.SwingHigh, domain.SwingLow,
	domain.SwingHigh, domain.SwingLow, domain.SwingHigh,
}

// FindLatestImpulse checks whether the last six swings form a valid five-wave impulse.
func FindLatestImpulse(swings []domain.SwingPoint, enforceNoOverlap bool) (domain.WaveImpulse, bool) {
	if len(swings) < 6 {
		return domain.WaveImpulse{}, false
	}
	last := swings[len(swings)-6:]
	for i, s := range last {
		if s.Type != impulsePattern[i] {
			return domain.WaveImpulse{}, false
		}
	}
	imp := domain.WaveImpulse{
		Wave1Start: last[0],
		Wave1End:   last[1],
		Wave2End:   last[2],
		Wave3End:   last[3],
		Wave4End:   last[4],
		Wave5End:   last[5],
	}
	if !IsValidImpulse(imp, enforceNoOverlap) {
		return domain.WaveImpulse{}, false
	}
	return imp, true
}

// IsValidImpulse applies the impulse rules: wave 2 never retraces past the start of wave 1,
// wave 3 is not the shortest, and optionally wave 4 never overlaps the end of wave 1.
// A falling wave 1 marks a down impulse and the price rules are mirrored.
func IsValidImpulse(imp domain.WaveImpulse, enforceNoOverlap bool) bool {
	down := imp.Wave1End.Price.LessThan(imp.Wave1Start.Price)
	beyond := func(a, b decimal.Decimal) bool { return a.LessThan(b) }
	if down {
		beyond = func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }
	}
	if beyond(imp.Wave2End.Price, imp.Wave1Start.Price) {
		return false
	}
	w1 := imp.Wave1End.Price.Sub(imp.Wave1Start.Price).Abs()
	w3 := imp.Wave3End.Price.Sub(imp.Wave2End.Price).Abs()
	w5 := imp.Wave5End.Price.Sub(imp.Wave4End.Price).Abs()
	if w3.LessThanOrEqual(decimal.Min(w1, w5)) {
		return false
	}
	if enforceNoOverlap && !beyond(imp.Wave1End.Price, imp.Wave4End.Price) {
		return false
	}
	return true
}
