package domain

import "github.com/shopspring/decimal"

// Common constants used across price math.
var (
	Zero      = decimal.Zero
	One       = decimal.NewFromInt(1)
	Half      = decimal.RequireFromString("0.5")
	BpsFactor = decimal.NewFromInt(10_000)
)

// Dec parses a decimal literal and panics on malformed input. Intended for constants and tests.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Ptr returns a pointer to a copy of d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// Div divides a by b rounding half-up to the given number of places.
// Returns zero when b is zero.
func Div(a, b decimal.Decimal, places int32) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.DivRound(b, places)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v decimal.Decimal) decimal.Decimal {
	return Clamp(v, Zero, One)
}

// Mean returns the average of values at the given scale, or zero when empty.
func Mean(values []decimal.Decimal, places int32) decimal.Decimal {
	if len(values) == 0 {
		return Zero
	}
	return Div(decimal.Sum(Zero, values...), decimal.NewFromInt(int64(len(values))), places)
}

// FloorToStep rounds v down to a multiple of step. A non-positive step is a no-op.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	q, _ := v.QuoRem(step, 0)
	return q.Mul(step)
}
