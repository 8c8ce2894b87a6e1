package domain

import "github.com/shopspring/decimal"

// InstrumentFilters are exchange trading constraints. Nil fields are unconstrained.
type InstrumentFilters struct {
	MinOrderQty       *decimal.Decimal
	MaxOrderQty       *decimal.Decimal
	MaxMarketOrderQty *decimal.Decimal
	QtyStep           *decimal.Decimal
	MinNotional       *decimal.Decimal
	TickSize          *decimal.Decimal
	MinPrice          *decimal.Decimal
	MaxPrice          *decimal.Decimal
}

// PriceLevels are entry, stop and target after tick adjustment.
type PriceLevels struct {
	Entry      decimal.Decimal
	Stop       decimal.Decimal
	TakeProfit decimal.Decimal
}

// AdjustPrices rounds stop and target down to the tick size and checks bounds.
// The stop must stay strictly on the losing side of entry and the target on the winning side;
// otherwise ok is false. A nil receiver skips tick and bound checks.
func (f *InstrumentFilters) AdjustPrices(entry, stop, takeProfit decimal.Decimal, side Side) (PriceLevels, bool) {
	if f != nil {
		if f.TickSize != nil && f.TickSize.IsPositive() {
			stop = FloorToStep(stop, *f.TickSize)
			takeProfit = FloorToStep(takeProfit, *f.TickSize)
		}
		if f.MinPrice != nil && (stop.LessThan(*f.MinPrice) || takeProfit.LessThan(*f.MinPrice) || entry.LessThan(*f.MinPrice)) {
			return PriceLevels{}, false
		}
		if f.MaxPrice != nil && (stop.GreaterThan(*f.MaxPrice) || takeProfit.GreaterThan(*f.MaxPrice) || entry.GreaterThan(*f.MaxPrice)) {
			return PriceLevels{}, false
		}
	}
	switch side {
	case SideLong:
		if stop.GreaterThanOrEqual(entry) || takeProfit.LessThanOrEqual(entry) {
			return PriceLevels{}, false
		}
	case SideShort:
		if stop.LessThanOrEqual(entry) || takeProfit.GreaterThanOrEqual(entry) {
			return PriceLevels{}, false
		}
	default:
		return PriceLevels{}, false
	}
	return PriceLevels{Entry: entry, Stop: stop, TakeProfit: takeProfit}, true
}

// AdjustQty floors qty to the step, caps it at the market (or order) maximum,
// and returns zero when it falls below the minimum quantity or notional.
func (f *InstrumentFilters) AdjustQty(qty, price decimal.Decimal) decimal.Decimal {
	if f == nil || !qty.IsPositive() {
		return qty
	}
	if f.QtyStep != nil {
		qty = FloorToStep(qty, *f.QtyStep)
	}
	maxQty := f.MaxMarketOrderQty
	if maxQty == nil {
		maxQty = f.MaxOrderQty
	}
	if maxQty != nil && qty.GreaterThan(*maxQty) {
		qty = *maxQty
	}
	if f.MinOrderQty != nil && qty.LessThan(*f.MinOrderQty) {
		return Zero
	}
	if f.MinNotional != nil && price.Mul(qty).LessThan(*f.MinNotional) {
		return Zero
	}
	return qty
}
