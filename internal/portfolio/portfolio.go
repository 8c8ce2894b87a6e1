// Package portfolio tracks equity, the open position and the closed-trade ledger.
package portfolio

import (
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry describes a fill that opens a position.
type Entry struct {
	Qty        decimal.Decimal
	Price      decimal.Decimal
	FeeRate    decimal.Decimal
	Time       time.Time
	StopPrice  decimal.Decimal
	TakeProfit decimal.Decimal
	Plan       *domain.ExitPlan
	Reason     domain.EntryReason
	Score      *decimal.Decimal
	Confidence *decimal.Decimal
	Features   *domain.RegimeFeatures
}

// Portfolio is a single-instrument position state machine: FLAT -> LONG|SHORT -> FLAT.
// Not safe for concurrent use.
type Portfolio struct {
	equity   decimal.Decimal
	position domain.Position
	trades   []domain.TradeRecord
	lastMark *decimal.Decimal
}

// New creates a flat portfolio holding initialCapital.
func New(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{equity: initialCapital, position: domain.Flat{}}
}

// Equity is realized equity: capital plus closed PnL minus all fees paid.
func (p *Portfolio) Equity() decimal.Decimal { return p.equity }

func (p *Portfolio) Position() domain.Position { return p.position }

// Trades returns a copy of the closed-trade ledger.
func (p *Portfolio) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(p.trades))
	copy(out, p.trades)
	return out
}

// LastTrade returns the most recently closed trade.
func (p *Portfolio) LastTrade() (domain.TradeRecord, bool) {
	if len(p.trades) == 0 {
		return domain.TradeRecord{}, false
	}
	return p.trades[len(p.trades)-1], true
}

// EnterLong opens a long position. No-op unless flat.
func (p *Portfolio) EnterLong(e Entry) { p.enter(domain.SideLong, e) }

// EnterShort opens a short position. No-op unless flat.
func (p *Portfolio) EnterShort(e Entry) { p.enter(domain.SideShort, e) }

func (p *Portfolio) enter(side domain.Side, e Entry) {
	if p.position.Side() != domain.SideFlat {
		return
	}
	fee := e.Price.Mul(e.Qty).Mul(e.FeeRate)
	p.equity = p.equity.Sub(fee)

	h := domain.Holding{
		Qty:             e.Qty,
		AvgPrice:        e.Price,
		EntryFee:        fee,
		StopPrice:       domain.Ptr(e.StopPrice),
		TakeProfitPrice: domain.Ptr(e.TakeProfit),
		EntryTime:       e.Time,
		EntryReason:     e.Reason,
		EntryScore:      e.Score,
		Confidence:      e.Confidence,
		Features:        e.Features,
	}
	if e.Plan != nil {
		h.TrailActivationPrice = e.Plan.TrailActivationPrice
		h.TrailDistance = e.Plan.TrailDistance
		h.TimeStopBars = e.Plan.TimeStopBars
		h.BreakEvenPrice = e.Plan.BreakEvenPrice
	}
	p.position = domain.OpenPosition(side, h)
	p.lastMark = domain.Ptr(e.Price)
}

// AddToPosition scales into the open position at price, re-averaging the entry.
// No-op when flat or qty is not positive.
func (p *Portfolio) AddToPosition(qty, price, feeRate decimal.Decimal, at time.Time) {
	h, ok := domain.HoldingOf(p.position)
	if !ok || !qty.IsPositive() {
		return
	}
	fee := price.Mul(qty).Mul(feeRate)
	total := h.Qty.Add(qty)
	h.AvgPrice = h.AvgPrice.Mul(h.Qty).Add(price.Mul(qty)).Div(total)
	h.Qty = total
	h.EntryFee = h.EntryFee.Add(fee)
	h.AddsCount++
	h.LastAddTime = &at
	h.LastAddPrice = domain.Ptr(price)
	p.equity = p.equity.Sub(fee)
	p.position = domain.OpenPosition(p.position.Side(), h)
}

// ExitLong closes a long position and returns net PnL. No-op unless long.
func (p *Portfolio) ExitLong(price, feeRate decimal.Decimal, at time.Time, reason domain.ExitReason) decimal.Decimal {
	if p.position.Side() != domain.SideLong {
		return domain.Zero
	}
	return p.exit(price, feeRate, at, reason)
}

// ExitShort closes a short position and returns net PnL. No-op unless short.
func (p *Portfolio) ExitShort(price, feeRate decimal.Decimal, at time.Time, reason domain.ExitReason) decimal.Decimal {
	if p.position.Side() != domain.SideShort {
		return domain.Zero
	}
	return p.exit(price, feeRate, at, reason)
}

// Exit closes whichever side is open.
func (p *Portfolio) Exit(price, feeRate decimal.Decimal, at time.Time, reason domain.ExitReason) decimal.Decimal {
	if p.position.Side() == domain.SideFlat {
		return domain.Zero
	}
	return p.exit(price, feeRate, at, reason)
}

func (p *Portfolio) exit(price, feeRate decimal.Decimal, at time.Time, reason domain.ExitReason) decimal.Decimal {
	side := p.position.Side()
	h, _ := domain.HoldingOf(p.position)

	gross := price.Sub(h.AvgPrice).Mul(h.Qty)
	if side == domain.SideShort {
		gross = gross.Neg()
	}
	exitFee := price.Mul(h.Qty).Mul(feeRate)
	net := gross.Sub(h.EntryFee).Sub(exitFee)
	p.equity = p.equity.Add(gross).Sub(exitFee)

	p.trades = append(p.trades, domain.TradeRecord{
		ID:          uuid.NewString(),
		Side:        side,
		EntryPrice:  h.AvgPrice,
		ExitPrice:   price,
		Qty:         h.Qty,
		GrossPnL:    gross,
		EntryFee:    h.EntryFee,
		ExitFee:     exitFee,
		PnL:         net,
		EntryTime:   h.EntryTime,
		ExitTime:    at,
		EntryReason: h.EntryReason,
		ExitReason:  reason,
		EntryScore:  h.EntryScore,
		Confidence:  h.Confidence,
		Features:    h.Features,
	})
	p.position = domain.Flat{}
	p.lastMark = domain.Ptr(price)
	return net
}

// UpdateStopLoss moves the stop of an open position.
func (p *Portfolio) UpdateStopLoss(price decimal.Decimal, trailingActive bool) {
	h, ok := domain.HoldingOf(p.position)
	if !ok {
		return
	}
	h.StopPrice = domain.Ptr(price)
	h.TrailingActive = trailingActive
	p.position = domain.OpenPosition(p.position.Side(), h)
}

func (p *Portfolio) MarkToMarket(price decimal.Decimal) {
	p.lastMark = domain.Ptr(price)
}

// UnrealizedPnL is the open position's PnL at the last mark; zero when flat.
func (p *Portfolio) UnrealizedPnL() decimal.Decimal {
	h, ok := domain.HoldingOf(p.position)
	if !ok || p.lastMark == nil {
		return domain.Zero
	}
	pnl := p.lastMark.Sub(h.AvgPrice).Mul(h.Qty)
	if p.position.Side() == domain.SideShort {
		return pnl.Neg()
	}
	return pnl
}

// MarkedEquity is equity plus unrealized PnL.
func (p *Portfolio) MarkedEquity() decimal.Decimal {
	return p.equity.Add(p.UnrealizedPnL())
}

func (p *Portfolio) Snapshot() domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		Equity:        p.equity,
		Position:      domain.RecordOf(p.position),
		LastMarkPrice: p.lastMark,
	}
}

// Restore replaces equity, position and mark. The trade ledger is kept.
func (p *Portfolio) Restore(s domain.PortfolioSnapshot) {
	p.equity = s.Equity
	p.position = s.Position.Position()
	p.lastMark = s.LastMarkPrice
}

// Reset returns to a flat portfolio holding capital with an empty ledger.
func (p *Portfolio) Reset(capital decimal.Decimal) {
	p.equity = capital
	p.position = domain.Flat{}
	p.trades = nil
	p.lastMark = nil
}
