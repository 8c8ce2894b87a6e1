// Package execution manages entries, add-ons and the exit ladder of an open position.
// The backtest simulator and the live trader drive the same Manager.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/shopspring/decimal"
)

// Config holds execution costs and pyramiding rules.
type Config struct {
	FeeRate     decimal.Decimal
	SlippageBps int
	Interval    time.Duration
	Pyramiding  strategy.PyramidingParams
}

// OrderFunc places a market order for qty. It runs before any portfolio mutation;
// an error leaves the portfolio untouched.
type OrderFunc func(ctx context.Context, buy bool, qty decimal.Decimal) error

// Manager applies fills to a portfolio and keeps the risk manager informed.
type Manager struct {
	cfg       Config
	portfolio *portfolio.Portfolio
	risk      *risk.Manager
	order     OrderFunc
}

// New creates a Manager. A nil order func simulates every fill.
func New(cfg Config, pf *portfolio.Portfolio, rm *risk.Manager, order OrderFunc) *Manager {
	return &Manager{cfg: cfg, portfolio: pf, risk: rm, order: order}
}

// ApplySlippage moves price against the taker by bps basis points.
func ApplySlippage(price decimal.Decimal, bps int, buy bool) decimal.Decimal {
	if bps <= 0 {
		return price
	}
	adj := price.Mul(decimal.NewFromInt(int64(bps))).Div(domain.BpsFactor)
	if buy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

// Enter opens a position for an entry signal at price. It returns false without error
// when the levels fail the instrument filters or sizing yields zero.
func (m *Manager) Enter(ctx context.Context, sig domain.TradeSignal, price decimal.Decimal, at time.Time, filters *domain.InstrumentFilters) (bool, error) {
	if !sig.IsEntry() || sig.ExitPlan == nil || sig.ExitPlan.StopPrice == nil {
		return false, nil
	}
	if m.portfolio.Position().Side() != domain.SideFlat {
		return false, nil
	}
	side := sig.Side()
	long := side == domain.SideLong
	tp := price
	if sig.ExitPlan.TakeProfitPrice != nil {
		tp = *sig.ExitPlan.TakeProfitPrice
	}
	levels, ok := filters.AdjustPrices(price, *sig.ExitPlan.StopPrice, tp, side)
	if !ok {
		return false, nil
	}
	qty := m.risk.ComputeOrderQty(m.portfolio.Equity(), levels.Entry, levels.Stop, m.risk.Params().RiskPerTrade)
	qty = filters.AdjustQty(qty, levels.Entry)
	if !qty.IsPositive() {
		return false, nil
	}
	if err := m.place(ctx, long, qty); err != nil {
		return false, fmt.Errorf("execution.Enter: %w", err)
	}

	e := portfolio.Entry{
		Qty:        qty,
		Price:      ApplySlippage(levels.Entry, m.cfg.SlippageBps, long),
		FeeRate:    m.cfg.FeeRate,
		Time:       at,
		StopPrice:  levels.Stop,
		TakeProfit: levels.TakeProfit,
		Plan:       sig.ExitPlan,
		Reason:     sig.EntryReason,
		Score:      sig.Score,
		Confidence: sig.Confidence,
		Features:   sig.Features,
	}
	if long {
		m.portfolio.EnterLong(e)
	} else {
		m.portfolio.EnterShort(e)
	}
	return true, nil
}

// CanAdd reports whether pyramiding allows another add on side at time at.
func (m *Manager) CanAdd(side domain.Side, at time.Time) bool {
	py := m.cfg.Pyramiding
	if !py.Enabled {
		return false
	}
	pos := m.portfolio.Position()
	h, ok := domain.HoldingOf(pos)
	if !ok || pos.Side() != side || h.AddsCount >= py.MaxAdds {
		return false
	}
	ref := h.EntryTime
	if h.LastAddTime != nil {
		ref = *h.LastAddTime
	}
	return m.barsBetween(ref, at) >= int64(py.MinBarsBetweenAdds)
}

// AddOn scales into the open position at price using the add-on risk fraction.
func (m *Manager) AddOn(ctx context.Context, price decimal.Decimal, at time.Time, filters *domain.InstrumentFilters) (bool, error) {
	pos := m.portfolio.Position()
	h, ok := domain.HoldingOf(pos)
	if !ok || h.StopPrice == nil || h.TakeProfitPrice == nil {
		return false, nil
	}
	long := pos.Side() == domain.SideLong
	levels, ok := filters.AdjustPrices(price, *h.StopPrice, *h.TakeProfitPrice, pos.Side())
	if !ok {
		return false, nil
	}
	qty := m.risk.ComputeOrderQty(m.portfolio.Equity(), levels.Entry, levels.Stop, m.cfg.Pyramiding.AddOnRiskFraction)
	qty = filters.AdjustQty(qty, levels.Entry)
	if !qty.IsPositive() {
		return false, nil
	}
	if err := m.place(ctx, long, qty); err != nil {
		return false, fmt.Errorf("execution.AddOn: %w", err)
	}
	m.portfolio.AddToPosition(qty, ApplySlippage(levels.Entry, m.cfg.SlippageBps, long), m.cfg.FeeRate, at)
	return true, nil
}

// ManageBar runs the exit ladder against bar: stop or trail hit, then take profit,
// otherwise break-even promotion, trailing update and the time stop.
// It returns the closed trade, if any.
func (m *Manager) ManageBar(ctx context.Context, bar domain.Candle) (*domain.TradeRecord, error) {
	pos := m.portfolio.Position()
	h, ok := domain.HoldingOf(pos)
	if !ok {
		return nil, nil
	}
	side := pos.Side()

	if level, reason, hit := exitHit(side, h, bar); hit {
		return m.close(ctx, level, reason, bar.OpenTime)
	}

	if stop, moved := breakEvenStop(side, h, bar); moved {
		m.portfolio.UpdateStopLoss(stop, h.TrailingActive)
		h, _ = domain.HoldingOf(m.portfolio.Position())
	}
	if stop, moved := trailStop(side, h, bar.Close); moved {
		m.portfolio.UpdateStopLoss(stop, true)
	}
	if h.TimeStopBars != nil && m.barsBetween(h.EntryTime, bar.OpenTime)+1 >= int64(*h.TimeStopBars) {
		return m.close(ctx, bar.Close, domain.ExitTimeStop, bar.OpenTime)
	}
	return nil, nil
}

// Close exits the open position at price for reason.
func (m *Manager) Close(ctx context.Context, price decimal.Decimal, reason domain.ExitReason, at time.Time) (*domain.TradeRecord, error) {
	if m.portfolio.Position().Side() == domain.SideFlat {
		return nil, nil
	}
	return m.close(ctx, price, reason, at)
}

func (m *Manager) close(ctx context.Context, level decimal.Decimal, reason domain.ExitReason, at time.Time) (*domain.TradeRecord, error) {
	pos := m.portfolio.Position()
	h, _ := domain.HoldingOf(pos)
	buy := pos.Side() == domain.SideShort
	if err := m.place(ctx, buy, h.Qty); err != nil {
		return nil, fmt.Errorf("execution.close: %w", err)
	}
	fill := ApplySlippage(level, m.cfg.SlippageBps, buy)
	pnl := m.portfolio.Exit(fill, m.cfg.FeeRate, at, reason)
	m.risk.RecordTradeResult(pnl, at)
	tr, _ := m.portfolio.LastTrade()
	return &tr, nil
}

func (m *Manager) place(ctx context.Context, buy bool, qty decimal.Decimal) error {
	if m.order == nil {
		return nil
	}
	return m.order(ctx, buy, qty)
}

func (m *Manager) barsBetween(from, to time.Time) int64 {
	if m.cfg.Interval <= 0 {
		return 0
	}
	return int64(to.Sub(from) / m.cfg.Interval)
}

// exitHit checks the stop before the target. A stop hit after trailing engaged is a trail stop.
func exitHit(side domain.Side, h domain.Holding, bar domain.Candle) (decimal.Decimal, domain.ExitReason, bool) {
	stopReason := domain.ExitStopInvalidation
	if h.TrailingActive {
		stopReason = domain.ExitTrailStop
	}
	switch side {
	case domain.SideLong:
		if h.StopPrice != nil && bar.Low.LessThanOrEqual(*h.StopPrice) {
			return *h.StopPrice, stopReason, true
		}
		if h.TakeProfitPrice != nil && bar.High.GreaterThanOrEqual(*h.TakeProfitPrice) {
			return *h.TakeProfitPrice, domain.ExitTakeProfit, true
		}
	case domain.SideShort:
		if h.StopPrice != nil && bar.High.GreaterThanOrEqual(*h.StopPrice) {
			return *h.StopPrice, stopReason, true
		}
		if h.TakeProfitPrice != nil && bar.Low.LessThanOrEqual(*h.TakeProfitPrice) {
			return *h.TakeProfitPrice, domain.ExitTakeProfit, true
		}
	}
	return decimal.Decimal{}, "", false
}

// breakEvenStop promotes the stop to the average price once the break-even level trades.
func breakEvenStop(side domain.Side, h domain.Holding, bar domain.Candle) (decimal.Decimal, bool) {
	if h.BreakEvenPrice == nil || h.StopPrice == nil {
		return decimal.Decimal{}, false
	}
	switch side {
	case domain.SideLong:
		if bar.High.GreaterThanOrEqual(*h.BreakEvenPrice) && h.StopPrice.LessThan(h.AvgPrice) {
			return h.AvgPrice, true
		}
	case domain.SideShort:
		if bar.Low.LessThanOrEqual(*h.BreakEvenPrice) && h.StopPrice.GreaterThan(h.AvgPrice) {
			return h.AvgPrice, true
		}
	}
	return decimal.Decimal{}, false
}

// trailStop follows the close by the trail distance once activation is reached. It never loosens.
func trailStop(side domain.Side, h domain.Holding, last decimal.Decimal) (decimal.Decimal, bool) {
	if h.TrailActivationPrice == nil || h.TrailDistance == nil || h.StopPrice == nil {
		return decimal.Decimal{}, false
	}
	switch side {
	case domain.SideLong:
		if last.LessThan(*h.TrailActivationPrice) {
			return decimal.Decimal{}, false
		}
		if c := last.Sub(*h.TrailDistance); c.GreaterThan(*h.StopPrice) {
			return c, true
		}
	case domain.SideShort:
		if last.GreaterThan(*h.TrailActivationPrice) {
			return decimal.Decimal{}, false
		}
		if c := last.Add(*h.TrailDistance); c.LessThan(*h.StopPrice) {
			return c, true
		}
	}
	return decimal.Decimal{}, false
}
