// Package risk enforces the daily drawdown kill switch, the loss-streak cooldown
// and fixed-fraction position sizing.
package risk

import (
	"sync"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Params configures the risk manager.
type Params struct {
	RiskPerTrade         decimal.Decimal `yaml:"risk_per_trade" default:"0.01" validate:"gt=0"`
	DailyMaxDD           decimal.Decimal `yaml:"daily_max_dd" default:"0.03" validate:"gt=0"`
	MaxConsecutiveLosses int             `yaml:"max_consecutive_losses" default:"3" validate:"gt=0"`
	CooldownMinutes      int             `yaml:"cooldown_minutes" default:"60" validate:"gte=0"`
	MinQty               decimal.Decimal `yaml:"min_qty" default:"0"`
	MaxQty               decimal.Decimal `yaml:"max_qty" default:"1000000" validate:"gt=0"`
}

// Manager holds day-scoped risk state. Time is always supplied by the caller.
// Safe for concurrent use.
type Manager struct {
	params Params

	mu    sync.Mutex
	state domain.RiskState
}

// New creates a Manager with empty state.
func New(params Params) *Manager {
	return &Manager{params: params}
}

// Params returns the manager's configuration.
func (m *Manager) Params() Params {
	return m.params
}

// CanEnter reports whether a new entry is allowed at now.
func (m *Manager) CanEnter(now time.Time) bool {
	return m.EntryBlockReason(now) == ""
}

// EntryBlockReason returns why entries are blocked at now, or "" when allowed.
// The kill switch takes precedence over the cooldown.
func (m *Manager) EntryBlockReason(now time.Time) domain.RejectReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDay(now)
	if m.state.KillSwitchActive {
		return domain.RejectRiskKillSwitch
	}
	if m.state.CooldownUntil != nil && now.Before(*m.state.CooldownUntil) {
		return domain.RejectCooldown
	}
	return ""
}

// UpdateEquity records equity and trips the kill switch once the drawdown from the
// day's starting equity reaches DailyMaxDD.
func (m *Manager) UpdateEquity(equity decimal.Decimal, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDay(now)
	if m.state.DailyStartEquity == nil {
		m.state.DailyStartEquity = domain.Ptr(equity)
	}
	start := *m.state.DailyStartEquity
	if !start.IsPositive() {
		return
	}
	dd := start.Sub(equity).DivRound(start, 6)
	if dd.GreaterThanOrEqual(m.params.DailyMaxDD) {
		m.state.KillSwitchActive = true
	}
}

// RecordTradeResult updates the loss streak and starts a cooldown when it reaches the limit.
func (m *Manager) RecordTradeResult(pnl decimal.Decimal, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDay(now)
	if pnl.IsNegative() {
		m.state.ConsecutiveLosses++
	} else {
		m.state.ConsecutiveLosses = 0
	}
	if m.state.ConsecutiveLosses >= m.params.MaxConsecutiveLosses {
		until := now.Add(time.Duration(m.params.CooldownMinutes) * time.Minute)
		m.state.CooldownUntil = &until
	}
}

// ComputeOrderQty sizes a position so that a stop-out loses equity*fraction.
// The result is truncated to 8 decimals and clamped to [MinQty, MaxQty].
func (m *Manager) ComputeOrderQty(equity, entry, stop, fraction decimal.Decimal) decimal.Decimal {
	if !equity.IsPositive() {
		return domain.Zero
	}
	dist := entry.Sub(stop).Abs()
	if !dist.IsPositive() {
		return domain.Zero
	}
	raw, _ := equity.Mul(fraction).QuoRem(dist, 8)
	return domain.Clamp(raw, m.params.MinQty, m.params.MaxQty)
}

// ResetForBacktest starts a fresh day at now with startEquity as the baseline.
func (m *Manager) ResetForBacktest(startEquity decimal.Decimal, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.RiskState{
		CurrentDay:       domain.UTCDay(now),
		DailyStartEquity: domain.Ptr(startEquity),
	}
}

// KillSwitchActive reports whether the daily drawdown limit has halted new entries.
func (m *Manager) KillSwitchActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.KillSwitchActive
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Restore replaces the current state.
func (m *Manager) Restore(state domain.RiskState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// rollDay resets state when now falls on a later UTC day. Caller holds mu.
func (m *Manager) rollDay(now time.Time) {
	day := domain.UTCDay(now)
	if m.state.CurrentDay.IsZero() || day.After(m.state.CurrentDay) {
		m.state = domain.RiskState{CurrentDay: day}
	}
}
