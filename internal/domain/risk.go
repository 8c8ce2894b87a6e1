package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the day-scoped risk control state.
type RiskState struct {
	CurrentDay        time.Time        `json:"currentDay"`
	DailyStartEquity  *decimal.Decimal `json:"dailyStartEquity,omitempty"`
	KillSwitchActive  bool             `json:"killSwitchActive"`
	ConsecutiveLosses int              `json:"consecutiveLosses"`
	CooldownUntil     *time.Time       `json:"cooldownUntil,omitempty"`
}

// UTCDay truncates t to midnight UTC.
func UTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PortfolioSnapshot is the persisted portfolio state.
type PortfolioSnapshot struct {
	Equity        decimal.Decimal  `json:"equity"`
	Position      PositionRecord   `json:"position"`
	LastMarkPrice *decimal.Decimal `json:"lastMarkPrice,omitempty"`
}
