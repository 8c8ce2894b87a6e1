package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// DailyPnL is the realized result of one UTC day.
type DailyPnL struct {
	Date   time.Time       `json:"date"`
	Trades int             `json:"trades"`
	Wins   int             `json:"wins"`
	PnL    decimal.Decimal `json:"pnl"`
	Fees   decimal.Decimal `json:"fees"`
}

// LedgerStats aggregates the trade ledger of a run.
type LedgerStats struct {
	Trades    int             `json:"trades"`
	Wins      int             `json:"wins"`
	NetPnL    decimal.Decimal `json:"netPnl"`
	Fees      decimal.Decimal `json:"fees"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	Dailies   []DailyPnL      `json:"dailies"`
}

// Stats aggregates the trades of a run by exit day.
func (s *SQLiteStore) Stats(ctx context.Context, runID string) (LedgerStats, error) {
	trades, err := s.Trades(ctx, runID)
	if err != nil {
		return LedgerStats{}, fmt.Errorf("storage.Stats: %w", err)
	}
	return AggregateTrades(trades), nil
}

// AggregateTrades builds ledger statistics from closed trades.
func AggregateTrades(trades []domain.TradeRecord) LedgerStats {
	stats := LedgerStats{NetPnL: domain.Zero, Fees: domain.Zero}
	byDay := make(map[time.Time]*DailyPnL)
	for _, t := range trades {
		day := domain.UTCDay(t.ExitTime)
		d, ok := byDay[day]
		if !ok {
			d = &DailyPnL{Date: day, PnL: domain.Zero, Fees: domain.Zero}
			byDay[day] = d
		}
		d.Trades++
		d.PnL = d.PnL.Add(t.PnL)
		d.Fees = d.Fees.Add(t.TotalFees())

		stats.Trades++
		stats.NetPnL = stats.NetPnL.Add(t.PnL)
		stats.Fees = stats.Fees.Add(t.TotalFees())
		if t.PnL.IsPositive() {
			d.Wins++
			stats.Wins++
		}
	}

	for _, d := range byDay {
		stats.Dailies = append(stats.Dailies, *d)
	}
	sort.Slice(stats.Dailies, func(i, j int) bool { return stats.Dailies[i].Date.Before(stats.Dailies[j].Date) })
	if n := len(stats.Dailies); n > 0 {
		stats.StartDate = stats.Dailies[0].Date
		stats.EndDate = stats.Dailies[n-1].Date
	}
	return stats
}
