package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := storage.NewSQLiteStore(":memory:", "BTCUSDT")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTrade(id string, pnl string, exit time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		ID:          id,
		Side:        domain.SideLong,
		EntryPrice:  domain.Dec("100"),
		ExitPrice:   domain.Dec("101.5"),
		Qty:         domain.Dec("0.25"),
		GrossPnL:    domain.Dec("0.375"),
		EntryFee:    domain.Dec("0.015"),
		ExitFee:     domain.Dec("0.0152"),
		PnL:         domain.Dec(pnl),
		EntryTime:   exit.Add(-time.Hour),
		ExitTime:    exit,
		EntryReason: domain.EntryWave2Break,
		ExitReason:  domain.ExitTakeProfit,
		EntryScore:  domain.Ptr(domain.Dec("0.72")),
	}
}

// --- Snapshots ---

func TestSQLiteStore_MissingSnapshotsAreNil(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	rs, err := db.LoadRiskState(ctx)
	require.NoError(t, err)
	assert.Nil(t, rs)

	ps, err := db.LoadPortfolio(ctx)
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestSQLiteStore_RiskStateRoundTrip(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	cooldown := t0.Add(time.Hour)

	require.NoError(t, db.SaveRiskState(ctx, domain.RiskState{
		CurrentDay:        domain.UTCDay(t0),
		DailyStartEquity:  domain.Ptr(domain.Dec("1000")),
		ConsecutiveLosses: 2,
		CooldownUntil:     &cooldown,
	}))
	require.NoError(t, db.SaveRiskState(ctx, domain.RiskState{
		CurrentDay:        domain.UTCDay(t0),
		DailyStartEquity:  domain.Ptr(domain.Dec("1000")),
		KillSwitchActive:  true,
		ConsecutiveLosses: 3,
		CooldownUntil:     &cooldown,
	}))

	got, err := db.LoadRiskState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.KillSwitchActive, "second save overwrites the first")
	assert.Equal(t, 3, got.ConsecutiveLosses)
	assert.True(t, got.DailyStartEquity.Equal(domain.Dec("1000")))
	require.NotNil(t, got.CooldownUntil)
	assert.True(t, got.CooldownUntil.Equal(cooldown))
}

func TestSQLiteStore_PortfolioRoundTripKeepsPositionVariant(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	h := domain.Holding{
		Qty:             domain.Dec("0.5"),
		AvgPrice:        domain.Dec("100"),
		EntryFee:        domain.Dec("0.03"),
		StopPrice:       domain.Ptr(domain.Dec("95")),
		TakeProfitPrice: domain.Ptr(domain.Dec("110")),
		EntryTime:       t0,
		EntryReason:     domain.EntryWave2Break,
	}
	require.NoError(t, db.SavePortfolio(ctx, domain.PortfolioSnapshot{
		Equity:        domain.Dec("1000"),
		Position:      domain.RecordOf(domain.Short{Holding: h}),
		LastMarkPrice: domain.Ptr(domain.Dec("99.5")),
	}))

	got, err := db.LoadPortfolio(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	pos := got.Position.Position()
	short, ok := pos.(domain.Short)
	require.True(t, ok, "position variant survives a round trip")
	assert.True(t, short.Qty.Equal(h.Qty))
	assert.True(t, short.StopPrice.Equal(domain.Dec("95")))
	assert.True(t, got.LastMarkPrice.Equal(domain.Dec("99.5")))
}

func TestSQLiteStore_SnapshotsAreScopedBySymbol(t *testing.T) {
	path := t.TempDir() + "/state.db"
	ctx := context.Background()

	btc, err := storage.NewSQLiteStore(path, "BTCUSDT")
	require.NoError(t, err)
	require.NoError(t, btc.SaveRiskState(ctx, domain.RiskState{ConsecutiveLosses: 1}))
	require.NoError(t, btc.Close())

	eth, err := storage.NewSQLiteStore(path, "ETHUSDT")
	require.NoError(t, err)
	defer eth.Close()
	rs, err := eth.LoadRiskState(ctx)
	require.NoError(t, err)
	assert.Nil(t, rs)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// --- Ledger ---

func TestSQLiteStore_SaveTradeAndList(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	tr := makeTrade("b", "0.3448", t0.Add(2*time.Hour))
	tr.Features = &domain.RegimeFeatures{ATRPercent: domain.Ptr(domain.Dec("0.012"))}
	require.NoError(t, db.SaveTrade(ctx, "run-1", tr))
	require.NoError(t, db.SaveTrade(ctx, "run-1", makeTrade("a", "-1.2", t0)))
	require.NoError(t, db.SaveTrade(ctx, "run-2", makeTrade("c", "5", t0)))

	trades, err := db.Trades(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "a", trades[0].ID, "ordered by exit time")
	got := trades[1]
	assert.Equal(t, domain.SideLong, got.Side)
	assert.True(t, got.PnL.Equal(domain.Dec("0.3448")))
	assert.True(t, got.ExitFee.Equal(domain.Dec("0.0152")))
	assert.True(t, got.ExitTime.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, domain.ExitTakeProfit, got.ExitReason)
	require.NotNil(t, got.EntryScore)
	assert.True(t, got.EntryScore.Equal(domain.Dec("0.72")))
	assert.Nil(t, got.Confidence)
	require.NotNil(t, got.Features)
	assert.True(t, got.Features.ATRPercent.Equal(domain.Dec("0.012")))
}

func TestSQLiteStore_SaveTradeUpserts(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTrade(ctx, "run", makeTrade("x", "1", t0)))
	updated := makeTrade("x", "2", t0)
	updated.ExitReason = domain.ExitManual
	require.NoError(t, db.SaveTrade(ctx, "run", updated))

	trades, err := db.Trades(ctx, "run")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].PnL.Equal(domain.Dec("2")))
	assert.Equal(t, domain.ExitManual, trades[0].ExitReason)
}

func TestSQLiteStore_SaveDecisions(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDecisions(ctx, "run", nil))
	require.NoError(t, db.SaveDecisions(ctx, "run", []domain.DecisionRecord{
		{Time: t0, SignalType: domain.SignalHold, RejectReason: domain.RejectNoSetup},
		{Time: t0.Add(15 * time.Minute), SignalType: domain.SignalHold, RejectReason: domain.RejectVolumeFilter},
		{Time: t0.Add(30 * time.Minute), SignalType: domain.SignalEnterLong, EntryReason: domain.EntryWave2Break,
			Score: domain.Ptr(domain.Dec("0.8"))},
	}))

	counts, err := db.DecisionCount(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.SignalHold])
	assert.Equal(t, 1, counts[domain.SignalEnterLong])
}

func TestSQLiteStore_Stats(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTrade(ctx, "run", makeTrade("a", "2", t0)))
	require.NoError(t, db.SaveTrade(ctx, "run", makeTrade("b", "-1", t0.Add(time.Hour))))
	require.NoError(t, db.SaveTrade(ctx, "run", makeTrade("c", "3", t0.Add(24*time.Hour))))

	stats, err := db.Stats(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Trades)
	assert.Equal(t, 2, stats.Wins)
	assert.True(t, stats.NetPnL.Equal(domain.Dec("4")))
	assert.True(t, stats.Fees.Equal(domain.Dec("0.0906")))
	require.Len(t, stats.Dailies, 2)
	assert.Equal(t, 2, stats.Dailies[0].Trades)
	assert.True(t, stats.Dailies[0].PnL.Equal(domain.Dec("1")))
	assert.Equal(t, domain.UTCDay(t0), stats.StartDate)
	assert.Equal(t, domain.UTCDay(t0.Add(24*time.Hour)), stats.EndDate)
}
