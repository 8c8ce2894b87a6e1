package risk_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func params() risk.Params {
	return risk.Params{
		RiskPerTrade:         domain.Dec("0.01"),
		DailyMaxDD:           domain.Dec("0.03"),
		MaxConsecutiveLosses: 3,
		CooldownMinutes:      60,
		MinQty:               domain.Dec("0"),
		MaxQty:               domain.Dec("1000000"),
	}
}

func TestManager_ComputeOrderQty(t *testing.T) {
	p := params()
	p.MinQty = domain.Dec("0.1")
	p.MaxQty = domain.Dec("5")
	m := risk.New(p)

	qty := m.ComputeOrderQty(domain.Dec("1000"), domain.Dec("100"), domain.Dec("90"), domain.Dec("0.01"))
	assert.Equal(t, "1.00000000", qty.StringFixed(8))

	capped := m.ComputeOrderQty(domain.Dec("1000"), domain.Dec("100"), domain.Dec("99.9"), domain.Dec("0.01"))
	assert.True(t, capped.Equal(domain.Dec("5")), "qty %s", capped)
}

func TestManager_ComputeOrderQty_Degenerate(t *testing.T) {
	m := risk.New(params())

	assert.True(t, m.ComputeOrderQty(domain.Zero, domain.Dec("100"), domain.Dec("90"), domain.Dec("0.01")).IsZero())
	assert.True(t, m.ComputeOrderQty(domain.Dec("1000"), domain.Dec("100"), domain.Dec("100"), domain.Dec("0.01")).IsZero())
}

func TestManager_ComputeOrderQty_Truncates(t *testing.T) {
	m := risk.New(params())
	qty := m.ComputeOrderQty(domain.Dec("1000"), domain.Dec("100"), domain.Dec("97"), domain.Dec("0.01"))
	assert.Equal(t, "3.33333333", qty.String())
}

func TestManager_ComputeOrderQty_NeverRoundsUpAcrossStep(t *testing.T) {
	m := risk.New(params())
	qty := m.ComputeOrderQty(domain.Dec("0.99999999999999999"), domain.Dec("2"), domain.Dec("1"), domain.Dec("1"))
	assert.Equal(t, "0.99999999", qty.String())
}

func TestManager_KillSwitchOnDailyDrawdown(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)

	m.UpdateEquity(domain.Dec("980"), noon.Add(time.Minute))
	assert.True(t, m.CanEnter(noon.Add(time.Minute)))

	m.UpdateEquity(domain.Dec("965"), noon.Add(2*time.Minute))
	assert.True(t, m.KillSwitchActive())
	assert.False(t, m.CanEnter(noon.Add(3*time.Minute)))
	assert.Equal(t, domain.RejectRiskKillSwitch, m.EntryBlockReason(noon.Add(3*time.Minute)))
}

func TestManager_NewDayClearsKillSwitch(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)
	m.UpdateEquity(domain.Dec("900"), noon)
	require.True(t, m.KillSwitchActive())

	tomorrow := noon.Add(13 * time.Hour)
	assert.True(t, m.CanEnter(tomorrow))
	assert.Equal(t, domain.UTCDay(tomorrow), m.Snapshot().CurrentDay)
	assert.Nil(t, m.Snapshot().DailyStartEquity)
}

func TestManager_CooldownAfterLossStreak(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)

	for i := 0; i < 3; i++ {
		m.RecordTradeResult(domain.Dec("-5"), noon)
	}
	until := m.Snapshot().CooldownUntil
	require.NotNil(t, until)
	assert.Equal(t, noon.Add(time.Hour), *until)

	assert.False(t, m.CanEnter(until.Add(-time.Second)))
	assert.Equal(t, domain.RejectCooldown, m.EntryBlockReason(until.Add(-time.Second)))
	assert.True(t, m.CanEnter(until.Add(time.Second)))
}

func TestManager_WinResetsLossStreak(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)

	m.RecordTradeResult(domain.Dec("-5"), noon)
	m.RecordTradeResult(domain.Dec("-5"), noon)
	m.RecordTradeResult(domain.Dec("10"), noon)
	m.RecordTradeResult(domain.Dec("-5"), noon)

	assert.Equal(t, 1, m.Snapshot().ConsecutiveLosses)
	assert.Nil(t, m.Snapshot().CooldownUntil)
}

func TestManager_KillSwitchPrecedesCooldown(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)
	for i := 0; i < 3; i++ {
		m.RecordTradeResult(domain.Dec("-5"), noon)
	}
	m.UpdateEquity(domain.Dec("900"), noon)

	assert.Equal(t, domain.RejectRiskKillSwitch, m.EntryBlockReason(noon))
}

func TestManager_SnapshotRestore(t *testing.T) {
	m := risk.New(params())
	m.ResetForBacktest(domain.Dec("1000"), noon)
	m.RecordTradeResult(domain.Dec("-5"), noon)
	snap := m.Snapshot()

	other := risk.New(params())
	other.Restore(snap)
	assert.Equal(t, snap, other.Snapshot())
}
