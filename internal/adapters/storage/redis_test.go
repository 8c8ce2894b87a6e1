package storage_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a live server: REDIS_ADDR=localhost:6379 go test ./...
func openRedis(t *testing.T, symbol string) *storage.RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := storage.NewRedisStore(context.Background(), addr, "", 15, symbol)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_Key(t *testing.T) {
	s := openRedis(t, "btcusdt")
	assert.Equal(t, "wavebot:BTCUSDT:risk", s.Key("risk"))
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := openRedis(t, "T"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	ctx := context.Background()

	rs, err := s.LoadRiskState(ctx)
	require.NoError(t, err)
	assert.Nil(t, rs)

	require.NoError(t, s.SaveRiskState(ctx, domain.RiskState{ConsecutiveLosses: 2}))
	require.NoError(t, s.SavePortfolio(ctx, domain.PortfolioSnapshot{
		Equity:   domain.Dec("1234.5"),
		Position: domain.RecordOf(domain.Flat{}),
	}))

	rs, err = s.LoadRiskState(ctx)
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, 2, rs.ConsecutiveLosses)

	ps, err := s.LoadPortfolio(ctx)
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.True(t, ps.Equity.Equal(domain.Dec("1234.5")))
	assert.Equal(t, domain.SideFlat, ps.Position.Position().Side())
}
