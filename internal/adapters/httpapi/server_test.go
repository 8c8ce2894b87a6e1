package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/adapters/httpapi"
	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/application/trader"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus trader.Status

func (s staticStatus) Status() trader.Status { return trader.Status(s) }

type fakeStats struct {
	gotRunID string
	err      error
}

func (f *fakeStats) Stats(_ context.Context, runID string) (storage.LedgerStats, error) {
	f.gotRunID = runID
	if f.err != nil {
		return storage.LedgerStats{}, f.err
	}
	return storage.LedgerStats{Trades: 3, Wins: 2, NetPnL: domain.Dec("12.5")}, nil
}

func status() staticStatus {
	return staticStatus{
		Mode:           trader.ModePaper,
		Symbol:         "BTCUSDT",
		RunID:          "paper-1",
		LastCandleTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Position:       domain.PositionRecord{Side: domain.SideFlat},
		Equity:         domain.Dec("1000"),
		LastSignal:     domain.SignalHold,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	srv := httpapi.NewServer(":0", status(), nil, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Status(t *testing.T) {
	srv := httpapi.NewServer(":0", status(), nil, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got trader.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, trader.ModePaper, got.Mode)
	assert.Equal(t, domain.SignalHold, got.LastSignal)
	assert.True(t, got.Equity.Equal(domain.Dec("1000")))
}

func TestServer_StatsDefaultsToCurrentRun(t *testing.T) {
	stats := &fakeStats{}
	srv := httpapi.NewServer(":0", status(), stats, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paper-1", stats.gotRunID)

	var got storage.LedgerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Trades)
	assert.True(t, got.NetPnL.Equal(domain.Dec("12.5")))

	get(t, srv.Handler(), "/stats?run_id=backtest-7")
	assert.Equal(t, "backtest-7", stats.gotRunID)
}

func TestServer_StatsError(t *testing.T) {
	srv := httpapi.NewServer(":0", status(), &fakeStats{err: errors.New("db locked")}, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db locked")
}

func TestServer_StatsDisabledWithoutSource(t *testing.T) {
	srv := httpapi.NewServer(":0", status(), nil, prometheus.NewRegistry())

	rec := get(t, srv.Handler(), "/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "wavebot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	srv := httpapi.NewServer(":0", status(), nil, reg)

	rec := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wavebot_test_total 1")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := httpapi.NewServer("127.0.0.1:0", status(), nil, prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
