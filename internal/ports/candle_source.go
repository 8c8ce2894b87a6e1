package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// CandleSource provides OHLCV history for the configured instrument.
type CandleSource interface {
	// RecentCandles returns up to limit closed candles, ascending by open time.
	RecentCandles(ctx context.Context, interval string, limit int) ([]domain.Candle, error)

	// HistoricalRange returns every candle with open time in [start, end], ascending
	// and deduplicated. Implementations page through the exchange as needed.
	HistoricalRange(ctx context.Context, interval string, start, end time.Time) ([]domain.Candle, error)
}
