// Package marketdata serves candle history from the exchange, an in-memory cache
// fed by the kline stream, and CSV files.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// KlineFetcher is the exchange surface the service needs.
type KlineFetcher interface {
	Klines(ctx context.Context, interval string, start, end int64, limit int) ([]domain.Candle, error)
	KlinesPaged(ctx context.Context, interval string, start, end time.Time) ([]domain.Candle, error)
}

// Service implements ports.CandleSource for one symbol.
type Service struct {
	fetcher KlineFetcher
	cache   *Cache
	symbol  string
	now     func() time.Time
}

// NewService creates a Service. cache may be shared with a kline stream.
func NewService(fetcher KlineFetcher, cache *Cache, symbol string) *Service {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Service{fetcher: fetcher, cache: cache, symbol: symbol, now: time.Now}
}

// Cache returns the cache backing the service.
func (s *Service) Cache() *Cache {
	return s.cache
}

// RecentCandles refreshes the cache from the exchange and returns the last limit
// closed candles. The bar still forming is dropped. When the exchange call fails
// and the cache already holds enough candles, the cached series is served.
func (s *Service) RecentCandles(ctx context.Context, interval string, limit int) ([]domain.Candle, error) {
	step, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("marketdata.RecentCandles: %w", err)
	}
	fetched, err := s.fetcher.Klines(ctx, interval, 0, 0, limit+1)
	if err != nil {
		if cached := s.closed(interval, step, limit); len(cached) >= limit && limit > 0 {
			slog.Warn("kline refresh failed, serving cache", "interval", interval, "err", err)
			return cached, nil
		}
		return nil, fmt.Errorf("marketdata.RecentCandles: %w", err)
	}
	s.cache.Append(s.symbol, interval, fetched)
	return s.closed(interval, step, limit), nil
}

// closed returns the last limit cached candles whose bar has finished.
func (s *Service) closed(interval string, step time.Duration, limit int) []domain.Candle {
	candles := s.cache.Recent(s.symbol, interval, limit+1)
	now := s.now()
	n := len(candles)
	if n > 0 && candles[n-1].OpenTime.Add(step).After(now) {
		candles = candles[:n-1]
	}
	return domain.Tail(candles, limit)
}

// HistoricalRange pages the exchange for [start, end].
func (s *Service) HistoricalRange(ctx context.Context, interval string, start, end time.Time) ([]domain.Candle, error) {
	candles, err := s.fetcher.KlinesPaged(ctx, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("marketdata.HistoricalRange: %w", err)
	}
	return candles, nil
}

// OnStreamCandle returns a callback that stores confirmed stream candles.
func (s *Service) OnStreamCandle(interval string) func(domain.Candle) {
	return func(c domain.Candle) {
		s.cache.Append(s.symbol, interval, []domain.Candle{c})
	}
}
