package marketdata

import (
	"strings"
	"sync"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// Cache holds candle series in memory, keyed by symbol and interval.
// Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	series map[string][]domain.Candle
	max    int
}

// NewCache creates a cache that keeps at most max candles per series (0 = unbounded).
func NewCache(max int) *Cache {
	return &Cache{series: make(map[string][]domain.Candle), max: max}
}

func cacheKey(symbol, interval string) string {
	return strings.ToUpper(symbol) + "|" + interval
}

// Append merges candles into a series. Candles with an existing open time replace
// the cached bar.
func (c *Cache) Append(symbol, interval string, candles []domain.Candle) {
	if len(candles) == 0 {
		return
	}
	key := cacheKey(symbol, interval)

	c.mu.Lock()
	defer c.mu.Unlock()
	merged := make([]domain.Candle, 0, len(c.series[key])+len(candles))
	merged = append(merged, c.series[key]...)
	merged = domain.SortAndDedupe(append(merged, candles...))
	if c.max > 0 && len(merged) > c.max {
		merged = merged[len(merged)-c.max:]
	}
	c.series[key] = merged
}

// Recent returns a copy of the last limit candles of a series, ascending.
func (c *Cache) Recent(symbol, interval string, limit int) []domain.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tail := domain.Tail(c.series[cacheKey(symbol, interval)], limit)
	out := make([]domain.Candle, len(tail))
	copy(out, tail)
	return out
}

// Len returns the number of cached candles in a series.
func (c *Cache) Len(symbol, interval string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series[cacheKey(symbol, interval)])
}

// Clear drops every cached series.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[string][]domain.Candle)
}
