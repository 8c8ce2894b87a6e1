package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	klinePath     = "/v5/market/kline"
	maxKlineLimit = 1000
)

type klineResult struct {
	List [][]string `json:"list"`
}

// Klines fetches one page of candles. Zero start or end and non-positive limit are omitted.
// Malformed rows are skipped; the result is ascending.
func (c *Client) Klines(ctx context.Context, interval string, start, end int64, limit int) ([]domain.Candle, error) {
	params := [][2]string{
		{"category", c.cfg.Category},
		{"symbol", c.cfg.Symbol},
		{"interval", interval},
	}
	if start > 0 {
		params = append(params, [2]string{"start", strconv.FormatInt(start, 10)})
	}
	if end > 0 {
		params = append(params, [2]string{"end", strconv.FormatInt(end, 10)})
	}
	if limit > 0 {
		params = append(params, [2]string{"limit", strconv.Itoa(limit)})
	}

	var res klineResult
	if err := c.get(ctx, klinePath, params, &res); err != nil {
		return nil, fmt.Errorf("bybit.Klines: %w", err)
	}
	candles := make([]domain.Candle, 0, len(res.List))
	for _, row := range res.List {
		if c, ok := parseKlineRow(row); ok {
			candles = append(candles, c)
		}
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

// KlinesPaged walks backwards from end to start in pages of up to 1000 candles.
// The result is deduplicated and ascending.
func (c *Client) KlinesPaged(ctx context.Context, interval string, start, end time.Time) ([]domain.Candle, error) {
	step, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("bybit.KlinesPaged: %w", err)
	}
	stepMs := step.Milliseconds()
	from := start.UnixMilli() - start.UnixMilli()%stepMs
	cursor := end.UnixMilli() - end.UnixMilli()%stepMs
	if cursor < from {
		return nil, nil
	}

	var all []domain.Candle
	for cursor >= from {
		windowStart := cursor - stepMs*(maxKlineLimit-1)
		if windowStart < from {
			windowStart = from
		}
		batch, err := c.Klines(ctx, interval, windowStart, cursor, maxKlineLimit)
		if err != nil {
			return nil, fmt.Errorf("bybit.KlinesPaged: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		next := batch[0].OpenMs() - stepMs
		if next >= cursor {
			break
		}
		cursor = next
	}
	return domain.SortAndDedupe(all), nil
}

// parseKlineRow reads [start, open, high, low, close, volume, ...].
func parseKlineRow(row []string) (domain.Candle, bool) {
	if len(row) < 6 {
		return domain.Candle{}, false
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Candle{}, false
	}
	var vals [5]decimal.Decimal
	for i := range vals {
		d, err := decimal.NewFromString(row[i+1])
		if err != nil {
			return domain.Candle{}, false
		}
		vals[i] = d
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(ms).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, true
}
