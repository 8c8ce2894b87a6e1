package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. OpenTime is UTC.
type Candle struct {
	OpenTime time.Time       `json:"openTime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// OpenMs returns the open time in epoch milliseconds.
func (c Candle) OpenMs() int64 {
	return c.OpenTime.UnixMilli()
}

// ParseInterval converts a Bybit interval code ("1", "15", "60", "D", "W", "M") to a duration.
// Numeric codes are minutes. "M" is a 30-day month.
func ParseInterval(code string) (time.Duration, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "D":
		return 24 * time.Hour, nil
	case "W":
		return 7 * 24 * time.Hour, nil
	case "M":
		return 30 * 24 * time.Hour, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || !validMinutes[minutes] {
		return 0, fmt.Errorf("domain.ParseInterval: invalid interval %q", code)
	}
	return time.Duration(minutes) * time.Minute, nil
}

var validMinutes = map[int]bool{1: true, 3: true, 5: true, 15: true, 30: true, 60: true, 120: true, 240: true, 360: true, 720: true}

// MustInterval is ParseInterval for values already validated at config load.
func MustInterval(code string) time.Duration {
	d, err := ParseInterval(code)
	if err != nil {
		panic(err)
	}
	return d
}

// Resample aggregates candles into buckets of the given interval, keyed by bucket start.
// Input order does not matter; output is ascending.
func Resample(candles []Candle, interval time.Duration) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return nil
	}
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	step := interval.Milliseconds()
	bucketOf := func(c Candle) int64 { return c.OpenMs() / step * step }

	out := make([]Candle, 0, len(sorted)/2+1)
	cur := sorted[0]
	cur.OpenTime = time.UnixMilli(bucketOf(sorted[0])).UTC()
	for _, c := range sorted[1:] {
		b := bucketOf(c)
		if b != cur.OpenMs() {
			out = append(out, cur)
			cur = c
			cur.OpenTime = time.UnixMilli(b).UTC()
			continue
		}
		cur = cur.Extend(c)
	}
	return append(out, cur)
}

// Extend folds a later bar into c, keeping c's open time and open price.
func (c Candle) Extend(next Candle) Candle {
	if next.High.GreaterThan(c.High) {
		c.High = next.High
	}
	if next.Low.LessThan(c.Low) {
		c.Low = next.Low
	}
	c.Close = next.Close
	c.Volume = c.Volume.Add(next.Volume)
	return c
}

// SortAndDedupe orders candles ascending by open time, keeping the last occurrence of each time.
func SortAndDedupe(candles []Candle) []Candle {
	byTime := make(map[int64]Candle, len(candles))
	for _, c := range candles {
		byTime[c.OpenMs()] = c
	}
	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

// Closes extracts close prices.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Tail returns the last n candles (or all of them when fewer exist).
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 {
		return nil
	}
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
