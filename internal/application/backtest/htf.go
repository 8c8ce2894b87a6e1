package backtest

import (
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// HTFView serves the higher-timeframe window visible at each base bar.
// Completed buckets come from the full resample; the bucket holding the
// current bar is rebuilt from the base bars seen so far.
type HTFView struct {
	buckets  []domain.Candle
	idx      int
	lookback int
}

// NewHTFView resamples candles once. lookback caps the window length; zero means unbounded.
func NewHTFView(candles []domain.Candle, interval time.Duration, lookback int) *HTFView {
	return &HTFView{buckets: domain.Resample(candles, interval), lookback: lookback}
}

// Advance moves the view to bar and returns the window ending at its bucket.
// Bars must be fed in ascending order. The returned slice aliases internal state
// and is only valid until the next call.
func (v *HTFView) Advance(bar domain.Candle) []domain.Candle {
	opened := false
	for v.idx < len(v.buckets) && !v.buckets[v.idx].OpenTime.After(bar.OpenTime) {
		v.idx++
		opened = true
	}
	if v.idx == 0 {
		return nil
	}
	cur := &v.buckets[v.idx-1]
	if opened {
		start := cur.OpenTime
		*cur = bar
		cur.OpenTime = start
	} else {
		*cur = cur.Extend(bar)
	}

	from := 0
	if v.lookback > 0 && v.idx > v.lookback {
		from = v.idx - v.lookback
	}
	return v.buckets[from:v.idx]
}
