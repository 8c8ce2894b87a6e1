package indicators_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flatBar(i int, price float64) domain.Candle {
	p := decimal.NewFromFloat(price)
	return domain.Candle{OpenTime: t0.Add(time.Duration(i) * time.Minute), Open: p, High: p, Low: p, Close: p, Volume: domain.One}
}

func rangeBar(i int, high, low, last float64) domain.Candle {
	return domain.Candle{
		OpenTime: t0.Add(time.Duration(i) * time.Minute),
		Open:     decimal.NewFromFloat(last),
		High:     decimal.NewFromFloat(high),
		Low:      decimal.NewFromFloat(low),
		Close:    decimal.NewFromFloat(last),
		Volume:   domain.One,
	}
}

// --- ATR ---

func TestATR_SimpleAverageOfTrueRange(t *testing.T) {
	candles := []domain.Candle{
		rangeBar(0, 11, 9, 10),  // TR 2
		rangeBar(1, 12, 10, 11), // TR 2
		rangeBar(2, 15, 11, 14), // TR 4
		rangeBar(3, 14, 13, 13), // TR 1
	}
	series := indicators.ATR(candles, 2)
	require.Len(t, series, 4)
	assert.Nil(t, series[0])
	require.NotNil(t, series[1])
	assert.True(t, series[1].Equal(domain.Dec("2")))
	assert.True(t, series[2].Equal(domain.Dec("3")))
	assert.True(t, series[3].Equal(domain.Dec("2.5")))
	assert.True(t, indicators.LastATR(candles, 2).Equal(domain.Dec("2.5")))
}

func TestATR_NotEnoughBars(t *testing.T) {
	series := indicators.ATR([]domain.Candle{rangeBar(0, 2, 1, 1)}, 14)
	require.Len(t, series, 1)
	assert.Nil(t, indicators.LastDefined(series))
	assert.Nil(t, indicators.ATR(nil, 14))
}

// --- Efficiency Ratio ---

func TestEfficiencyRatio_MonotonicSeries(t *testing.T) {
	candles := make([]domain.Candle, 21)
	for i := range candles {
		candles[i] = flatBar(i, float64(i+1))
	}
	er := indicators.EfficiencyRatio(candles, 20)
	require.NotNil(t, er)
	assert.True(t, er.GreaterThanOrEqual(domain.Dec("0.95")))
}

func TestEfficiencyRatio_ChoppySeries(t *testing.T) {
	candles := make([]domain.Candle, 21)
	for i := range candles {
		candles[i] = flatBar(i, float64(1+i%2))
	}
	er := indicators.EfficiencyRatio(candles, 20)
	require.NotNil(t, er)
	assert.True(t, er.LessThan(domain.Dec("0.5")))
}

func TestEfficiencyRatio_Edges(t *testing.T) {
	candles := make([]domain.Candle, 5)
	for i := range candles {
		candles[i] = flatBar(i, 100)
	}
	assert.Nil(t, indicators.EfficiencyRatio(candles, 5))
	er := indicators.EfficiencyRatio(candles, 4)
	require.NotNil(t, er)
	assert.True(t, er.IsZero())
}

// --- ADX ---

func TestADX_WarmUp(t *testing.T) {
	candles := make([]domain.Candle, 27)
	for i := range candles {
		candles[i] = rangeBar(i, float64(101+i), float64(99+i), float64(100+i))
	}
	assert.Nil(t, indicators.ADX(candles, 14))

	candles = append(candles, rangeBar(27, 128, 126, 127))
	adx := indicators.ADX(candles, 14)
	require.NotNil(t, adx)
	assert.True(t, adx.GreaterThan(domain.Dec("50")), "steady uptrend should have a strong ADX, got %s", adx)
}

// --- Bandwidth ---

func TestBandwidth_FlatSeriesIsZero(t *testing.T) {
	candles := make([]domain.Candle, 8)
	for i := range candles {
		candles[i] = flatBar(i, 100)
	}
	series := indicators.Bandwidth(candles, 5, 2)
	require.Len(t, series, 8)
	assert.Nil(t, series[3])
	require.NotNil(t, series[4])
	assert.True(t, series[4].IsZero())
	assert.True(t, series[7].IsZero())
}

func TestBandwidth_PopulationStdDev(t *testing.T) {
	// closes 1..5: mean 3, population stddev sqrt(2)
	candles := make([]domain.Candle, 5)
	for i := range candles {
		candles[i] = flatBar(i, float64(i+1))
	}
	series := indicators.Bandwidth(candles, 5, 2)
	require.NotNil(t, series[4])
	// (4*sqrt(2))/3 = 1.88561808...
	assert.InDelta(t, 1.88561808, series[4].InexactFloat64(), 1e-6)
}
