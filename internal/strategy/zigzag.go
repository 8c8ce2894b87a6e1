package strategy

import (
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/shopspring/decimal"
)

// ZigZag extracts alternating swing pivots from closing prices.
// A pivot is committed once price reverses past the threshold from the running extreme;
// the leg still in progress at the end is emitted as a trailing pivot.
func ZigZag(candles []domain.Candle, p ZigZagParams) []domain.SwingPoint {
	if len(candles) < 2 {
		return nil
	}
	var atr []*decimal.Decimal
	if p.Mode == ZigZagATR {
		atr = indicators.ATR(candles, p.ATRPeriod)
	}
	threshold := func(i int, base decimal.Decimal) decimal.Decimal {
		if p.Mode == ZigZagATR && i < len(atr) && atr[i] != nil {
			return atr[i].Mul(p.ATRMultiplier)
		}
		return base.Mul(p.PercentThreshold)
	}

	var (
		swings    []domain.SwingPoint
		direction domain.SwingType
		pivot     = domain.SwingPoint{Time: candles[0].OpenTime, Price: candles[0].Close}
		extreme   = pivot
	)

	for i := 1; i < len(candles); i++ {
		c := candles[i]
		price := c.Close

		switch direction {
		case "":
			thr := threshold(i, pivot.Price)
			if price.GreaterThanOrEqual(pivot.Price.Add(thr)) {
				swings = append(swings, domain.SwingPoint{Time: pivot.Time, Price: pivot.Price, Type: domain.SwingLow})
				direction = domain.SwingHigh
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			} else if price.LessThanOrEqual(pivot.Price.Sub(thr)) {
				swings = append(swings, domain.SwingPoint{Time: pivot.Time, Price: pivot.Price, Type: domain.SwingHigh})
				direction = domain.SwingLow
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			}

		case domain.SwingHigh:
			if price.GreaterThan(extreme.Price) {
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			}
			if price.LessThanOrEqual(extreme.Price.Sub(threshold(i, extreme.Price))) {
				swings = append(swings, domain.SwingPoint{Time: extreme.Time, Price: extreme.Price, Type: domain.SwingHigh})
				direction = domain.SwingLow
				pivot = extreme
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			}

		case domain.SwingLow:
			if price.LessThan(extreme.Price) {
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			}
			if price.GreaterThanOrEqual(extreme.Price.Add(threshold(i, extreme.Price))) {
				swings = append(swings, domain.SwingPoint{Time: extreme.Time, Price: extreme.Price, Type: domain.SwingLow})
				direction = domain.SwingHigh
				pivot = extreme
				extreme = domain.SwingPoint{Time: c.OpenTime, Price: price}
			}
		}
	}

	if direction != "" && (len(swings) == 0 || swings[len(swings)-1].Type != direction) {
		swings = append(swings, domain.SwingPoint{Time: extreme.Time, Price: extreme.Price, Type: direction})
	}
	return swings
}
