package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RegimeFeatures is the per-bar feature vector. Each field stays nil until enough history exists.
type RegimeFeatures struct {
	TrendSlope *decimal.Decimal `json:"trendSlope,omitempty"`
	MASpread   *decimal.Decimal `json:"maSpread,omitempty"`
	ATRPercent *decimal.Decimal `json:"atrPercent,omitempty"`
	RelVolume  *decimal.Decimal `json:"relVolume,omitempty"`
}

type TrendBucket string

const (
	TrendUpStrong   TrendBucket = "UP_STRONG"
	TrendUpWeak     TrendBucket = "UP_WEAK"
	TrendFlat       TrendBucket = "FLAT"
	TrendDownWeak   TrendBucket = "DOWN_WEAK"
	TrendDownStrong TrendBucket = "DOWN_STRONG"
)

type VolBucket string

const (
	VolLow  VolBucket = "LOW"
	VolMid  VolBucket = "MID"
	VolHigh VolBucket = "HIGH"
)

type VolumeBucket string

const (
	VolumeLow    VolumeBucket = "LOW"
	VolumeNormal VolumeBucket = "NORMAL"
	VolumeHigh   VolumeBucket = "HIGH"
)

var (
	trendBuckets  = []TrendBucket{TrendUpStrong, TrendUpWeak, TrendFlat, TrendDownWeak, TrendDownStrong}
	volBuckets    = []VolBucket{VolLow, VolMid, VolHigh}
	volumeBuckets = []VolumeBucket{VolumeLow, VolumeNormal, VolumeHigh}
)

// RegimeBucketKey is the categorical regime label.
type RegimeBucketKey struct {
	Trend  TrendBucket  `json:"trend"`
	Vol    VolBucket    `json:"vol"`
	Volume VolumeBucket `json:"volume"`
}

// String renders the key as TREND|VOL|VOLUME.
func (k RegimeBucketKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Trend, k.Vol, k.Volume)
}

// ParseBucketKey parses "TREND|VOL|VOLUME" (also ',' or ';' separated, case-insensitive).
func ParseBucketKey(raw string) (RegimeBucketKey, bool) {
	parts := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '|' || r == ',' || r == ';'
	})
	tokens := make([]string, 0, 3)
	for _, p := range parts {
		if t := strings.ToUpper(strings.TrimSpace(p)); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) != 3 {
		return RegimeBucketKey{}, false
	}
	key := RegimeBucketKey{
		Trend:  TrendBucket(tokens[0]),
		Vol:    VolBucket(tokens[1]),
		Volume: VolumeBucket(tokens[2]),
	}
	if !contains(trendBuckets, key.Trend) || !contains(volBuckets, key.Vol) || !contains(volumeBuckets, key.Volume) {
		return RegimeBucketKey{}, false
	}
	return key, true
}

// ParseBucketSet parses a list of bucket tokens, dropping unparsable entries.
func ParseBucketSet(raw []string) map[RegimeBucketKey]struct{} {
	out := make(map[RegimeBucketKey]struct{}, len(raw))
	for _, r := range raw {
		if key, ok := ParseBucketKey(r); ok {
			out[key] = struct{}{}
		}
	}
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// RegimeThresholds are the vol and volume bucket boundaries.
type RegimeThresholds struct {
	ATRLow     decimal.Decimal `json:"atrLow" yaml:"atr_low"`
	ATRHigh    decimal.Decimal `json:"atrHigh" yaml:"atr_high"`
	VolumeLow  decimal.Decimal `json:"volumeLow" yaml:"volume_low"`
	VolumeHigh decimal.Decimal `json:"volumeHigh" yaml:"volume_high"`
}

// Configured reports whether every boundary is positive.
func (t RegimeThresholds) Configured() bool {
	return t.ATRLow.IsPositive() && t.ATRHigh.IsPositive() &&
		t.VolumeLow.IsPositive() && t.VolumeHigh.IsPositive()
}

// RegimeGate blocks entries by regime bucket.
// A non-empty allow-list restricts to its members; the block-list then excludes further.
type RegimeGate struct {
	Thresholds         RegimeThresholds
	Blocked            map[RegimeBucketKey]struct{}
	Allowed            map[RegimeBucketKey]struct{}
	MinTradesPerBucket int
}

// IsBlocked reports whether entries in bucket are disallowed.
func (g *RegimeGate) IsBlocked(bucket RegimeBucketKey) bool {
	if len(g.Allowed) > 0 {
		if _, ok := g.Allowed[bucket]; !ok {
			return true
		}
	}
	_, blocked := g.Blocked[bucket]
	return blocked
}

// BlockedKeys returns the blocked buckets in display order.
func (g *RegimeGate) BlockedKeys() []string {
	keys := make([]string, 0, len(g.Blocked))
	for _, t := range trendBuckets {
		for _, v := range volBuckets {
			for _, vo := range volumeBuckets {
				k := RegimeBucketKey{Trend: t, Vol: v, Volume: vo}
				if _, ok := g.Blocked[k]; ok {
					keys = append(keys, k.String())
				}
			}
		}
	}
	return keys
}

// Bucket maps features to a regime bucket. Missing features count as zero.
func Bucket(f RegimeFeatures, th RegimeThresholds, weakSlope, strongSlope decimal.Decimal) RegimeBucketKey {
	slope := orZero(f.TrendSlope)
	spread := orZero(f.MASpread)

	var trend TrendBucket
	switch {
	case !spread.IsNegative() && slope.GreaterThanOrEqual(strongSlope):
		trend = TrendUpStrong
	case !spread.IsNegative() && slope.GreaterThanOrEqual(weakSlope):
		trend = TrendUpWeak
	case !spread.IsPositive() && slope.LessThanOrEqual(strongSlope.Neg()):
		trend = TrendDownStrong
	case !spread.IsPositive() && slope.LessThanOrEqual(weakSlope.Neg()):
		trend = TrendDownWeak
	default:
		trend = TrendFlat
	}

	atr := orZero(f.ATRPercent)
	vol := VolHigh
	switch {
	case atr.LessThan(th.ATRLow):
		vol = VolLow
	case atr.LessThan(th.ATRHigh):
		vol = VolMid
	}

	rel := orZero(f.RelVolume)
	volume := VolumeHigh
	switch {
	case rel.LessThan(th.VolumeLow):
		volume = VolumeLow
	case rel.LessThan(th.VolumeHigh):
		volume = VolumeNormal
	}

	return RegimeBucketKey{Trend: trend, Vol: vol, Volume: volume}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return Zero
	}
	return *d
}
