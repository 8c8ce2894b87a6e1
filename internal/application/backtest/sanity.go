package backtest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// ErrSanityCheck marks candle input that fails integrity validation.
var ErrSanityCheck = errors.New("backtest sanity checks failed")

// SanityError lists every integrity issue found in a candle series.
type SanityError struct {
	Issues []string
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSanityCheck, strings.Join(e.Issues, "; "))
}

func (e *SanityError) Unwrap() error { return ErrSanityCheck }

// Validate checks that candles are strictly ascending, spaced by whole intervals
// without gaps, and aligned to interval boundaries. It returns all issues found.
func Validate(candles []domain.Candle, interval time.Duration) []string {
	if len(candles) == 0 {
		return []string{"No candles provided"}
	}
	step := interval.Milliseconds()
	if step <= 0 {
		return []string{fmt.Sprintf("invalid interval %s", interval)}
	}

	var issues []string
	for i := 1; i < len(candles); i++ {
		prev, curr := candles[i-1].OpenMs(), candles[i].OpenMs()
		delta := curr - prev
		switch {
		case delta <= 0:
			issues = append(issues, fmt.Sprintf("candle order not strictly ascending at index %d", i))
		case delta%step != 0:
			issues = append(issues, fmt.Sprintf("candle gap misaligned at index %d: delta=%d expected multiple of %d", i, delta, step))
		case delta != step:
			issues = append(issues, fmt.Sprintf("candle gap at index %d: %d bars missing", i, delta/step-1))
		}
	}
	for _, c := range candles {
		if c.OpenMs()%step != 0 {
			issues = append(issues, fmt.Sprintf("candle not aligned to interval boundary at %d", c.OpenMs()))
		}
	}
	return issues
}

// ValidateOrError wraps Validate's issues in a *SanityError.
func ValidateOrError(candles []domain.Candle, interval time.Duration) error {
	if issues := Validate(candles, interval); len(issues) > 0 {
		return &SanityError{Issues: issues}
	}
	return nil
}
