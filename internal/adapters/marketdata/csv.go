package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// LoadCSV reads candles from a file of `openTimeMs,open,high,low,close[,volume]` rows.
func LoadCSV(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSV: %w", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSV: %s: %w", path, err)
	}
	return candles, nil
}

// ReadCSV parses candle rows. Blank rows, headers and rows with fewer than five
// fields are skipped. A missing or malformed volume reads as zero. The result is
// ascending by open time.
func ReadCSV(r io.Reader) ([]domain.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var candles []domain.Candle
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if c, ok := parseRow(rec); ok {
			candles = append(candles, c)
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

func parseRow(rec []string) (domain.Candle, bool) {
	if len(rec) < 5 {
		return domain.Candle{}, false
	}
	ts := strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff"))
	if ts == "" || ts[0] < '0' || ts[0] > '9' {
		return domain.Candle{}, false
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.Candle{}, false
	}

	var ohlc [4]decimal.Decimal
	for i := range ohlc {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
		if err != nil {
			return domain.Candle{}, false
		}
		ohlc[i] = v
	}
	volume := domain.Zero
	if len(rec) > 5 {
		if v, err := decimal.NewFromString(strings.TrimSpace(rec[5])); err == nil {
			volume = v
		}
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(ms).UTC(),
		Open:     ohlc[0],
		High:     ohlc[1],
		Low:      ohlc[2],
		Close:    ohlc[3],
		Volume:   volume,
	}, true
}

// WriteCSV writes candles in the format ReadCSV accepts, without a header.
func WriteCSV(w io.Writer, candles []domain.Candle) error {
	cw := csv.NewWriter(w)
	for _, c := range candles {
		rec := []string{
			strconv.FormatInt(c.OpenMs(), 10),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("marketdata.WriteCSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("marketdata.WriteCSV: flush: %w", err)
	}
	return nil
}

// SaveCSV writes candles to path, creating or truncating the file.
func SaveCSV(path string, candles []domain.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("marketdata.SaveCSV: %w", err)
	}
	if err := WriteCSV(f, candles); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("marketdata.SaveCSV: close: %w", err)
	}
	return nil
}

// FetchFileName is the conventional name for a fetched history file.
func FetchFileName(symbol, interval string, days int) string {
	return fmt.Sprintf("bybit_%s_%s_%dd.csv", strings.ToLower(symbol), interval, days)
}
