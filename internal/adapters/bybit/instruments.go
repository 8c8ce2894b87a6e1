package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	instrumentsPath = "/v5/market/instruments-info"
	instrumentTTL   = 10 * time.Minute
)

type instrumentResult struct {
	List []instrumentInfo `json:"list"`
}

type instrumentInfo struct {
	Symbol        string `json:"symbol"`
	LotSizeFilter struct {
		MinOrderQty      string `json:"minOrderQty"`
		MaxOrderQty      string `json:"maxOrderQty"`
		MaxMktOrderQty   string `json:"maxMktOrderQty"`
		QtyStep          string `json:"qtyStep"`
		BasePrecision    string `json:"basePrecision"`
		MinNotionalValue string `json:"minNotionalValue"`
		MinOrderAmt      string `json:"minOrderAmt"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
		MinPrice string `json:"minPrice"`
		MaxPrice string `json:"maxPrice"`
	} `json:"priceFilter"`
}

// InstrumentFilters fetches the trading rules for the configured symbol.
// It returns nil when the exchange does not list the symbol.
func (c *Client) InstrumentFilters(ctx context.Context) (*domain.InstrumentFilters, error) {
	var res instrumentResult
	params := [][2]string{{"category", c.cfg.Category}, {"symbol", c.cfg.Symbol}}
	if err := c.get(ctx, instrumentsPath, params, &res); err != nil {
		return nil, fmt.Errorf("bybit.InstrumentFilters: %w", err)
	}
	if len(res.List) == 0 {
		return nil, nil
	}
	info := res.List[0]
	lot := info.LotSizeFilter
	// spot reports basePrecision and minOrderAmt where linear reports qtyStep and minNotionalValue
	step := firstNonEmpty(lot.QtyStep, lot.BasePrecision)
	notional := firstNonEmpty(lot.MinNotionalValue, lot.MinOrderAmt)
	return &domain.InstrumentFilters{
		MinOrderQty:       optDecimal(lot.MinOrderQty),
		MaxOrderQty:       optDecimal(lot.MaxOrderQty),
		MaxMarketOrderQty: optDecimal(lot.MaxMktOrderQty),
		QtyStep:           optDecimal(step),
		MinNotional:       optDecimal(notional),
		TickSize:          optDecimal(info.PriceFilter.TickSize),
		MinPrice:          optDecimal(info.PriceFilter.MinPrice),
		MaxPrice:          optDecimal(info.PriceFilter.MaxPrice),
	}, nil
}

// Instruments caches InstrumentFilters for ten minutes.
type Instruments struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	filters   *domain.InstrumentFilters
	fetchedAt time.Time
}

// NewInstruments wraps client with a filter cache.
func NewInstruments(client *Client) *Instruments {
	return &Instruments{client: client, ttl: instrumentTTL, now: time.Now}
}

// Filters returns cached filters, refreshing them once the TTL elapses.
func (in *Instruments) Filters(ctx context.Context) (*domain.InstrumentFilters, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.fetchedAt.IsZero() && in.now().Sub(in.fetchedAt) <= in.ttl {
		return in.filters, nil
	}
	f, err := in.client.InstrumentFilters(ctx)
	if err != nil {
		return nil, err
	}
	in.filters = f
	in.fetchedAt = in.now()
	return f, nil
}

func optDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
