package ports

import (
	"context"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// OrderSink places market orders on the exchange.
type OrderSink interface {
	// PlaceMarketOrder submits a market order and returns the exchange order ID.
	// side is BUY for SideLong and SELL for SideShort.
	PlaceMarketOrder(ctx context.Context, side domain.Side, qty decimal.Decimal) (string, error)
}

// InstrumentProvider returns the exchange trading rules for the instrument.
type InstrumentProvider interface {
	Filters(ctx context.Context) (*domain.InstrumentFilters, error)
}
