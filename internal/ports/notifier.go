package ports

import (
	"context"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// Notifier publishes trading events to the operator or downstream consumers.
type Notifier interface {
	// NotifySignal reports an entry signal produced by the strategy.
	NotifySignal(ctx context.Context, at domain.Candle, signal domain.TradeSignal) error

	// NotifyTrade reports a closed trade.
	NotifyTrade(ctx context.Context, trade domain.TradeRecord) error
}
