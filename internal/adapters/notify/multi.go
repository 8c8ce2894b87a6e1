package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/ports"
)

// Multi fans every notification out to all notifiers. A failing notifier does
// not stop the others; the errors are joined.
type Multi []ports.Notifier

// NotifySignal implements ports.Notifier.
func (m Multi) NotifySignal(ctx context.Context, at domain.Candle, s domain.TradeSignal) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySignal(ctx, at, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyTrade implements ports.Notifier.
func (m Multi) NotifyTrade(ctx context.Context, t domain.TradeRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyTrade(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
