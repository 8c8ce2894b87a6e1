package ports

import (
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Metrics records trader activity.
type Metrics interface {
	SignalEvaluated(signal domain.TradeSignal)
	TradeClosed(trade domain.TradeRecord)
	StepFailed()
	ObserveStep(d time.Duration)
	SetEquity(equity decimal.Decimal)
	SetKillSwitch(active bool)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) SignalEvaluated(domain.TradeSignal) {}
func (NopMetrics) TradeClosed(domain.TradeRecord)     {}
func (NopMetrics) StepFailed()                        {}
func (NopMetrics) ObserveStep(time.Duration)          {}
func (NopMetrics) SetEquity(decimal.Decimal)          {}
func (NopMetrics) SetKillSwitch(bool)                 {}
