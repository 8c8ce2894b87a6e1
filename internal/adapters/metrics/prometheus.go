// Package metrics records trader activity in Prometheus.
package metrics

import (
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	signals    *prometheus.CounterVec
	trades     *prometheus.CounterVec
	pnl        prometheus.Gauge
	errors     prometheus.Counter
	equity     prometheus.Gauge
	killSwitch prometheus.Gauge
	step       prometheus.Histogram
}

// New registers the wavebot collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, symbol string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := prometheus.Labels{"symbol": symbol}
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "wavebot_signals_total",
				Help:        "Strategy evaluations by signal type and reject reason",
				ConstLabels: labels,
			},
			[]string{"type", "reason"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "wavebot_trades_total",
				Help:        "Closed trades by side and exit reason",
				ConstLabels: labels,
			},
			[]string{"side", "exit_reason"},
		),
		pnl: f.NewGauge(prometheus.GaugeOpts{
			Name:        "wavebot_realized_pnl",
			Help:        "Cumulative realized PnL since start, in quote currency",
			ConstLabels: labels,
		}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name:        "wavebot_step_errors_total",
			Help:        "Trader steps that returned an error",
			ConstLabels: labels,
		}),
		equity: f.NewGauge(prometheus.GaugeOpts{
			Name:        "wavebot_equity",
			Help:        "Marked-to-market equity",
			ConstLabels: labels,
		}),
		killSwitch: f.NewGauge(prometheus.GaugeOpts{
			Name:        "wavebot_kill_switch",
			Help:        "1 while the daily drawdown kill switch is active",
			ConstLabels: labels,
		}),
		step: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "wavebot_step_duration_seconds",
			Help:        "Duration of one trader step",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
	}
}

// SignalEvaluated counts a strategy decision.
func (r *Recorder) SignalEvaluated(s domain.TradeSignal) {
	r.signals.WithLabelValues(string(s.Type), string(s.RejectReason)).Inc()
}

// TradeClosed counts a closed trade.
func (r *Recorder) TradeClosed(t domain.TradeRecord) {
	r.trades.WithLabelValues(string(t.Side), string(t.ExitReason)).Inc()
	r.pnl.Add(toFloat(t.PnL))
}

// StepFailed counts a failed step.
func (r *Recorder) StepFailed() {
	r.errors.Inc()
}

// ObserveStep records step latency.
func (r *Recorder) ObserveStep(d time.Duration) {
	r.step.Observe(d.Seconds())
}

// SetEquity records current equity.
func (r *Recorder) SetEquity(equity decimal.Decimal) {
	r.equity.Set(toFloat(equity))
}

// SetKillSwitch records the kill switch state.
func (r *Recorder) SetKillSwitch(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	r.killSwitch.Set(v)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
