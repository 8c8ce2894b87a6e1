// Package trader runs the strategy against the live market, one closed candle at a time,
// either on paper or with real market orders.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/wavebot/internal/application/execution"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/indicators"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/ports"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultCandleLimit  = 300
)

// Config holds the trader settings.
type Config struct {
	Mode         Mode
	Symbol       string
	Interval     string // exchange interval code, e.g. "15"
	HTFInterval  string
	CandleLimit  int
	PollInterval time.Duration
	// Spot markets cannot open shorts with market orders.
	Spot        bool
	FeeRate     decimal.Decimal
	SlippageBps int
	// LiveEnv returns the BOT_ENABLE_LIVE value. Defaults to the process environment.
	LiveEnv func() string
}

// Deps are the ports the trader drives. Only Candles is required; Orders is required in live mode.
type Deps struct {
	Candles     ports.CandleSource
	Orders      ports.OrderSink
	Instruments ports.InstrumentProvider
	State       ports.StateStore
	Ledger      ports.TradeSink
	Notifier    ports.Notifier
	Metrics     ports.Metrics
}

// Status is the published view of the trader after its last step.
type Status struct {
	Mode           Mode                  `json:"mode"`
	Symbol         string                `json:"symbol"`
	RunID          string                `json:"runId"`
	LastCandleTime time.Time             `json:"lastCandleTime"`
	Position       domain.PositionRecord `json:"position"`
	Equity         decimal.Decimal       `json:"equity"`
	LastSignal     domain.SignalType     `json:"lastSignal,omitempty"`
	LastReject     domain.RejectReason   `json:"lastReject,omitempty"`
	KillSwitch     bool                  `json:"killSwitch"`
	Trades         int                   `json:"trades"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Trader polls closed candles and drives the strategy, risk and execution stack.
type Trader struct {
	cfg       Config
	deps      Deps
	engine    *strategy.Engine
	risk      *risk.Manager
	portfolio *portfolio.Portfolio
	exec      *execution.Manager
	gate      *domain.RegimeGate
	interval  time.Duration
	runID     string
	now       func() time.Time

	lastCandle time.Time
	trades     int
	status     atomic.Pointer[Status]
}

// New wires a Trader. The portfolio and risk manager are restored from deps.State by Restore.
func New(cfg Config, engine *strategy.Engine, rm *risk.Manager, pf *portfolio.Portfolio, deps Deps) (*Trader, error) {
	if cfg.Mode != ModePaper && cfg.Mode != ModeLive {
		return nil, fmt.Errorf("trader.New: unknown mode %q", cfg.Mode)
	}
	if deps.Candles == nil {
		return nil, errors.New("trader.New: candle source is required")
	}
	if cfg.Mode == ModeLive && deps.Orders == nil {
		return nil, errors.New("trader.New: live mode requires an order sink")
	}
	iv, err := domain.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("trader.New: interval: %w", err)
	}
	if _, err := domain.ParseInterval(cfg.HTFInterval); err != nil {
		return nil, fmt.Errorf("trader.New: htf interval: %w", err)
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = defaultCandleLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.LiveEnv == nil {
		cfg.LiveEnv = liveEnvFromOS
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}

	t := &Trader{
		cfg:       cfg,
		deps:      deps,
		engine:    engine,
		risk:      rm,
		portfolio: pf,
		gate:      engine.Params().ConfiguredGate(),
		interval:  iv,
		runID:     string(cfg.Mode) + "-" + uuid.NewString(),
		now:       time.Now,
	}
	var order execution.OrderFunc
	if cfg.Mode == ModeLive {
		order = t.placeOrder
	}
	t.exec = execution.New(execution.Config{
		FeeRate:     cfg.FeeRate,
		SlippageBps: cfg.SlippageBps,
		Interval:    iv,
		Pyramiding:  engine.Params().Pyramiding,
	}, pf, rm, order)
	t.publish("", "")
	return t, nil
}

// RunID identifies this trader session in the trade ledger.
func (t *Trader) RunID() string {
	return t.runID
}

// Status returns the last published status. Safe for concurrent use.
func (t *Trader) Status() Status {
	return *t.status.Load()
}

// Restore loads the risk and portfolio snapshots. Missing snapshots keep the fresh state.
func (t *Trader) Restore(ctx context.Context) error {
	if t.deps.State == nil {
		return nil
	}
	snap, err := t.deps.State.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("trader.Restore: portfolio: %w", err)
	}
	if snap != nil {
		t.portfolio.Restore(*snap)
		slog.Info("portfolio restored", "equity", snap.Equity, "side", t.portfolio.Position().Side())
	}
	state, err := t.deps.State.LoadRiskState(ctx)
	if err != nil {
		return fmt.Errorf("trader.Restore: risk: %w", err)
	}
	if state != nil {
		t.risk.Restore(*state)
		slog.Info("risk state restored", "day", state.CurrentDay, "kill_switch", state.KillSwitchActive)
	}
	t.publish("", "")
	return nil
}

// Run restores state, then steps immediately and on every poll tick until ctx is done.
// Step errors are logged and counted; the loop keeps going.
func (t *Trader) Run(ctx context.Context) error {
	slog.Info("trader starting",
		"mode", t.cfg.Mode,
		"symbol", t.cfg.Symbol,
		"interval", t.cfg.Interval,
		"htf_interval", t.cfg.HTFInterval,
		"poll", t.cfg.PollInterval,
		"run_id", t.runID,
	)
	if err := t.Restore(ctx); err != nil {
		return err
	}

	t.tick(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trader stopped")
			return nil
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Trader) tick(ctx context.Context) {
	start := time.Now()
	if _, err := t.Step(ctx); err != nil {
		t.deps.Metrics.StepFailed()
		slog.Error("trader step failed", "err", err)
	}
	t.deps.Metrics.ObserveStep(time.Since(start))
}

// Step processes the latest closed candle if its open time advanced since the last step.
// It reports whether a candle was processed.
func (t *Trader) Step(ctx context.Context) (bool, error) {
	candles, err := t.deps.Candles.RecentCandles(ctx, t.cfg.Interval, t.cfg.CandleLimit)
	if err != nil {
		return false, fmt.Errorf("trader.Step: candles: %w", err)
	}
	if len(candles) == 0 {
		return false, nil
	}
	bar := candles[len(candles)-1]
	if !bar.OpenTime.After(t.lastCandle) {
		return false, nil
	}
	htf, err := t.deps.Candles.RecentCandles(ctx, t.cfg.HTFInterval, t.cfg.CandleLimit)
	if err != nil {
		return false, fmt.Errorf("trader.Step: htf candles: %w", err)
	}
	t.lastCandle = bar.OpenTime
	at := bar.OpenTime

	t.portfolio.MarkToMarket(bar.Close)
	t.risk.UpdateEquity(t.portfolio.MarkedEquity(), at)
	t.saveRisk(ctx)

	filters := t.filters(ctx)

	closed, err := t.exec.ManageBar(ctx, bar)
	if err != nil {
		return true, fmt.Errorf("trader.Step: manage position: %w", err)
	}
	if closed != nil {
		t.onTradeClosed(ctx, *closed)
	}

	sig := t.engine.Evaluate(candles, htf, t.gate)
	t.deps.Metrics.SignalEvaluated(sig)
	reject := sig.RejectReason

	if t.portfolio.Position().Side() == domain.SideFlat && sig.IsEntry() {
		if block := t.risk.EntryBlockReason(at); block != "" {
			reject = block
			slog.Info("entry blocked by risk", "reason", block, "signal", sig.Type)
		} else if err := t.enter(ctx, sig, bar, filters); err != nil {
			t.saveSnapshots(ctx)
			t.publish(sig.Type, reject)
			return true, fmt.Errorf("trader.Step: %w", err)
		}
	} else if err := t.maybeAddOn(ctx, candles, bar, filters); err != nil {
		t.saveSnapshots(ctx)
		t.publish(sig.Type, reject)
		return true, fmt.Errorf("trader.Step: %w", err)
	}

	t.saveSnapshots(ctx)
	t.publish(sig.Type, reject)
	return true, nil
}

func (t *Trader) enter(ctx context.Context, sig domain.TradeSignal, bar domain.Candle, filters *domain.InstrumentFilters) error {
	if t.cfg.Mode == ModeLive && t.cfg.Spot && sig.Side() == domain.SideShort {
		slog.Warn("short entry skipped on spot", "symbol", t.cfg.Symbol, "reason", sig.EntryReason)
		return nil
	}
	entered, err := t.exec.Enter(ctx, sig, bar.Close, bar.OpenTime, filters)
	if err != nil {
		return fmt.Errorf("enter: %w", err)
	}
	if !entered {
		slog.Info("entry not sized", "reason", sig.EntryReason, "price", bar.Close)
		return nil
	}
	h, _ := domain.HoldingOf(t.portfolio.Position())
	slog.Info("position opened",
		"side", sig.Side(),
		"reason", sig.EntryReason,
		"qty", h.Qty,
		"avg_price", h.AvgPrice,
		"stop", h.StopPrice,
		"take_profit", h.TakeProfitPrice,
	)
	t.notifySignal(ctx, bar, sig)
	return nil
}

// maybeAddOn scales in once the close has moved MinMoveATR ATRs beyond the last add
// (or the average price) in the position's favour.
func (t *Trader) maybeAddOn(ctx context.Context, candles []domain.Candle, bar domain.Candle, filters *domain.InstrumentFilters) error {
	pos := t.portfolio.Position()
	h, ok := domain.HoldingOf(pos)
	if !ok {
		return nil
	}
	side := pos.Side()
	if !t.exec.CanAdd(side, bar.OpenTime) || !t.risk.CanEnter(bar.OpenTime) {
		return nil
	}
	py := t.engine.Params().Pyramiding
	atr := indicators.LastATR(candles, t.engine.Params().Volatility.ATRPeriod)
	if atr == nil {
		return nil
	}
	ref := h.AvgPrice
	if h.LastAddPrice != nil {
		ref = *h.LastAddPrice
	}
	move := atr.Mul(py.MinMoveATR)
	switch side {
	case domain.SideLong:
		if bar.Close.LessThan(ref.Add(move)) {
			return nil
		}
	case domain.SideShort:
		if bar.Close.GreaterThan(ref.Sub(move)) {
			return nil
		}
	}
	if t.cfg.Mode == ModeLive && t.cfg.Spot && side == domain.SideShort {
		slog.Warn("short add-on skipped on spot", "symbol", t.cfg.Symbol)
		return nil
	}
	added, err := t.exec.AddOn(ctx, bar.Close, bar.OpenTime, filters)
	if err != nil {
		return fmt.Errorf("add-on: %w", err)
	}
	if added {
		h, _ = domain.HoldingOf(t.portfolio.Position())
		slog.Info("position increased", "side", side, "adds", h.AddsCount, "qty", h.Qty, "avg_price", h.AvgPrice)
	}
	return nil
}

func (t *Trader) placeOrder(ctx context.Context, buy bool, qty decimal.Decimal) error {
	if err := EnsureLiveAllowed(t.cfg.Mode, t.cfg.LiveEnv()); err != nil {
		return err
	}
	side := domain.SideShort
	if buy {
		side = domain.SideLong
	}
	id, err := t.deps.Orders.PlaceMarketOrder(ctx, side, qty)
	if err != nil {
		slog.Error("market order rejected", "side", side, "qty", qty, "err", err)
		return fmt.Errorf("place order: %w", err)
	}
	slog.Info("market order placed", "order_id", id, "side", side, "qty", qty)
	return nil
}

func (t *Trader) filters(ctx context.Context) *domain.InstrumentFilters {
	if t.deps.Instruments == nil {
		return nil
	}
	f, err := t.deps.Instruments.Filters(ctx)
	if err != nil {
		slog.Warn("instrument filters unavailable", "err", err)
		return nil
	}
	return f
}

func (t *Trader) onTradeClosed(ctx context.Context, tr domain.TradeRecord) {
	t.trades++
	slog.Info("position closed",
		"side", tr.Side,
		"reason", tr.ExitReason,
		"entry", tr.EntryPrice,
		"exit", tr.ExitPrice,
		"pnl", tr.PnL,
	)
	t.deps.Metrics.TradeClosed(tr)
	if t.deps.Ledger != nil {
		if err := t.deps.Ledger.SaveTrade(ctx, t.runID, tr); err != nil {
			slog.Warn("ledger error", "err", err)
		}
	}
	if t.deps.Notifier != nil {
		if err := t.deps.Notifier.NotifyTrade(ctx, tr); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
}

func (t *Trader) notifySignal(ctx context.Context, bar domain.Candle, sig domain.TradeSignal) {
	if t.deps.Notifier == nil {
		return
	}
	if err := t.deps.Notifier.NotifySignal(ctx, bar, sig); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}

func (t *Trader) saveRisk(ctx context.Context) {
	if t.deps.State == nil {
		return
	}
	if err := t.deps.State.SaveRiskState(ctx, t.risk.Snapshot()); err != nil {
		slog.Warn("state store error", "kind", "risk", "err", err)
	}
}

func (t *Trader) saveSnapshots(ctx context.Context) {
	t.saveRisk(ctx)
	if t.deps.State == nil {
		return
	}
	if err := t.deps.State.SavePortfolio(ctx, t.portfolio.Snapshot()); err != nil {
		slog.Warn("state store error", "kind", "portfolio", "err", err)
	}
}

func (t *Trader) publish(signal domain.SignalType, reject domain.RejectReason) {
	equity := t.portfolio.MarkedEquity()
	kill := t.risk.KillSwitchActive()
	t.status.Store(&Status{
		Mode:           t.cfg.Mode,
		Symbol:         t.cfg.Symbol,
		RunID:          t.runID,
		LastCandleTime: t.lastCandle,
		Position:       domain.RecordOf(t.portfolio.Position()),
		Equity:         equity,
		LastSignal:     signal,
		LastReject:     reject,
		KillSwitch:     kill,
		Trades:         t.trades,
		UpdatedAt:      t.now().UTC(),
	})
	t.deps.Metrics.SetEquity(equity)
	t.deps.Metrics.SetKillSwitch(kill)
}
