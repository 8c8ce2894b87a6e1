// Package backtest replays historical candles through the strategy, risk and
// execution stack and summarises the outcome.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/wavebot/internal/application/execution"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultMaxLookbackBars = 400
	defaultInitialCapital  = 1000
)

// Config holds simulation settings.
type Config struct {
	InitialCapital     decimal.Decimal
	FeeRate            decimal.Decimal
	SlippageBps        int
	Interval           time.Duration
	HTFInterval        time.Duration
	MaxLookbackBars    int
	MaxHTFLookbackBars int
	RecordDecisions    bool
	Filters            *domain.InstrumentFilters
}

// Result is the headline summary of one run.
type Result struct {
	Trades       int             `json:"trades"`
	WinRate      decimal.Decimal `json:"winRate"`
	ProfitFactor decimal.Decimal `json:"profitFactor"`
	MaxDrawdown  decimal.Decimal `json:"maxDrawdown"`
	FinalEquity  decimal.Decimal `json:"finalEquity"`
}

// Run is the full output of a simulation.
type Run struct {
	ID        string                  `json:"id"`
	Result    Result                  `json:"result"`
	Trades    []domain.TradeRecord    `json:"trades"`
	Decisions []domain.DecisionRecord `json:"decisions,omitempty"`
}

// Simulator replays candles bar by bar. Signals fill at the next bar's open.
type Simulator struct {
	cfg Config
}

// NewSimulator creates a Simulator, filling unset limits with defaults.
func NewSimulator(cfg Config) *Simulator {
	if !cfg.InitialCapital.IsPositive() {
		cfg.InitialCapital = decimal.NewFromInt(defaultInitialCapital)
	}
	if cfg.MaxLookbackBars <= 0 {
		cfg.MaxLookbackBars = defaultMaxLookbackBars
	}
	if cfg.MaxHTFLookbackBars <= 0 {
		cfg.MaxHTFLookbackBars = cfg.MaxLookbackBars
	}
	if cfg.HTFInterval <= 0 {
		cfg.HTFInterval = cfg.Interval
	}
	return &Simulator{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Run simulates candles with the given engine. The risk manager and portfolio are
// reset to the initial capital at the first candle. Empty input yields a zero result.
func (s *Simulator) Run(
	ctx context.Context,
	candles []domain.Candle,
	engine *strategy.Engine,
	rm *risk.Manager,
	pf *portfolio.Portfolio,
	gate *domain.RegimeGate,
) (*Run, error) {
	run := &Run{ID: uuid.NewString()}
	if len(candles) == 0 {
		run.Result = Result{FinalEquity: s.cfg.InitialCapital}
		return run, nil
	}
	if err := ValidateOrError(candles, s.cfg.Interval); err != nil {
		return nil, fmt.Errorf("backtest.Run: %w", err)
	}

	pf.Reset(s.cfg.InitialCapital)
	rm.ResetForBacktest(s.cfg.InitialCapital, candles[0].OpenTime)
	exec := execution.New(execution.Config{
		FeeRate:     s.cfg.FeeRate,
		SlippageBps: s.cfg.SlippageBps,
		Interval:    s.cfg.Interval,
		Pyramiding:  engine.Params().Pyramiding,
	}, pf, rm, nil)

	htf := NewHTFView(candles, s.cfg.HTFInterval, s.cfg.MaxHTFLookbackBars)
	peak := s.cfg.InitialCapital
	maxDD := domain.Zero
	var pending *domain.TradeSignal

	for i, bar := range candles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest.Run: %w", err)
		}
		if pending != nil {
			if err := s.fillPending(ctx, exec, rm, pf, *pending, bar, run); err != nil {
				return nil, fmt.Errorf("backtest.Run: %w", err)
			}
			pending = nil
		}

		pf.MarkToMarket(bar.Close)
		rm.UpdateEquity(pf.MarkedEquity(), bar.OpenTime)

		if _, err := exec.ManageBar(ctx, bar); err != nil {
			return nil, fmt.Errorf("backtest.Run: manage bar: %w", err)
		}

		equity := pf.MarkedEquity()
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := domain.Div(peak.Sub(equity), peak, 6); dd.GreaterThan(maxDD) {
			maxDD = dd
		}

		from := i + 1 - s.cfg.MaxLookbackBars
		if from < 0 {
			from = 0
		}
		sig := engine.Evaluate(candles[from:i+1], htf.Advance(bar), gate)
		if s.cfg.RecordDecisions {
			run.Decisions = append(run.Decisions, decisionOf(bar.OpenTime, sig))
		}
		if sig.IsEntry() && sig.ExitPlan != nil && sig.ExitPlan.StopPrice != nil {
			pending = &sig
		}
	}

	run.Trades = pf.Trades()
	run.Result = summarize(run.Trades, maxDD, pf.Equity())
	return run, nil
}

// fillPending executes the previous bar's signal at this bar's open.
// A risk block is recorded as a HOLD decision and the bar continues.
func (s *Simulator) fillPending(
	ctx context.Context,
	exec *execution.Manager,
	rm *risk.Manager,
	pf *portfolio.Portfolio,
	sig domain.TradeSignal,
	bar domain.Candle,
	run *Run,
) error {
	if !rm.CanEnter(bar.OpenTime) {
		if s.cfg.RecordDecisions {
			run.Decisions = append(run.Decisions, domain.DecisionRecord{
				Time:         bar.OpenTime,
				SignalType:   domain.SignalHold,
				EntryReason:  sig.EntryReason,
				RejectReason: rm.EntryBlockReason(bar.OpenTime),
				Score:        sig.Score,
				Confidence:   sig.Confidence,
				Features:     sig.Features,
			})
		}
		return nil
	}
	if pf.Position().Side() == domain.SideFlat {
		_, err := exec.Enter(ctx, sig, bar.Open, bar.OpenTime, s.cfg.Filters)
		return err
	}
	if exec.CanAdd(sig.Side(), bar.OpenTime) {
		_, err := exec.AddOn(ctx, bar.Open, bar.OpenTime, s.cfg.Filters)
		return err
	}
	return nil
}

func decisionOf(at time.Time, sig domain.TradeSignal) domain.DecisionRecord {
	return domain.DecisionRecord{
		Time:         at,
		SignalType:   sig.Type,
		EntryReason:  sig.EntryReason,
		RejectReason: sig.RejectReason,
		Score:        sig.Score,
		Confidence:   sig.Confidence,
		Features:     sig.Features,
	}
}

func summarize(trades []domain.TradeRecord, maxDD, finalEquity decimal.Decimal) Result {
	wins := 0
	for _, t := range trades {
		if t.PnL.IsPositive() {
			wins++
		}
	}
	n := decimal.NewFromInt(int64(len(trades)))
	return Result{
		Trades:       len(trades),
		WinRate:      domain.Div(decimal.NewFromInt(int64(wins)), n, 4),
		ProfitFactor: profitFactor(trades),
		MaxDrawdown:  maxDD,
		FinalEquity:  finalEquity,
	}
}
