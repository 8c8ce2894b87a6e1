// Package research runs parameter studies on top of the backtest simulator:
// rolling walk-forward optimisation and feature ablation.
package research

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/shopspring/decimal"
)

// runner builds a fresh engine, risk manager and portfolio for every simulation
// so parallel runs share no mutable state.
type runner struct {
	sim  *backtest.Simulator
	risk risk.Params
}

type outcome struct {
	run        *backtest.Run
	expectancy decimal.Decimal
}

func (r runner) simulate(ctx context.Context, params strategy.Params, candles []domain.Candle, gate *domain.RegimeGate) (outcome, error) {
	run, err := r.sim.Run(ctx, candles,
		strategy.New(params),
		risk.New(r.risk),
		portfolio.New(r.sim.Config().InitialCapital),
		gate)
	if err != nil {
		return outcome{}, fmt.Errorf("research.simulate: %w", err)
	}
	return outcome{run: run, expectancy: backtest.ComputeTradeMetrics(run.Trades).Expectancy}, nil
}
