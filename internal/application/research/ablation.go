package research

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/shopspring/decimal"
)

// AblationCase is one strategy variant.
type AblationCase struct {
	Name   string
	Params strategy.Params
}

// AblationResult summarises one variant's run.
type AblationResult struct {
	Name       string          `json:"name"`
	Result     backtest.Result `json:"result"`
	Expectancy decimal.Decimal `json:"expectancy"`
	Trades     int             `json:"trades"`
}

// Ablation switches strategy features off one at a time against the same candles.
type Ablation struct {
	runner  runner
	base    strategy.Params
	workers int
}

// NewAblation creates an Ablation runner. workers <= 0 uses NumCPU × 2.
func NewAblation(sim *backtest.Simulator, base strategy.Params, rp risk.Params, workers int) *Ablation {
	return &Ablation{runner: runner{sim: sim, risk: rp}, base: base, workers: workers}
}

// Cases returns the variants in report order.
func (a *Ablation) Cases() []AblationCase {
	noWave := a.base
	noWave.Features.EnableWaveFilter = false
	noVolume := a.base
	noVolume.Features.EnableVolumeFilter = false
	noTrend := a.base
	noTrend.Features.EnableTrendFilter = false
	atrExit := a.base
	atrExit.Features.ExitModel = strategy.ExitATRDynamic

	return []AblationCase{
		{Name: "baseline", Params: a.base},
		{Name: "no_wave_filter", Params: noWave},
		{Name: "no_volume_filter", Params: noVolume},
		{Name: "no_trend_filter", Params: noTrend},
		{Name: "atr_exit", Params: atrExit},
	}
}

// Run simulates every case in parallel. Results keep case order.
func (a *Ablation) Run(ctx context.Context, candles []domain.Candle) ([]AblationResult, error) {
	cases := a.Cases()
	results, err := runParallel(ctx, len(cases), a.workers, func(ctx context.Context, i int) (AblationResult, error) {
		out, err := a.runner.simulate(ctx, cases[i].Params, candles, nil)
		if err != nil {
			return AblationResult{}, fmt.Errorf("case %s: %w", cases[i].Name, err)
		}
		return AblationResult{
			Name:       cases[i].Name,
			Result:     out.run.Result,
			Expectancy: out.expectancy,
			Trades:     len(out.run.Trades),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("research.Ablation.Run: %w", err)
	}
	return results, nil
}
