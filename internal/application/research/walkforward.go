package research

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/shopspring/decimal"
)

var drawdownPenalty = decimal.RequireFromString("0.5")

// WalkForwardParams configures the rolling optimisation.
type WalkForwardParams struct {
	TrainDays        int   `yaml:"train_days" default:"90" validate:"gt=0"`
	TestDays         int   `yaml:"test_days" default:"30" validate:"gt=0"`
	MinTrades        int   `yaml:"min_trades" default:"8" validate:"gte=0"`
	MaxTrials        int   `yaml:"max_trials" default:"12" validate:"gt=0"`
	EnableRegimeGate bool  `yaml:"enable_regime_gate" default:"true"`
	Workers          int   `yaml:"workers" default:"0" validate:"gte=0"`
	Seed             int64 `yaml:"seed" default:"42"`
}

// Candidate is one point of the parameter grid.
type Candidate struct {
	ZigZagThreshold decimal.Decimal `json:"zigzagThreshold"`
	MinScore        decimal.Decimal `json:"minScore"`
	ATRStop         decimal.Decimal `json:"atrStop"`
	ATRTakeProfit   decimal.Decimal `json:"atrTakeProfit"`
	TimeStopBars    int             `json:"timeStopBars"`
}

// Apply returns base with the candidate's overrides and the hybrid exit model.
func (c Candidate) Apply(base strategy.Params) strategy.Params {
	p := base
	p.ZigZag.PercentThreshold = c.ZigZagThreshold
	p.Elliott.MinScoreToTrade = c.MinScore
	p.Exit.ATRStopMultiplier = c.ATRStop
	p.Exit.ATRTakeProfitMultiplier = c.ATRTakeProfit
	p.Exit.TimeStopBars = c.TimeStopBars
	p.Features.ExitModel = strategy.ExitHybrid
	return p
}

// Fold is the outcome of one train/test window.
type Fold struct {
	TrainStart        time.Time       `json:"trainStart"`
	TestStart         time.Time       `json:"testStart"`
	TestEnd           time.Time       `json:"testEnd"`
	TrainTrades       int             `json:"trainTrades"`
	TestTrades        int             `json:"testTrades"`
	TrainProfitFactor decimal.Decimal `json:"trainProfitFactor"`
	TestProfitFactor  decimal.Decimal `json:"testProfitFactor"`
	TrainExpectancy   decimal.Decimal `json:"trainExpectancy"`
	TestExpectancy    decimal.Decimal `json:"testExpectancy"`
	TestMaxDrawdown   decimal.Decimal `json:"testMaxDrawdown"`
	Candidate         Candidate       `json:"candidate"`
	Gate              []string        `json:"gate,omitempty"`
}

// WalkForward optimises on a training window and scores the winner on the following test window.
type WalkForward struct {
	runner runner
	base   strategy.Params
	params WalkForwardParams
}

// NewWalkForward creates a WalkForward runner.
func NewWalkForward(sim *backtest.Simulator, base strategy.Params, rp risk.Params, params WalkForwardParams) *WalkForward {
	if params.MaxTrials <= 0 {
		params.MaxTrials = 12
	}
	return &WalkForward{runner: runner{sim: sim, risk: rp}, base: base, params: params}
}

// Candidates returns the shuffled, truncated parameter grid. The order depends only on the seed.
func (w *WalkForward) Candidates() []Candidate {
	zigzags := []string{"0.01", "0.015", "0.02"}
	scores := []string{"0.55", "0.60", "0.65"}
	stops := []string{"1.2", "1.5", "2.0"}
	tps := []string{"2.0", "3.0"}
	times := []int{24, 48}

	grid := make([]Candidate, 0, len(zigzags)*len(scores)*len(stops)*len(tps)*len(times))
	for _, zz := range zigzags {
		for _, sc := range scores {
			for _, st := range stops {
				for _, tp := range tps {
					for _, tm := range times {
						grid = append(grid, Candidate{
							ZigZagThreshold: domain.Dec(zz),
							MinScore:        domain.Dec(sc),
							ATRStop:         domain.Dec(st),
							ATRTakeProfit:   domain.Dec(tp),
							TimeStopBars:    tm,
						})
					}
				}
			}
		}
	}

	rng := rand.New(rand.NewSource(w.params.Seed))
	rng.Shuffle(len(grid), func(i, j int) { grid[i], grid[j] = grid[j], grid[i] })
	if len(grid) > w.params.MaxTrials {
		grid = grid[:w.params.MaxTrials]
	}
	return grid
}

// Run rolls train/test windows across candles, advancing by the test size.
func (w *WalkForward) Run(ctx context.Context, candles []domain.Candle) ([]Fold, error) {
	interval := w.runner.sim.Config().Interval
	if interval <= 0 {
		return nil, fmt.Errorf("research.WalkForward.Run: invalid interval %s", interval)
	}
	barsPerDay := int((24 * time.Hour) / interval)
	if barsPerDay < 1 {
		barsPerDay = 1
	}
	trainBars := w.params.TrainDays * barsPerDay
	testBars := w.params.TestDays * barsPerDay
	candidates := w.Candidates()

	var folds []Fold
	for start := 0; start+trainBars+testBars <= len(candles); start += testBars {
		train := candles[start : start+trainBars]
		test := candles[start+trainBars : start+trainBars+testBars]

		fold, err := w.runFold(ctx, candidates, train, test)
		if err != nil {
			return nil, fmt.Errorf("research.WalkForward.Run: fold %d: %w", len(folds)+1, err)
		}
		slog.Info("walk-forward fold complete",
			"fold", len(folds)+1,
			"train_trades", fold.TrainTrades,
			"test_trades", fold.TestTrades,
			"test_expectancy", fold.TestExpectancy.String(),
		)
		folds = append(folds, fold)
	}
	return folds, nil
}

func (w *WalkForward) runFold(ctx context.Context, candidates []Candidate, train, test []domain.Candle) (Fold, error) {
	outcomes, err := runParallel(ctx, len(candidates), w.params.Workers, func(ctx context.Context, i int) (outcome, error) {
		return w.runner.simulate(ctx, candidates[i].Apply(w.base), train, nil)
	})
	if err != nil {
		return Fold{}, fmt.Errorf("train: %w", err)
	}

	best := selectBest(outcomes, w.params.MinTrades)
	winner := candidates[best]
	trained := outcomes[best]

	var gate *domain.RegimeGate
	if w.params.EnableRegimeGate {
		regimes := backtest.AnalyzeRegimes(trained.run.Trades, w.base.Regime.WeakSlope, w.base.Regime.StrongSlope)
		gate = backtest.SuggestGate(regimes, w.base.Regime.MinTradesPerBucket)
	}

	tested, err := w.runner.simulate(ctx, winner.Apply(w.base), test, gate)
	if err != nil {
		return Fold{}, fmt.Errorf("test: %w", err)
	}

	fold := Fold{
		TrainStart:        train[0].OpenTime,
		TestStart:         test[0].OpenTime,
		TestEnd:           test[len(test)-1].OpenTime,
		TrainTrades:       len(trained.run.Trades),
		TestTrades:        len(tested.run.Trades),
		TrainProfitFactor: trained.run.Result.ProfitFactor,
		TestProfitFactor:  tested.run.Result.ProfitFactor,
		TrainExpectancy:   trained.expectancy,
		TestExpectancy:    tested.expectancy,
		TestMaxDrawdown:   tested.run.Result.MaxDrawdown,
		Candidate:         winner,
	}
	if gate != nil {
		fold.Gate = gate.BlockedKeys()
	}
	return fold, nil
}

// selectBest picks the highest expectancy − 0.5×maxDD. Candidates with at least
// minTrades training trades outrank those without; ties go to the lowest index.
func selectBest(outcomes []outcome, minTrades int) int {
	best := -1
	var bestScore decimal.Decimal
	bestEligible := false
	for i, o := range outcomes {
		eligible := len(o.run.Trades) >= minTrades
		score := o.expectancy.Sub(o.run.Result.MaxDrawdown.Mul(drawdownPenalty))
		switch {
		case best < 0,
			eligible && !bestEligible,
			eligible == bestEligible && score.GreaterThan(bestScore):
			best, bestScore, bestEligible = i, score, eligible
		}
	}
	return best
}
