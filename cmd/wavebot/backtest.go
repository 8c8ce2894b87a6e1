package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wavebot/config"
	"github.com/alejandrodnm/wavebot/internal/adapters/bybit"
	"github.com/alejandrodnm/wavebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/wavebot/internal/adapters/notify"
	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/application/research"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/ports"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
)

// runOffline runs the backtest, report, walkforward and ablation modes.
func runOffline(ctx context.Context, cfg *config.Config) error {
	candles, err := loadCandles(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("candles loaded",
		"count", len(candles),
		"first", firstTime(candles),
		"last", lastTime(candles),
	)

	bp := cfg.BacktestParams()
	bp.RecordDecisions = cfg.Bot.Mode == "backtest" || cfg.Bot.Mode == "report"
	sim := backtest.NewSimulator(bp)
	sp := cfg.StrategyParams()
	rp := cfg.RiskParams()
	console := notify.NewConsole()

	switch cfg.Bot.Mode {
	case "walkforward":
		folds, err := research.NewWalkForward(sim, sp, rp, cfg.Research.WalkForward).Run(ctx, candles)
		if err != nil {
			return err
		}
		console.PrintWalkForward(folds)
		return nil
	case "ablation":
		results, err := research.NewAblation(sim, sp, rp, cfg.Research.WalkForward.Workers).Run(ctx, candles)
		if err != nil {
			return err
		}
		console.PrintAblation(results)
		return nil
	}

	run, err := sim.Run(ctx, candles, strategy.New(sp), risk.New(rp), portfolio.New(bp.InitialCapital), sp.ConfiguredGate())
	if err != nil {
		var se *backtest.SanityError
		if errors.As(err, &se) {
			for _, issue := range se.Issues {
				slog.Error("sanity check", "issue", issue)
			}
		}
		return err
	}
	console.PrintBacktest(run)
	if cfg.Bot.Mode == "report" {
		console.PrintReport(backtest.BuildReport(run, cfg.ReportParams()))
	}
	return persistRun(ctx, cfg, run)
}

// persistRun writes the run's trades and decisions to the SQLite ledger and Kafka, if configured.
func persistRun(ctx context.Context, cfg *config.Config, run *backtest.Run) error {
	store, err := storage.NewSQLiteStore(cfg.Storage.DSN, cfg.Exchange.Symbol)
	if err != nil {
		return err
	}
	defer store.Close()

	sinks := tradeSinks{store}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		k, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, cfg.Exchange.Symbol)
		if err != nil {
			return err
		}
		defer k.Close()
		sinks = append(sinks, k)
	}

	for _, t := range run.Trades {
		if err := sinks.SaveTrade(ctx, run.ID, t); err != nil {
			return err
		}
	}
	if err := sinks.SaveDecisions(ctx, run.ID, run.Decisions); err != nil {
		return err
	}
	slog.Info("run persisted", "run_id", run.ID, "trades", len(run.Trades), "decisions", len(run.Decisions), "dsn", cfg.Storage.DSN)
	return nil
}

// runFetch downloads history and writes it as CSV.
func runFetch(ctx context.Context, cfg *config.Config) error {
	svc := marketdata.NewService(newExchange(cfg), nil, cfg.Exchange.Symbol)
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -cfg.Bot.FetchDays)
	candles, err := svc.HistoricalRange(ctx, cfg.Exchange.Interval, start, end)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("fetch: no candles returned for %s %s", cfg.Exchange.Symbol, cfg.Exchange.Interval)
	}

	path := cfg.Backtest.CSVPath
	if path == "" {
		path = marketdata.FetchFileName(cfg.Exchange.Symbol, cfg.Exchange.Interval, cfg.Bot.FetchDays)
	}
	if err := marketdata.SaveCSV(path, candles); err != nil {
		return err
	}
	if issues := backtest.Validate(candles, cfg.Interval()); len(issues) > 0 {
		slog.Warn("fetched data has gaps", "issues", len(issues), "first", issues[0])
	}
	slog.Info("candles saved", "path", path, "count", len(candles), "first", firstTime(candles), "last", lastTime(candles))
	return nil
}

// loadCandles reads backtest.csv_path, or fetches backtest.days of history when it is empty.
func loadCandles(ctx context.Context, cfg *config.Config) ([]domain.Candle, error) {
	if cfg.Backtest.CSVPath != "" {
		return marketdata.LoadCSV(cfg.Backtest.CSVPath)
	}
	slog.Info("no csv_path set, fetching history", "days", cfg.Backtest.Days)
	svc := marketdata.NewService(newExchange(cfg), nil, cfg.Exchange.Symbol)
	end := time.Now().UTC()
	return svc.HistoricalRange(ctx, cfg.Exchange.Interval, end.AddDate(0, 0, -cfg.Backtest.Days), end)
}

func newExchange(cfg *config.Config) *bybit.Client {
	return bybit.NewClient(bybit.Config{
		BaseURL:      cfg.Exchange.BaseURL,
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    cfg.Exchange.APISecret,
		RecvWindowMs: cfg.Exchange.RecvWindowMs,
		Category:     cfg.Exchange.Category,
		Symbol:       cfg.Exchange.Symbol,
	})
}

// tradeSinks fans trades and decisions out to every sink. All sinks are tried.
type tradeSinks []ports.TradeSink

func (s tradeSinks) SaveTrade(ctx context.Context, runID string, t domain.TradeRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.SaveTrade(ctx, runID, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s tradeSinks) SaveDecisions(ctx context.Context, runID string, decisions []domain.DecisionRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.SaveDecisions(ctx, runID, decisions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstTime(candles []domain.Candle) time.Time {
	if len(candles) == 0 {
		return time.Time{}
	}
	return candles[0].OpenTime
}

func lastTime(candles []domain.Candle) time.Time {
	if len(candles) == 0 {
		return time.Time{}
	}
	return candles[len(candles)-1].OpenTime
}
