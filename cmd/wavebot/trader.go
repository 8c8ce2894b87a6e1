package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/alejandrodnm/wavebot/config"
	"github.com/alejandrodnm/wavebot/internal/adapters/bybit"
	"github.com/alejandrodnm/wavebot/internal/adapters/httpapi"
	"github.com/alejandrodnm/wavebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/wavebot/internal/adapters/metrics"
	"github.com/alejandrodnm/wavebot/internal/adapters/notify"
	"github.com/alejandrodnm/wavebot/internal/adapters/storage"
	"github.com/alejandrodnm/wavebot/internal/application/trader"
	"github.com/alejandrodnm/wavebot/internal/portfolio"
	"github.com/alejandrodnm/wavebot/internal/ports"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// runTrader wires the paper or live trading loop and its optional stream and HTTP server.
func runTrader(ctx context.Context, cfg *config.Config) error {
	mode := trader.Mode(cfg.Bot.Mode)
	symbol := cfg.Exchange.Symbol

	client := newExchange(cfg)
	if mode == trader.ModeLive {
		if err := trader.EnsureLiveAllowed(mode, os.Getenv(trader.EnvEnableLive)); err != nil {
			return err
		}
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
			return errors.New("live mode requires BYBIT_API_KEY and BYBIT_API_SECRET")
		}
		slog.Warn("LIVE TRADING ENABLED", "symbol", symbol, "category", cfg.Exchange.Category, "base_url", cfg.Exchange.BaseURL)
	}

	// Keep a few windows of both timeframes so stream updates have room.
	cache := marketdata.NewCache(cfg.Bot.CandleLimit * 4)
	candles := marketdata.NewService(client, cache, symbol)

	ledger, err := storage.NewSQLiteStore(cfg.Storage.DSN, symbol)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var state ports.StateStore = ledger
	if cfg.Storage.Driver == "redis" {
		rs, err := storage.NewRedisStore(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, symbol)
		if err != nil {
			return err
		}
		defer rs.Close()
		state = rs
	}

	notifiers := notify.Multi{notify.NewConsole()}
	sinks := tradeSinks{ledger}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		k, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, symbol)
		if err != nil {
			return err
		}
		defer k.Close()
		notifiers = append(notifiers, k)
		sinks = append(sinks, k)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := trader.Deps{
		Candles:     candles,
		Instruments: bybit.NewInstruments(client),
		State:       state,
		Ledger:      sinks,
		Notifier:    notifiers,
		Metrics:     metrics.New(reg, symbol),
	}
	if mode == trader.ModeLive {
		deps.Orders = client
	}

	t, err := trader.New(trader.Config{
		Mode:         mode,
		Symbol:       symbol,
		Interval:     cfg.Exchange.Interval,
		HTFInterval:  cfg.Exchange.HTFInterval,
		CandleLimit:  cfg.Bot.CandleLimit,
		PollInterval: cfg.Bot.PollInterval,
		Spot:         cfg.Exchange.Category == "spot",
		FeeRate:      cfg.Backtest.FeeRate,
		SlippageBps:  cfg.Backtest.SlippageBps,
	}, strategy.New(cfg.StrategyParams()), risk.New(cfg.RiskParams()), portfolio.New(cfg.Backtest.InitialCapital), deps)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Exchange.StreamEnabled {
		stream := bybit.NewKlineStream(cfg.Exchange.WSPublicURL, symbol, cfg.Exchange.Interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Run(ctx, candles.OnStreamCandle(cfg.Exchange.Interval)); err != nil {
				slog.Error("kline stream stopped", "err", err)
			}
		}()
	}

	if cfg.HTTP.Addr != "" {
		srv := httpapi.NewServer(cfg.HTTP.Addr, t, ledger, reg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				slog.Error("http server stopped", "err", err)
			}
		}()
	}

	return t.Run(ctx)
}
