package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/wavebot/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (built-in defaults when empty)")
	mode := flag.String("mode", "", "backtest|report|walkforward|ablation|fetch|paper|live (overrides bot.mode)")
	csvPath := flag.String("csv", "", "candle CSV for offline modes and fetch output (overrides backtest.csv_path)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Bot.Mode = *mode
	}
	if *csvPath != "" {
		cfg.Backtest.CSVPath = *csvPath
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	slog.Info("wavebot starting",
		"config", *configPath,
		"mode", cfg.Bot.Mode,
		"symbol", cfg.Exchange.Symbol,
		"interval", cfg.Exchange.Interval,
		"htf_interval", cfg.Exchange.HTFInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("wavebot exited with error", "mode", cfg.Bot.Mode, "err", err)
		os.Exit(1)
	}

	slog.Info("wavebot stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	switch cfg.Bot.Mode {
	case "backtest", "report", "walkforward", "ablation":
		return runOffline(ctx, cfg)
	case "fetch":
		return runFetch(ctx, cfg)
	case "paper", "live":
		return runTrader(ctx, cfg)
	}
	return fmt.Errorf("unknown mode %q", cfg.Bot.Mode)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
