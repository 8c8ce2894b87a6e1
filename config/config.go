package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/application/research"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/alejandrodnm/wavebot/internal/risk"
	"github.com/alejandrodnm/wavebot/internal/strategy"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete bot configuration.
type Config struct {
	Bot      BotConfig       `yaml:"bot"`
	Exchange ExchangeConfig  `yaml:"exchange"`
	Backtest BacktestConfig  `yaml:"backtest"`
	Risk     risk.Params     `yaml:"risk"`
	Strategy strategy.Params `yaml:"strategy"`
	Research ResearchConfig  `yaml:"research"`
	Storage  StorageConfig   `yaml:"storage"`
	Notify   NotifyConfig    `yaml:"notify"`
	HTTP     HTTPConfig      `yaml:"http"`
	Log      LogConfig       `yaml:"log"`
}

// BotConfig selects what the binary does.
type BotConfig struct {
	Mode         string        `yaml:"mode" default:"backtest" validate:"oneof=backtest report walkforward ablation fetch paper live"`
	PollInterval time.Duration `yaml:"poll_interval" default:"15s" validate:"gt=0"`
	CandleLimit  int           `yaml:"candle_limit" default:"300" validate:"gt=0"`
	FetchDays    int           `yaml:"fetch_days" default:"90" validate:"gt=0"`
}

// ExchangeConfig holds the Bybit connection and instrument.
type ExchangeConfig struct {
	BaseURL       string `yaml:"base_url" default:"https://api-testnet.bybit.com" validate:"required"`
	WSPublicURL   string `yaml:"ws_public_url" default:"wss://stream-testnet.bybit.com/v5/public/spot"`
	Category      string `yaml:"category" default:"spot" validate:"oneof=spot linear"`
	Symbol        string `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	Interval      string `yaml:"interval" default:"15" validate:"required"`
	HTFInterval   string `yaml:"htf_interval" default:"60" validate:"required"`
	RecvWindowMs  int    `yaml:"recv_window_ms" default:"5000" validate:"gt=0"`
	StreamEnabled bool   `yaml:"stream_enabled"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
}

// BacktestConfig holds simulation costs and limits.
type BacktestConfig struct {
	InitialCapital     decimal.Decimal `yaml:"initial_capital" default:"1000" validate:"gt=0"`
	FeeRate            decimal.Decimal `yaml:"fee_rate" default:"0.0006" validate:"gte=0"`
	SlippageBps        int             `yaml:"slippage_bps" default:"2" validate:"gte=0"`
	MaxLookbackBars    int             `yaml:"max_lookback_bars" default:"400" validate:"gt=0"`
	MaxHTFLookbackBars int             `yaml:"max_htf_lookback_bars" validate:"gte=0"`
	CSVPath            string          `yaml:"csv_path"`
	// Days of history fetched when CSVPath is empty.
	Days int `yaml:"days" default:"180" validate:"gt=0"`
}

type ResearchConfig struct {
	WalkForward research.WalkForwardParams `yaml:"walk_forward"`
}

// StorageConfig selects the state store and ledger.
type StorageConfig struct {
	Driver        string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite redis"`
	DSN           string `yaml:"dsn" default:"wavebot.db"` // SQLite file, or ":memory:"
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
}

type NotifyConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" default:"wavebot.trades"`
}

// HTTPConfig enables the status server when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	return v
}

// Load reads the .env file if present, applies defaults, overlays the YAML file at path
// (skipped when path is empty), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and the exchange interval codes.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("validate: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validate: %w", err)
	}
	if _, err := domain.ParseInterval(c.Exchange.Interval); err != nil {
		return fmt.Errorf("validate: exchange.interval: %w", err)
	}
	if _, err := domain.ParseInterval(c.Exchange.HTFInterval); err != nil {
		return fmt.Errorf("validate: exchange.htf_interval: %w", err)
	}
	return nil
}

// applyEnvOverrides replaces values with environment variables when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BOT_MODE"); v != "" {
		cfg.Bot.Mode = v
	}
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("BACKTEST_DATA_PATH"); v != "" {
		cfg.Backtest.CSVPath = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Notify.KafkaBrokers = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Interval returns the trading interval as a duration.
func (c *Config) Interval() time.Duration {
	return domain.MustInterval(c.Exchange.Interval)
}

// HTFInterval returns the higher-timeframe interval as a duration.
func (c *Config) HTFInterval() time.Duration {
	return domain.MustInterval(c.Exchange.HTFInterval)
}

// StrategyParams returns the strategy configuration with execution costs filled in.
func (c *Config) StrategyParams() strategy.Params {
	p := c.Strategy
	p.FeeRate = c.Backtest.FeeRate
	p.SlippageBps = c.Backtest.SlippageBps
	return p
}

// RiskParams returns the risk configuration.
func (c *Config) RiskParams() risk.Params {
	return c.Risk
}

// BacktestParams returns the simulator configuration.
func (c *Config) BacktestParams() backtest.Config {
	return backtest.Config{
		InitialCapital:     c.Backtest.InitialCapital,
		FeeRate:            c.Backtest.FeeRate,
		SlippageBps:        c.Backtest.SlippageBps,
		Interval:           c.Interval(),
		HTFInterval:        c.HTFInterval(),
		MaxLookbackBars:    c.Backtest.MaxLookbackBars,
		MaxHTFLookbackBars: c.Backtest.MaxHTFLookbackBars,
	}
}

// ReportParams returns the regime settings used by the backtest report.
func (c *Config) ReportParams() backtest.ReportParams {
	return backtest.ReportParams{
		WeakSlope:          c.Strategy.Regime.WeakSlope,
		StrongSlope:        c.Strategy.Regime.StrongSlope,
		MinTradesPerBucket: c.Strategy.Regime.MinTradesPerBucket,
	}
}
