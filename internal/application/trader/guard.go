package trader

import (
	"errors"
	"log/slog"
	"os"
)

// EnvEnableLive must be "YES" for live orders to reach the exchange.
const EnvEnableLive = "BOT_ENABLE_LIVE"

// ErrLiveDisabled is returned when a live order is attempted without the double opt-in.
var ErrLiveDisabled = errors.New("live trading disabled: requires bot.mode=live and " + EnvEnableLive + "=YES")

// Mode selects paper or live execution.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// EnsureLiveAllowed returns nil only for mode live with the env flag set to YES.
func EnsureLiveAllowed(mode Mode, env string) error {
	if mode == ModeLive && env == "YES" {
		return nil
	}
	slog.Error("live order blocked", "mode", mode, "env", EnvEnableLive)
	return ErrLiveDisabled
}

func liveEnvFromOS() string {
	return os.Getenv(EnvEnableLive)
}
