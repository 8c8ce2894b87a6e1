package ports

import (
	"context"

	"github.com/alejandrodnm/wavebot/internal/domain"
)

// StateStore persists risk and portfolio snapshots between restarts.
// Loading a snapshot that was never saved returns (nil, nil).
type StateStore interface {
	LoadRiskState(ctx context.Context) (*domain.RiskState, error)
	SaveRiskState(ctx context.Context, state domain.RiskState) error
	LoadPortfolio(ctx context.Context) (*domain.PortfolioSnapshot, error)
	SavePortfolio(ctx context.Context, snap domain.PortfolioSnapshot) error
}

// TradeSink records closed trades and strategy decisions.
type TradeSink interface {
	SaveTrade(ctx context.Context, runID string, trade domain.TradeRecord) error
	SaveDecisions(ctx context.Context, runID string, decisions []domain.DecisionRecord) error
}
