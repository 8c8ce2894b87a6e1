package bybit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderCreatePath = "/v5/order/create"

type orderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	OrderLinkID string `json:"orderLinkId"`
	MarketUnit  string `json:"marketUnit,omitempty"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceMarketOrder submits a market order sized in the base coin.
// side is SideLong for Buy and SideShort for Sell.
func (c *Client) PlaceMarketOrder(ctx context.Context, side domain.Side, qty decimal.Decimal) (string, error) {
	var bybitSide string
	switch side {
	case domain.SideLong:
		bybitSide = "Buy"
	case domain.SideShort:
		bybitSide = "Sell"
	default:
		return "", fmt.Errorf("bybit.PlaceMarketOrder: invalid side %q", side)
	}
	if !qty.IsPositive() {
		return "", fmt.Errorf("bybit.PlaceMarketOrder: non-positive qty %s", qty)
	}

	req := orderRequest{
		Category:    c.cfg.Category,
		Symbol:      c.cfg.Symbol,
		Side:        bybitSide,
		OrderType:   "Market",
		Qty:         qty.String(),
		OrderLinkID: uuid.NewString(),
	}
	if c.cfg.Category == "spot" {
		req.MarketUnit = "baseCoin"
	}

	var res orderResult
	if err := c.post(ctx, orderCreatePath, req, &res); err != nil {
		return "", fmt.Errorf("bybit.PlaceMarketOrder: %w", err)
	}
	slog.Info("bybit: market order placed",
		"side", bybitSide,
		"qty", req.Qty,
		"order_id", res.OrderID,
		"order_link_id", req.OrderLinkID,
	)
	return res.OrderID, nil
}
