package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
)

const timeFmt = "2006-01-02 15:04"

// Console implements ports.Notifier and renders reports as text tables.
type Console struct {
	out io.Writer
}

// NewConsole creates a console writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a console writing to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// NotifySignal prints an entry signal on one line.
func (c *Console) NotifySignal(_ context.Context, at domain.Candle, s domain.TradeSignal) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s @ %s", at.OpenTime.UTC().Format(timeFmt), s.Type, s.EntryReason, dec(s.EntryPrice, 2))
	if s.ExitPlan != nil {
		fmt.Fprintf(&sb, " stop %s tp %s", dec(s.ExitPlan.StopPrice, 2), dec(s.ExitPlan.TakeProfitPrice, 2))
	}
	if s.Score != nil {
		fmt.Fprintf(&sb, " score %s", s.Score.StringFixed(2))
	}
	if s.Confidence != nil {
		fmt.Fprintf(&sb, " conf %s", s.Confidence.StringFixed(2))
	}
	fmt.Fprintln(c.out, sb.String())
	return nil
}

// NotifyTrade prints a closed trade on one line.
func (c *Console) NotifyTrade(_ context.Context, t domain.TradeRecord) error {
	fmt.Fprintf(c.out, "[%s] CLOSED %s %s qty %s %s -> %s pnl %s (fees %s) %s\n",
		t.ExitTime.UTC().Format(timeFmt), t.Side, t.EntryReason, t.Qty.String(),
		t.EntryPrice.StringFixed(2), t.ExitPrice.StringFixed(2),
		signed(t.PnL, 4), t.TotalFees().StringFixed(4), t.ExitReason)
	return nil
}

// --- formatting helpers ---

func dec(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}

func signed(d decimal.Decimal, places int32) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(places)
	}
	return d.StringFixed(places)
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
