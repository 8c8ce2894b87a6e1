package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alejandrodnm/wavebot/internal/application/backtest"
	"github.com/alejandrodnm/wavebot/internal/application/research"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// PrintBacktest prints the summary of a run followed by its trades.
func (c *Console) PrintBacktest(run *backtest.Run) {
	r := run.Result
	fmt.Fprintf(c.out, "\n── BACKTEST %s ──\n", run.ID)
	fmt.Fprintf(c.out, "  Trades:        %d\n", r.Trades)
	fmt.Fprintf(c.out, "  Win rate:      %s\n", pct(r.WinRate))
	fmt.Fprintf(c.out, "  Profit factor: %s\n", r.ProfitFactor.StringFixed(2))
	fmt.Fprintf(c.out, "  Max drawdown:  %s\n", pct(r.MaxDrawdown))
	fmt.Fprintf(c.out, "  Final equity:  %s\n", r.FinalEquity.StringFixed(2))
	c.PrintTrades(run.Trades)
}

// PrintTrades prints one row per closed trade.
func (c *Console) PrintTrades(trades []domain.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  (no trades)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Side", "Entry", "Exit", "Qty", "Entry px", "Exit px", "PnL", "Fees", "Reason")
	for i, t := range trades {
		table.Append(
			strconv.Itoa(i+1),
			string(t.Side),
			t.EntryTime.UTC().Format(timeFmt),
			t.ExitTime.UTC().Format(timeFmt),
			t.Qty.String(),
			t.EntryPrice.StringFixed(2),
			t.ExitPrice.StringFixed(2),
			signed(t.PnL, 4),
			t.TotalFees().StringFixed(4),
			string(t.EntryReason)+" -> "+string(t.ExitReason),
		)
	}
	table.Render()
}

// PrintReport prints the extended metrics report.
func (c *Console) PrintReport(rep backtest.Report) {
	fmt.Fprintf(c.out, "\n── REPORT %s ──\n", rep.RunID)

	metrics := tablewriter.NewWriter(c.out)
	metrics.Header("Metric", "Net", "Gross")
	metrics.Append("Win rate", pct(rep.Net.WinRate), pct(rep.Gross.WinRate))
	metrics.Append("Avg win", rep.Net.AvgWin.StringFixed(4), rep.Gross.AvgWin.StringFixed(4))
	metrics.Append("Avg loss", rep.Net.AvgLoss.StringFixed(4), rep.Gross.AvgLoss.StringFixed(4))
	metrics.Append("Expectancy", signed(rep.Net.Expectancy, 4), signed(rep.Gross.Expectancy, 4))
	metrics.Render()

	d := rep.Distribution
	fmt.Fprintf(c.out, "  PnL p25/median/p75: %s / %s / %s\n", d.P25.StringFixed(4), d.Median.StringFixed(4), d.P75.StringFixed(4))
	fmt.Fprintf(c.out, "  Largest win/loss:   %s / %s\n", d.LargestWin.StringFixed(4), d.LargestLoss.StringFixed(4))
	fmt.Fprintf(c.out, "  Trades per month:   %s | avg holding %.0f min\n", rep.Holding.TradesPerMonth.StringFixed(2), rep.Holding.AvgMinutes)
	fmt.Fprintf(c.out, "  Avg fee per trade:  %s | fee drag %s bps\n", rep.Fees.AvgFeePerTrade.StringFixed(4), rep.Fees.FeeDragBpsPerTrade.StringFixed(2))

	if len(rep.Rejects) > 0 {
		fmt.Fprintln(c.out, "\n── REJECTS ──")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Reason", "Bars")
		for _, r := range rep.Rejects {
			tbl.Append(string(r.Reason), strconv.Itoa(r.Count))
		}
		tbl.Render()
	}

	if len(rep.LosingPatterns) > 0 {
		fmt.Fprintln(c.out, "\n── WORST PATTERNS ──")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Pattern", "Trades", "PnL")
		for _, p := range rep.LosingPatterns {
			tbl.Append(p.Pattern, strconv.Itoa(p.Trades), signed(p.PnL, 4))
		}
		tbl.Render()
	}

	c.PrintRegimes(rep.Regimes)
	if len(rep.SuggestedGate) > 0 {
		fmt.Fprintf(c.out, "  Suggested blocked buckets: %s\n", strings.Join(rep.SuggestedGate, ", "))
	}
}

// PrintRegimes prints per-bucket performance.
func (c *Console) PrintRegimes(a backtest.RegimeAnalysis) {
	fmt.Fprintln(c.out, "\n── REGIMES ──")
	th := a.Thresholds
	fmt.Fprintf(c.out, "  ATR%% low/high: %s / %s | rel volume low/high: %s / %s\n",
		th.ATRLow.StringFixed(4), th.ATRHigh.StringFixed(4), th.VolumeLow.StringFixed(2), th.VolumeHigh.StringFixed(2))
	if len(a.Buckets) == 0 {
		fmt.Fprintln(c.out, "  (no trades)")
		return
	}
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Bucket", "Trades", "Win rate", "PF", "Expectancy")
	for _, b := range a.Buckets {
		tbl.Append(b.Bucket.String(), strconv.Itoa(b.Trades), pct(b.WinRate), b.ProfitFactor.StringFixed(2), signed(b.Expectancy, 4))
	}
	tbl.Render()
}

// PrintWalkForward prints one row per fold.
func (c *Console) PrintWalkForward(folds []research.Fold) {
	fmt.Fprintf(c.out, "\n── WALK-FORWARD (%d folds) ──\n", len(folds))
	if len(folds) == 0 {
		fmt.Fprintln(c.out, "  (not enough data)")
		return
	}
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Test window", "Train n", "Train PF", "Train exp", "Test n", "Test PF", "Test exp", "Test DD", "Candidate", "Gate")
	for _, f := range folds {
		cand := f.Candidate
		tbl.Append(
			f.TestStart.UTC().Format("2006-01-02")+" .. "+f.TestEnd.UTC().Format("2006-01-02"),
			strconv.Itoa(f.TrainTrades),
			f.TrainProfitFactor.StringFixed(2),
			signed(f.TrainExpectancy, 4),
			strconv.Itoa(f.TestTrades),
			f.TestProfitFactor.StringFixed(2),
			signed(f.TestExpectancy, 4),
			pct(f.TestMaxDrawdown),
			fmt.Sprintf("zz=%s min=%s sl=%s tp=%s ts=%d",
				cand.ZigZagThreshold.String(), cand.MinScore.String(), cand.ATRStop.String(),
				cand.ATRTakeProfit.String(), cand.TimeStopBars),
			strings.Join(f.Gate, " "),
		)
	}
	tbl.Render()
}

// PrintAblation prints one row per ablation case.
func (c *Console) PrintAblation(rows []research.AblationResult) {
	fmt.Fprintln(c.out, "\n── ABLATION ──")
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Case", "Trades", "Win rate", "PF", "Max DD", "Expectancy", "Final equity")
	for _, r := range rows {
		tbl.Append(
			r.Name,
			strconv.Itoa(r.Trades),
			pct(r.Result.WinRate),
			r.Result.ProfitFactor.StringFixed(2),
			pct(r.Result.MaxDrawdown),
			signed(r.Expectancy, 4),
			r.Result.FinalEquity.StringFixed(2),
		)
	}
	tbl.Render()
}
