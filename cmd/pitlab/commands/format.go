package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/pitlab/internal/audit"
	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/risk"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// printHeader prints a section header.
func printHeader(title string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
}

// printSummary prints one run's performance block.
func printSummary(runID string, s backtest.Summary) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Printf("Run ID: %s\n\n", runID)

	fmt.Println("💰 Performance")
	fmt.Printf("Total Return:    %+.2f%%\n", s.TotalReturn*100)
	fmt.Printf("CAGR:            %+.2f%%\n", s.CAGR*100)
	fmt.Printf("Volatility:      %.2f%%\n", s.Volatility*100)
	fmt.Println()

	fmt.Println("📉 Risk Metrics")
	fmt.Printf("Sharpe Ratio:    %.2f%s\n", s.SharpeRatio, sharpeBadge(s.SharpeRatio))
	fmt.Printf("Sortino Ratio:   %.2f\n", s.SortinoRatio)
	fmt.Printf("Max Drawdown:    %.2f%%%s\n", s.MaxDrawdown*100, drawdownBadge(s.MaxDrawdown))
	fmt.Printf("52W Drawdown:    %.2f%%\n", s.MaxDrawdown52W*100)
	fmt.Println()

	fmt.Println("💹 Trading Metrics")
	fmt.Printf("Periods:         %d (%d win / %d loss)\n", s.Periods, s.WinningPeriods, s.LosingPeriods)
	fmt.Printf("Avg Turnover:    %.2f%%\n", s.AvgTurnover*100)
	fmt.Printf("Final Equity:    %.4f (from %.4f)\n", s.FinalEquity, s.InitialEquity)
	fmt.Println()
}

// printYearly prints the per-year attribution table.
func printYearly(years []audit.YearReport) {
	if len(years) == 0 {
		return
	}
	fmt.Println("📅 Yearly Breakdown")
	fmt.Printf("%-6s %10s %10s %8s %8s %10s\n", "Year", "Return", "MDD", "Periods", "Win%", "Exposure")
	for _, y := range years {
		fmt.Printf("%-6d %+9.2f%% %9.2f%% %8d %7.1f%% %9.2f%%\n",
			y.Year, y.Return*100, y.MaxDrawdown*100, y.Periods, y.WinRate*100, y.AvgExposure*100)
	}
	fmt.Println()
}

// printTailRisk prints the bootstrap tail-risk block. Skipped silently
// when the curve is too short to estimate from.
func printTailRisk(result *backtest.Result) {
	returns := make([]float64, 0, len(result.Curve))
	for _, p := range result.Curve {
		returns = append(returns, p.Return)
	}

	cfg := risk.DefaultBootstrapConfig()
	cfg.Seed = 1 // 같은 커브에 같은 리포트
	report, err := risk.NewBootstrapper(cfg).Simulate(returns)
	if err != nil {
		return
	}

	fmt.Println("🎲 Tail Risk (bootstrap, 12 periods ahead)")
	fmt.Printf("VaR 95/99:       %.2f%% / %.2f%%\n", report.VaR95*100, report.VaR99*100)
	fmt.Printf("CVaR 95/99:      %.2f%% / %.2f%%\n", report.CVaR95*100, report.CVaR99*100)
	fmt.Printf("P(loss):         %.1f%%\n", report.ProbLoss*100)
	fmt.Printf("Drawdown p50/95: %.2f%% / %.2f%%\n", report.DrawdownP50*100, report.DrawdownP95*100)
	fmt.Println()
}

func sharpeBadge(sharpe float64) string {
	switch {
	case sharpe > 2.0:
		return " 🌟 (Excellent)"
	case sharpe > 1.0:
		return " ✅ (Good)"
	case sharpe > 0.5:
		return " ⚠️  (Fair)"
	default:
		return " ❌ (Poor)"
	}
}

func drawdownBadge(dd float64) string {
	switch {
	case dd < 0.10:
		return " 🌟 (Excellent)"
	case dd < 0.20:
		return " ✅ (Good)"
	case dd < 0.30:
		return " ⚠️  (Fair)"
	default:
		return " ❌ (High)"
	}
}
