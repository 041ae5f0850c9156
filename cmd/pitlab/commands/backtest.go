package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/audit"
	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/runconfig"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "워크포워드 백테스트 실행",
	Long: `저장된 PIT 스냅샷 위에서 워크포워드 백테스트를 실행합니다.

각 윈도우의 테스트 구간만 실거래를 시뮬레이션하고, 결과 커브와
구성 스냅샷(decision snapshot)을 함께 저장합니다.

Example:
  go run ./cmd/pitlab backtest run --config configs/backtest.example.yaml
  go run ./cmd/pitlab backtest run --config configs/backtest.example.yaml --dry-run`,
}

var (
	backtestConfigPath string
	backtestDryRun     bool
)

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "단일 백테스트 실행",
	RunE:  runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestConfigPath, "config", "", "백테스트 설정 파일 (필수)")
	backtestRunCmd.Flags().BoolVar(&backtestDryRun, "dry-run", false, "저장 없이 실행")
	backtestRunCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	printHeader("Walk-Forward Backtest")

	cfg, yamlData, err := runconfig.Load(backtestConfigPath)
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()

	engine, facts, err := d.newEngine(ctx)
	if err != nil {
		return err
	}
	ingestVersion, err := facts.Version(ctx)
	if err != nil {
		return fmt.Errorf("fact store version: %w", err)
	}

	fmt.Printf("  Config  : %s\n  Run ID  : %s\n\n", backtestConfigPath, cfg.RunID)

	result, err := engine.Run(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	printSummary(result.RunID, result.Summary)
	printYearly(audit.YearlyReport(result))
	printTailRisk(result)

	if backtestDryRun {
		fmt.Println("\n⚠️  Dry run: 결과 저장 생략")
		return nil
	}

	if err := backtest.NewRepository(d.db.Pool).SaveRun(ctx, result); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	decision, err := runconfig.NewDecisionSnapshot(cfg, yamlData, ingestVersion)
	if err != nil {
		return fmt.Errorf("build decision snapshot: %w", err)
	}
	if err := audit.NewRepository(d.db.Pool).SaveDecision(ctx, decision); err != nil {
		return fmt.Errorf("save decision snapshot: %w", err)
	}

	fmt.Printf("\n✅ Run %s saved (config hash %s)\n", result.RunID, decision.ConfigHash[:12])
	return nil
}
