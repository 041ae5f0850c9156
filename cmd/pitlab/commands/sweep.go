package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/runconfig"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "파라미터 스윕 실행",
	Long: `여러 설정을 워커 풀에서 병렬 실행하고 Sharpe 기준으로 최적을 고릅니다.

각 설정은 독립 실행되며 서로 상태를 공유하지 않습니다.

Example:
  go run ./cmd/pitlab sweep --config a.yaml --config b.yaml --workers 4`,
	RunE: runSweep,
}

var (
	sweepConfigPaths []string
	sweepWorkers     int
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringArrayVar(&sweepConfigPaths, "config", nil, "백테스트 설정 파일 (반복 지정)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "동시 실행 워커 수")
	sweepCmd.MarkFlagRequired("config")
}

func runSweep(cmd *cobra.Command, args []string) error {
	printHeader("Parameter Sweep")

	configs := make([]backtest.RunConfig, 0, len(sweepConfigPaths))
	for _, path := range sweepConfigPaths {
		cfg, _, err := runconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		configs = append(configs, *cfg)
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()

	engine, _, err := d.newEngine(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("  Configs : %d\n  Workers : %d\n\n", len(configs), sweepWorkers)

	results := engine.Sweep(ctx, configs, sweepWorkers)

	for _, r := range results {
		path := sweepConfigPaths[r.Index]
		if r.Err != nil {
			fmt.Printf("  ❌ %-40s %v\n", path, r.Err)
			continue
		}
		s := r.Result.Summary
		fmt.Printf("  ✅ %-40s CAGR %6.2f%%  Sharpe %5.2f  MDD %6.2f%%\n",
			path, s.CAGR*100, s.SharpeRatio, s.MaxDrawdown*100)
	}

	best := backtest.Best(results)
	if best == nil {
		return fmt.Errorf("no configuration completed")
	}

	fmt.Println()
	printSummary(best.RunID, best.Summary)
	return nil
}
