package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/snapshot"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "시스템 상태 요약",
	Long: `스냅샷과 최근 실행 상태를 요약해 출력합니다.

Example:
  go run ./cmd/pitlab status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	printHeader("PITLab Status")

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()

	snapshots := snapshot.NewRepository(d.db.Pool)
	latest, err := snapshots.LatestDate(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshots):
		fmt.Println("📸 Snapshots: none")
	case err != nil:
		return fmt.Errorf("latest snapshot: %w", err)
	default:
		rows, err := snapshots.LoadDate(ctx, latest)
		if err != nil {
			return fmt.Errorf("load snapshot %s: %w", latest.Format("2006-01-02"), err)
		}
		fmt.Printf("📸 Latest snapshot: %s (%d symbols)\n", latest.Format("2006-01-02"), len(rows))
	}

	runs, err := backtest.NewRepository(d.db.Pool).ListRuns(ctx, 5)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("🏃 Runs: none")
		return nil
	}

	fmt.Println("\n🏃 Recent Runs")
	for _, run := range runs {
		fmt.Printf("  %-36s  Sharpe %5.2f  MDD %6.2f%%  %s\n",
			run.RunID, run.Summary.SharpeRatio, run.Summary.MaxDrawdown*100,
			run.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
