package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/runconfig"
	"github.com/wonny/pitlab/internal/walkforward"
)

// windowsCmd represents the windows command
var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "워크포워드 윈도우 계획",
	Long: `설정 파일의 윈도우 파라미터로 워크포워드 윈도우를 계산해 출력합니다.

실제 백테스트 없이 윈도우 경계만 검증할 때 사용합니다.

Example:
  go run ./cmd/pitlab windows plan --config configs/backtest.example.yaml`,
}

var windowsConfigPath string

var windowsPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "윈도우 경계 출력",
	RunE:  runWindowsPlan,
}

func init() {
	rootCmd.AddCommand(windowsCmd)
	windowsCmd.AddCommand(windowsPlanCmd)

	windowsPlanCmd.Flags().StringVar(&windowsConfigPath, "config", "", "백테스트 설정 파일 (필수)")
	windowsPlanCmd.MarkFlagRequired("config")
}

func runWindowsPlan(cmd *cobra.Command, args []string) error {
	printHeader("Walk-Forward Window Plan")

	cfg, _, err := runconfig.Load(windowsConfigPath)
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	cal, err := d.loadCalendar(cmd.Context())
	if err != nil {
		return err
	}

	planner, err := walkforward.NewPlanner(cal, cfg.Windows)
	if err != nil {
		return fmt.Errorf("build planner: %w", err)
	}
	windows, err := planner.Plan(cfg.Start)
	if err != nil {
		return fmt.Errorf("plan windows: %w", err)
	}

	fmt.Printf("  Start   : %s\n  Windows : %d\n\n", cfg.Start.Format("2006-01-02"), len(windows))
	for i, w := range windows {
		fmt.Printf("  [%2d] %s\n", i+1, w.String())
	}
	return nil
}
