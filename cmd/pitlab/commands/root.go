package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pitlab",
	Short: "pitlab - 시점 정합 퀀트 백테스팅 코어",
	Long: `pitlab Unified CLI

PIT(point-in-time) 스냅샷 기반 워크포워드 백테스팅 시스템.
수집 → 스냅샷 → 워크포워드 → 오버레이 → 성과 집계까지 한 번에.

Usage:
  go run ./cmd/pitlab [command]

Examples:
  go run ./cmd/pitlab ingest prices --from 2024-01-01
  go run ./cmd/pitlab snapshot build --date 2024-03-08
  go run ./cmd/pitlab windows plan --config configs/backtest.example.yaml
  go run ./cmd/pitlab backtest run --config configs/backtest.example.yaml
  go run ./cmd/pitlab api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
