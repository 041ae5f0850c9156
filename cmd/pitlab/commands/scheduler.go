package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 단독 실행",
	Long: `API 없이 크론 스케줄러만 실행합니다.

Example:
  go run ./cmd/pitlab scheduler
  go run ./cmd/pitlab scheduler trigger daily_ingest`,
	RunE: runScheduler,
}

var schedulerTriggerCmd = &cobra.Command{
	Use:   "trigger [job]",
	Short: "잡 1회 수동 실행",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerTrigger,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerTriggerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	sched, err := d.newScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("✅ Scheduler started")
	for name, stats := range sched.Stats() {
		fmt.Printf("  - %-20s %s\n", name, stats.Schedule)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	d.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}

func runSchedulerTrigger(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	sched, err := d.newScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	if err := sched.RunJobSync(args[0]); err != nil {
		return err
	}
	fmt.Printf("✅ Job %s completed\n", args[0])
	return nil
}
