package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/api"
	"github.com/wonny/pitlab/internal/api/handlers"
	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/snapshot"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 + 스케줄러 실행",
	Long: `HTTP API 서버와 크론 스케줄러를 함께 실행합니다.

일일 수집, 주간 재무 수집, 주간 스냅샷 빌드가 스케줄에 따라 돌고,
API로 스냅샷/런 조회와 잡 수동 트리거가 가능합니다.

Example:
  go run ./cmd/pitlab api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	sched, err := d.newScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	snapshots := handlers.NewSnapshotHandler(snapshot.NewRepository(d.db.Pool), d.log)
	runs := handlers.NewRunHandler(backtest.NewRepository(d.db.Pool), d.log)
	jobsHandler := handlers.NewJobHandler(sched, d.log)

	router := api.NewRouter(snapshots, runs, jobsHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		d.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
