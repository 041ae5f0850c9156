package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/snapshot"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "PIT 스냅샷 관리",
	Long: `Point-in-time 스냅샷을 생성하고 조회합니다.

스냅샷 날짜 기준으로 그날까지 입수된 팩트만 as-of 조인됩니다.
미래 데이터는 절대 포함되지 않습니다.

Example:
  go run ./cmd/pitlab snapshot build --date 2024-06-28
  go run ./cmd/pitlab snapshot build     # 최근 거래일`,
}

var snapshotDate string

var snapshotBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "스냅샷 생성 및 저장",
	RunE:  runSnapshotBuild,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotBuildCmd)

	snapshotBuildCmd.Flags().StringVar(&snapshotDate, "date", "", "스냅샷 날짜 (YYYY-MM-DD, 기본: 최근 거래일)")
}

func runSnapshotBuild(cmd *cobra.Command, args []string) error {
	printHeader("PIT Snapshot Build")

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()

	cal, err := d.loadCalendar(ctx)
	if err != nil {
		return err
	}

	asOf := time.Now()
	if snapshotDate != "" {
		asOf, err = time.Parse("2006-01-02", snapshotDate)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
	}
	session, err := cal.SessionOnOrBefore(asOf)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	facts, prices, err := d.loadStores(ctx)
	if err != nil {
		return err
	}

	universe := cal.ActiveSymbolsSorted(session)
	fmt.Printf("  Date     : %s\n  Universe : %d symbols\n\n", session.Format("2006-01-02"), len(universe))

	result, err := snapshot.NewBuilder(facts, prices, d.log).Build(ctx, session, universe)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	if err := snapshot.NewRepository(d.db.Pool).SaveBatch(ctx, result.Rows); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if d.recorder != nil {
		d.recorder.RecordSnapshotRows(len(result.Rows), len(result.Skipped))
	}

	fmt.Printf("✅ %d rows saved (ingest version %d)\n", len(result.Rows), result.IngestVersion)
	if len(result.Skipped) > 0 {
		fmt.Printf("⚠️  %d symbols skipped (no price bar)\n", len(result.Skipped))
	}
	return nil
}
