package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/internal/snapshot"
	"github.com/wonny/pitlab/pkg/logger"
	"github.com/wonny/pitlab/pkg/metrics"
)

// BuilderFactory materializes a snapshot builder over fresh stores.
// 장기 실행 프로세스에서 주중 수집분이 반영되도록 매 실행마다 재적재
type BuilderFactory func(ctx context.Context) (*snapshot.Builder, error)

// SnapshotBuildJob builds the weekly PIT snapshot for the most recent
// session and persists it.
// ⭐ SSOT: 스냅샷 빌드 스케줄은 이 Job에서만
type SnapshotBuildJob struct {
	cal        *calendar.Service
	newBuilder BuilderFactory
	sink       contracts.SnapshotSink
	recorder   *metrics.Recorder // optional
	logger     *logger.Logger
}

// NewSnapshotBuildJob creates the weekly snapshot job.
func NewSnapshotBuildJob(cal *calendar.Service, newBuilder BuilderFactory, sink contracts.SnapshotSink, recorder *metrics.Recorder, log *logger.Logger) *SnapshotBuildJob {
	return &SnapshotBuildJob{
		cal:        cal,
		newBuilder: newBuilder,
		sink:       sink,
		recorder:   recorder,
		logger:     log,
	}
}

func (j *SnapshotBuildJob) Name() string { return "snapshot_build" }

// Schedule runs Sunday mornings: all of the week's filings and bars have
// landed by then.
func (j *SnapshotBuildJob) Schedule() string { return "0 0 7 * * SUN" }

func (j *SnapshotBuildJob) Run(ctx context.Context) error {
	day, err := j.cal.SessionOnOrBefore(time.Now())
	if err != nil {
		return fmt.Errorf("resolve snapshot session: %w", err)
	}

	builder, err := j.newBuilder(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot inputs: %w", err)
	}

	universe := j.cal.ActiveSymbolsSorted(day)
	result, err := builder.Build(ctx, day, universe)
	if err != nil {
		return fmt.Errorf("build snapshot %s: %w", day.Format("2006-01-02"), err)
	}

	if err := j.sink.SaveBatch(ctx, result.Rows); err != nil {
		return fmt.Errorf("save snapshot %s: %w", day.Format("2006-01-02"), err)
	}

	if j.recorder != nil {
		j.recorder.RecordSnapshotRows(len(result.Rows), len(result.Skipped))
	}
	j.logger.WithFields(map[string]interface{}{
		"date":    day.Format("2006-01-02"),
		"rows":    len(result.Rows),
		"skipped": len(result.Skipped),
		"version": result.IngestVersion,
	}).Info("Snapshot build completed")
	return nil
}
