package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	runs     int
	err      error
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func newTestScheduler() *Scheduler {
	s := New(logger.Nop())
	// 테스트에서 재시도 대기로 느려지지 않도록
	s.maxRetries = 1
	s.retryDelay = time.Millisecond
	s.jobTimeout = time.Second
	return s
}

func TestAddJobRejectsDuplicateName(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&stubJob{name: "ingest", schedule: "0 0 18 * * MON-FRI"}))
	err := s.AddJob(&stubJob{name: "ingest", schedule: "0 0 19 * * *"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := newTestScheduler()

	err := s.AddJob(&stubJob{name: "broken", schedule: "not a cron spec"})
	require.Error(t, err)
}

func TestRunJobSyncRecordsSuccess(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "snapshot", schedule: "0 0 7 * * SUN"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJobSync("snapshot"))
	assert.Equal(t, 1, job.runs)

	stats := s.Stats()["snapshot"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
	assert.Empty(t, stats.LastError)
}

func TestRunJobSyncRetriesThenReportsFailure(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "flaky", schedule: "0 0 7 * * SUN", err: errors.New("vendor down")}
	require.NoError(t, s.AddJob(job))

	err := s.RunJobSync("flaky")
	require.Error(t, err)
	// 최초 시도 + 재시도 1회
	assert.Equal(t, 2, job.runs)

	stats := s.Stats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.InDelta(t, 0.0, stats.SuccessRate, 1e-9)
	assert.Contains(t, stats.LastError, "vendor down")
}

func TestRunJobUnknownName(t *testing.T) {
	s := newTestScheduler()

	require.Error(t, s.RunJob("missing"))
	require.Error(t, s.RunJobSync("missing"))
}
