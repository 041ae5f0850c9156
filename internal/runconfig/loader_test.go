package runconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
start: 2015-01-02T00:00:00Z
windows:
  train_years: 3
  valid_months: 6
  test_months: 3
  step_months: 3
  label_horizon_days: 5
  label_start_offset: 1
overlay:
  tiers:
    - threshold: 0.08
      max_exposure: 0.70
    - threshold: 0.12
      max_exposure: 0.40
  max_weight: 0.10
  max_exposure: 1.00
cost:
  fee_bps: 10
  slippage_bps: 15
top_n: 20
turnover_cap: 0.30
`

func TestParse_ValidConfigGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.RunID) // 자동 생성
	assert.Equal(t, 5, cfg.RebalanceEvery)
	assert.Equal(t, 1.0, cfg.InitialEquity)
	assert.Equal(t, 240, cfg.Windows.MinTrainSessions)
	assert.Equal(t, 0.02, cfg.Overlay.HysteresisMargin)
	assert.InDelta(t, 0.0025, cfg.Cost.Rate(), 1e-12)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte(validYAML + "\nrebalanse_every: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebalanse_every")
}

func TestParse_InvalidTierOrderFails(t *testing.T) {
	bad := `
start: 2015-01-02T00:00:00Z
windows:
  train_years: 3
  valid_months: 6
  test_months: 3
  step_months: 3
  label_horizon_days: 5
  label_start_offset: 1
overlay:
  tiers:
    - threshold: 0.12
      max_exposure: 0.40
    - threshold: 0.08
      max_exposure: 0.70
  max_weight: 0.10
  max_exposure: 1.00
top_n: 20
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestParse_StepShorterThanTestFails(t *testing.T) {
	bad := `
start: 2015-01-02T00:00:00Z
windows:
  train_years: 3
  valid_months: 6
  test_months: 6
  step_months: 3
  label_horizon_days: 5
  label_start_offset: 1
overlay:
  tiers:
    - threshold: 0.10
      max_exposure: 0.50
  max_weight: 0.10
  max_exposure: 1.00
top_n: 20
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestHash_StableAndSensitive(t *testing.T) {
	cfg1, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	cfg2, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	cfg2.RunID = cfg1.RunID

	h1, err := Hash(cfg1)
	require.NoError(t, err)
	h2, err := Hash(cfg2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	cfg2.TopN = 10
	h3, err := Hash(cfg2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestLoad_RoundTripAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	cfg, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte(validYAML), raw)

	snap, err := NewDecisionSnapshot(cfg, raw, 42)
	require.NoError(t, err)
	assert.Equal(t, cfg.RunID, snap.RunID)
	assert.Equal(t, int64(42), snap.IngestVersion)
	assert.NotEmpty(t, snap.ConfigHash)
	assert.Equal(t, validYAML, snap.ConfigYAML)
}
