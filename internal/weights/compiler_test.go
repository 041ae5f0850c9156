package weights

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
)

func baseInputs() Inputs {
	return Inputs{
		Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Scores: map[string]float64{
			"005930": 3.0,
			"000660": 2.0,
			"035720": 1.0,
			"051910": -0.5, // 음수 스코어는 제외
		},
		PerSymbolCap: 0.5,
		PortfolioCap: 1.0,
	}
}

func TestCompile_ScoreProportional(t *testing.T) {
	w := Compile(baseInputs())

	require.Len(t, w.Weights, 3)
	assert.NotContains(t, w.Weights, "051910")
	assert.InDelta(t, 0.5, w.Weights["005930"], 1e-9) // 3/6
	assert.InDelta(t, 1.0/3, w.Weights["000660"], 1e-9)
	assert.InDelta(t, 1.0/6, w.Weights["035720"], 1e-9)
	assert.InDelta(t, 1.0, w.TotalWeight(), 1e-9)
}

func TestCompile_PerSymbolCapWaterFill(t *testing.T) {
	in := baseInputs()
	in.PerSymbolCap = 0.3

	w := Compile(in)
	assert.InDelta(t, 0.3, w.Weights["005930"], 1e-9, "top name pinned at cap")
	// 초과분은 나머지에 스코어 비례 재배분
	assert.InDelta(t, 0.3, w.Weights["000660"], 1e-9)
	assert.InDelta(t, 0.3, w.Weights["035720"], 1e-9)
	assert.LessOrEqual(t, w.TotalWeight(), in.PortfolioCap+1e-9)
	for sym, weight := range w.Weights {
		assert.LessOrEqual(t, weight, in.PerSymbolCap+1e-9, sym)
	}
}

func TestCompile_PortfolioCapRenormalization(t *testing.T) {
	in := baseInputs()
	in.PortfolioCap = 0.4

	w := Compile(in)
	assert.InDelta(t, 0.4, w.TotalWeight(), 1e-9)
	// 상대 순위 유지
	assert.Greater(t, w.Weights["005930"], w.Weights["000660"])
	assert.Greater(t, w.Weights["000660"], w.Weights["035720"])
}

func TestCompile_TopN(t *testing.T) {
	in := baseInputs()
	in.TopN = 2

	w := Compile(in)
	require.Len(t, w.Weights, 2)
	assert.Contains(t, w.Weights, "005930")
	assert.Contains(t, w.Weights, "000660")
}

func TestCompile_TurnoverDamping(t *testing.T) {
	in := baseInputs()
	in.Previous = contracts.PortfolioWeights{Weights: map[string]float64{
		"035720": 0.5,
		"051910": 0.5,
	}}
	in.TurnoverCap = 0.3

	w := Compile(in)
	assert.LessOrEqual(t, w.TurnoverFrom(in.Previous), in.TurnoverCap+1e-9)
	// 청산 대상(051910)도 한 번에 털리지 않음
	assert.Greater(t, w.Weights["051910"], 0.0)
	assert.Less(t, w.Weights["051910"], 0.5)
	// 신규 편입은 목표 방향으로 이동
	assert.Greater(t, w.Weights["005930"], 0.0)
}

func TestCompile_TurnoverPropertyRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	for trial := 0; trial < 200; trial++ {
		scores := make(map[string]float64)
		prev := contracts.PortfolioWeights{Weights: make(map[string]float64)}
		for _, s := range symbols {
			if rng.Float64() < 0.7 {
				scores[s] = rng.NormFloat64()
			}
			if rng.Float64() < 0.5 {
				prev.Weights[s] = rng.Float64() * 0.2
			}
		}
		turnoverCap := 0.05 + rng.Float64()*0.5

		w := Compile(Inputs{
			Date:         time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Scores:       scores,
			PerSymbolCap: 0.25,
			PortfolioCap: 1.0,
			Previous:     prev,
			TurnoverCap:  turnoverCap,
		})

		assert.LessOrEqual(t, w.TurnoverFrom(prev), turnoverCap+1e-9,
			"trial %d turnover cap violated", trial)
		for sym, weight := range w.Weights {
			assert.Greater(t, weight, 0.0, "trial %d symbol %s", trial, sym)
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	in := baseInputs()
	in.Previous = contracts.PortfolioWeights{Weights: map[string]float64{"000660": 0.2}}
	in.TurnoverCap = 0.4

	first := Compile(in)
	second := Compile(in)
	assert.Equal(t, first, second)
}

func TestCompile_EmptyAndNonPositiveScores(t *testing.T) {
	w := Compile(Inputs{
		Date:         time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Scores:       map[string]float64{"005930": -1, "000660": 0},
		PerSymbolCap: 0.5,
		PortfolioCap: 1.0,
	})
	assert.Empty(t, w.Weights)
}
