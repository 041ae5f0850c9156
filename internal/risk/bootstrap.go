package risk

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Bootstrapper resamples a realized period-return series to estimate the
// distribution of forward returns and drawdowns.
// ⭐ SSOT: Tail-risk 추정은 여기서만
type Bootstrapper struct {
	config BootstrapConfig
	rng    *rand.Rand
}

// NewBootstrapper creates a simulator. A non-zero seed makes runs
// reproducible.
func NewBootstrapper(config BootstrapConfig) *Bootstrapper {
	defaults := DefaultBootstrapConfig()
	if config.NumSimulations <= 0 {
		config.NumSimulations = defaults.NumSimulations
	}
	if config.Horizon <= 0 {
		config.Horizon = defaults.Horizon
	}
	if config.MinSamples <= 0 {
		config.MinSamples = defaults.MinSamples
	}

	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewSource(config.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bootstrapper{config: config, rng: rng}
}

// Simulate draws Horizon-length paths from the realized returns with
// replacement and summarizes the outcome distribution.
// fail-closed: 샘플이 너무 적으면 추정하지 않음
func (b *Bootstrapper) Simulate(returns []float64) (*BootstrapResult, error) {
	if len(returns) < b.config.MinSamples {
		return nil, fmt.Errorf("need at least %d period returns, got %d", b.config.MinSamples, len(returns))
	}

	horizonReturns := make([]float64, b.config.NumSimulations)
	maxDrawdowns := make([]float64, b.config.NumSimulations)
	losses := 0

	for i := 0; i < b.config.NumSimulations; i++ {
		equity := 1.0
		peak := 1.0
		maxDD := 0.0

		for d := 0; d < b.config.Horizon; d++ {
			equity *= 1 + returns[b.rng.Intn(len(returns))]
			if equity > peak {
				peak = equity
			}
			if dd := 1 - equity/peak; dd > maxDD {
				maxDD = dd
			}
		}

		horizonReturns[i] = equity - 1
		maxDrawdowns[i] = maxDD
		if horizonReturns[i] < 0 {
			losses++
		}
	}

	var95 := CalculateVaR(horizonReturns, 0.95)
	var99 := CalculateVaR(horizonReturns, 0.99)

	sort.Float64s(maxDrawdowns)

	return &BootstrapResult{
		Config:      b.config,
		MeanReturn:  Mean(horizonReturns),
		StdDev:      StdDev(horizonReturns),
		VaR95:       var95.VaR,
		VaR99:       var99.VaR,
		CVaR95:      var95.CVaR,
		CVaR99:      var99.CVaR,
		ProbLoss:    float64(losses) / float64(b.config.NumSimulations),
		DrawdownP50: Percentile(maxDrawdowns, 50),
		DrawdownP95: Percentile(maxDrawdowns, 95),
	}, nil
}
