package overlay

import (
	"fmt"

	"github.com/wonny/pitlab/internal/contracts"
)

// Policy selects how the defensive basket is ranked under risk-off.
type Policy string

const (
	// PolicyMomentum picks the candidates with the highest trailing return.
	PolicyMomentum Policy = "momentum"
	// PolicyLowVol picks the candidates with the lowest trailing volatility.
	PolicyLowVol Policy = "low_vol"
)

// Tier maps a drawdown threshold to the exposure permitted while drawdown
// stays below it. Crossing a threshold exhausts that tier's protection and
// steps exposure down to the next deeper tier's cap.
type Tier struct {
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	MaxExposure float64 `yaml:"max_exposure" json:"max_exposure"`
}

// Config holds every risk-control parameter. Validated once at run start;
// immutable afterwards.
type Config struct {
	Tiers            []Tier  `yaml:"tiers" json:"tiers"`
	HysteresisMargin float64 `yaml:"hysteresis_margin" json:"hysteresis_margin"`

	VolTarget   float64 `yaml:"vol_target" json:"vol_target"` // 0이면 변동성 타게팅 비활성
	VolLookback int     `yaml:"vol_lookback" json:"vol_lookback"`
	VolEpsilon  float64 `yaml:"vol_epsilon" json:"vol_epsilon"`

	MarketIndex            string  `yaml:"market_index" json:"market_index"`
	MarketFilterWindow     int     `yaml:"market_filter_window" json:"market_filter_window"`
	MarketFilterMultiplier float64 `yaml:"market_filter_multiplier" json:"market_filter_multiplier"`

	RiskOffDrawdown     float64  `yaml:"risk_off_drawdown" json:"risk_off_drawdown"` // 0이면 비활성
	RiskOffOnMarketOff  bool     `yaml:"risk_off_on_market_off" json:"risk_off_on_market_off"`
	DefensivePolicy     Policy   `yaml:"defensive_policy" json:"defensive_policy"`
	DefensiveCandidates []string `yaml:"defensive_candidates" json:"defensive_candidates"`
	DefensiveLookback   int      `yaml:"defensive_lookback" json:"defensive_lookback"`
	DefensiveTopK       int      `yaml:"defensive_top_k" json:"defensive_top_k"`

	MaxWeight   float64 `yaml:"max_weight" json:"max_weight"`
	MaxExposure float64 `yaml:"max_exposure" json:"max_exposure"`
}

// Defaults documented for the knobs the run configuration may omit.
const (
	DefaultHysteresisMargin   = 0.02
	DefaultVolLookback        = 60
	DefaultVolEpsilon         = 1e-8
	DefaultMarketFilterWindow = 200
	DefaultMarketFilterMult   = 0.5
	DefaultDefensiveLookback  = 60
	DefaultDefensiveTopK      = 1
)

// ApplyDefaults fills unset optional knobs.
func (c *Config) ApplyDefaults() {
	if c.HysteresisMargin == 0 {
		c.HysteresisMargin = DefaultHysteresisMargin
	}
	if c.VolLookback == 0 {
		c.VolLookback = DefaultVolLookback
	}
	if c.VolEpsilon == 0 {
		c.VolEpsilon = DefaultVolEpsilon
	}
	if c.MarketFilterWindow == 0 {
		c.MarketFilterWindow = DefaultMarketFilterWindow
	}
	if c.MarketFilterMultiplier == 0 {
		c.MarketFilterMultiplier = DefaultMarketFilterMult
	}
	if c.DefensiveLookback == 0 {
		c.DefensiveLookback = DefaultDefensiveLookback
	}
	if c.DefensiveTopK == 0 {
		c.DefensiveTopK = DefaultDefensiveTopK
	}
	if c.DefensivePolicy == "" {
		c.DefensivePolicy = PolicyMomentum
	}
	if c.MaxWeight == 0 {
		c.MaxWeight = 1
	}
	if c.MaxExposure == 0 {
		c.MaxExposure = 1
	}
}

// Validate rejects an inconsistent configuration before any state exists.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return contracts.ConfigurationError{Field: "tiers", Message: "at least one drawdown tier required"}
	}
	for i, tier := range c.Tiers {
		if tier.Threshold <= 0 || tier.Threshold >= 1 {
			return contracts.ConfigurationError{
				Field:   "tiers",
				Message: fmt.Sprintf("tier %d threshold %.4f must be in (0, 1)", i, tier.Threshold),
			}
		}
		if tier.MaxExposure < 0 || tier.MaxExposure > 1 {
			return contracts.ConfigurationError{
				Field:   "tiers",
				Message: fmt.Sprintf("tier %d exposure %.4f must be in [0, 1]", i, tier.MaxExposure),
			}
		}
		if i == 0 {
			continue
		}
		// 단조성: threshold 오름차순, exposure 비증가
		if c.Tiers[i-1].Threshold >= tier.Threshold {
			return contracts.ConfigurationError{
				Field:   "tiers",
				Message: fmt.Sprintf("thresholds must strictly ascend: tier %d (%.4f) >= tier %d (%.4f)", i-1, c.Tiers[i-1].Threshold, i, tier.Threshold),
			}
		}
		if c.Tiers[i-1].MaxExposure < tier.MaxExposure {
			return contracts.ConfigurationError{
				Field:   "tiers",
				Message: fmt.Sprintf("exposures must not increase with depth: tier %d (%.4f) < tier %d (%.4f)", i-1, c.Tiers[i-1].MaxExposure, i, tier.MaxExposure),
			}
		}
	}

	if c.HysteresisMargin < 0 {
		return contracts.ConfigurationError{Field: "hysteresis_margin", Message: "must not be negative"}
	}
	if c.VolTarget < 0 {
		return contracts.ConfigurationError{Field: "vol_target", Message: "must not be negative"}
	}
	if c.VolTarget > 0 && c.VolLookback < 2 {
		return contracts.ConfigurationError{Field: "vol_lookback", Message: "must be >= 2 when vol targeting is enabled"}
	}
	if c.MarketIndex != "" && c.MarketFilterWindow < 1 {
		return contracts.ConfigurationError{Field: "market_filter_window", Message: "must be positive"}
	}
	if c.MarketFilterMultiplier < 0 || c.MarketFilterMultiplier > 1 {
		return contracts.ConfigurationError{Field: "market_filter_multiplier", Message: "must be in [0, 1]"}
	}
	if c.RiskOffDrawdown < 0 || c.RiskOffDrawdown >= 1 {
		return contracts.ConfigurationError{Field: "risk_off_drawdown", Message: "must be in [0, 1)"}
	}
	if (c.RiskOffDrawdown > 0 || c.RiskOffOnMarketOff) && len(c.DefensiveCandidates) == 0 {
		return contracts.ConfigurationError{Field: "defensive_candidates", Message: "required when risk-off is enabled"}
	}
	switch c.DefensivePolicy {
	case PolicyMomentum, PolicyLowVol:
	default:
		return contracts.ConfigurationError{
			Field:   "defensive_policy",
			Message: fmt.Sprintf("unknown policy %q", c.DefensivePolicy),
		}
	}
	if c.MaxWeight <= 0 || c.MaxWeight > 1 {
		return contracts.ConfigurationError{Field: "max_weight", Message: "must be in (0, 1]"}
	}
	if c.MaxExposure <= 0 || c.MaxExposure > 1 {
		return contracts.ConfigurationError{Field: "max_exposure", Message: "must be in (0, 1]"}
	}
	return nil
}
