package risk

// =============================================================================
// VaR Types
// =============================================================================

// VaRResult VaR 계산 결과
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
// - VaR=0.05 → 95% 신뢰수준에서 최대 5% 손실 가능
// - CVaR=0.07 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
}

// =============================================================================
// Bootstrap Types
// =============================================================================

// BootstrapConfig resampling 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 명시적으로 기록
type BootstrapConfig struct {
	NumSimulations int   `json:"num_simulations"` // 시뮬레이션 횟수 (기본: 10000)
	Horizon        int   `json:"horizon"`         // 리샘플링 구간 수 (기본: 12)
	Seed           int64 `json:"seed"`            // 재현성용 시드 (0=랜덤)
	MinSamples     int   `json:"min_samples"`     // 최소 샘플 수 (fail-closed, 기본: 30)
}

// DefaultBootstrapConfig 기본 설정
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		NumSimulations: 10000,
		Horizon:        12,
		MinSamples:     30,
	}
}

// BootstrapResult bootstrap 시뮬레이션 결과.
// MaxDrawdown 백분위수는 리샘플링된 경로 내 고점 대비 낙폭 분포
type BootstrapResult struct {
	Config      BootstrapConfig `json:"config"`
	MeanReturn  float64         `json:"mean_return"`
	StdDev      float64         `json:"std_dev"`
	VaR95       float64         `json:"var_95"`
	VaR99       float64         `json:"var_99"`
	CVaR95      float64         `json:"cvar_95"`
	CVaR99      float64         `json:"cvar_99"`
	ProbLoss    float64         `json:"prob_loss"`     // 구간 수익률 < 0 비율
	DrawdownP50 float64         `json:"drawdown_p50"`  // 경로별 최대 낙폭 중앙값
	DrawdownP95 float64         `json:"drawdown_p95"`  // 경로별 최대 낙폭 95백분위
}
