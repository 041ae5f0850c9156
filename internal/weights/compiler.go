package weights

import (
	"sort"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// Inputs is everything one compilation needs. No hidden state: identical
// inputs always compile to identical weights.
type Inputs struct {
	Date   time.Time
	Scores map[string]float64 // current-universe scores, higher is better

	PerSymbolCap float64 // 심볼당 상한 (오버레이 캡 반영)
	PortfolioCap float64 // 포트폴리오 총 노출 상한

	TopN int // 편입 종목 수; 0이면 양수 스코어 전부

	Previous    contracts.PortfolioWeights
	TurnoverCap float64 // sum(|Δw|) 상한; 0이면 무제한
}

// Compile turns scores into a capped, turnover-damped target allocation.
// ⭐ SSOT: 스코어→비중 변환은 여기서만
//
// Order of operations: rank by score, allocate proportionally to score
// magnitude under the per-symbol cap, renormalize into the portfolio cap,
// then damp the change toward the previous allocation when it would exceed
// the turnover cap. The turnover cap is hard; exposure reduction that it
// slows down completes over the following rebalances.
func Compile(in Inputs) contracts.PortfolioWeights {
	target := allocate(in)

	if in.TurnoverCap > 0 && len(in.Previous.Weights) > 0 {
		target = damp(target, in.Previous, in.TurnoverCap)
	}

	target.Date = contracts.NormalizeDate(in.Date)
	return target
}

type candidate struct {
	symbol string
	score  float64
}

// allocate distributes the portfolio cap proportionally to score magnitude,
// water-filling around symbols pinned at the per-symbol cap.
func allocate(in Inputs) contracts.PortfolioWeights {
	out := contracts.PortfolioWeights{Weights: make(map[string]float64)}
	if in.PortfolioCap <= 0 || in.PerSymbolCap <= 0 {
		return out
	}

	ranked := make([]candidate, 0, len(in.Scores))
	for sym, score := range in.Scores {
		if score > 0 {
			ranked = append(ranked, candidate{symbol: sym, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].symbol < ranked[j].symbol
	})
	if in.TopN > 0 && len(ranked) > in.TopN {
		ranked = ranked[:in.TopN]
	}
	if len(ranked) == 0 {
		return out
	}

	budget := in.PortfolioCap
	open := ranked
	for budget > 1e-12 && len(open) > 0 {
		var scoreSum float64
		for _, c := range open {
			scoreSum += c.score
		}

		next := open[:0:0]
		var spent float64
		for _, c := range open {
			w := out.Weights[c.symbol] + budget*c.score/scoreSum
			if w >= in.PerSymbolCap {
				// 상한 고정, 초과분은 다음 라운드에서 재배분
				spent += in.PerSymbolCap - out.Weights[c.symbol]
				out.Weights[c.symbol] = in.PerSymbolCap
				continue
			}
			spent += w - out.Weights[c.symbol]
			out.Weights[c.symbol] = w
			next = append(next, c)
		}

		if len(next) == len(open) {
			// 아무도 상한에 닿지 않음: 배분 완료
			break
		}
		budget -= spent
		open = next
	}
	return out
}

// damp projects the target toward the previous allocation so the total
// absolute change stays within the turnover cap, scaling every delta by the
// same factor to preserve relative ranking.
func damp(target, prev contracts.PortfolioWeights, turnoverCap float64) contracts.PortfolioWeights {
	turnover := target.TurnoverFrom(prev)
	if turnover <= turnoverCap {
		return target
	}
	scale := turnoverCap / turnover

	out := contracts.PortfolioWeights{Weights: make(map[string]float64, len(target.Weights))}
	for sym, w := range target.Weights {
		damped := prev.Weights[sym] + scale*(w-prev.Weights[sym])
		if damped > 1e-12 {
			out.Weights[sym] = damped
		}
	}
	for sym, pw := range prev.Weights {
		if _, ok := target.Weights[sym]; ok {
			continue
		}
		// 청산 대상도 한 번에 못 털고 비례 축소
		if damped := pw * (1 - scale); damped > 1e-12 {
			out.Weights[sym] = damped
		}
	}
	return out
}
