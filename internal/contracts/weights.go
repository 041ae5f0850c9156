package contracts

import (
	"math"
	"sort"
	"time"
)

// PortfolioWeights is the target allocation for one rebalance date.
// 리밸런스 날짜당 한 번 생성, 이후 불변
type PortfolioWeights struct {
	Date    time.Time          `json:"date"`
	Weights map[string]float64 `json:"weights"` // symbol -> weight in [0,1]
}

// TotalWeight returns the summed gross exposure.
func (p PortfolioWeights) TotalWeight() float64 {
	var total float64
	for _, w := range p.Weights {
		total += w
	}
	return total
}

// TurnoverFrom returns sum(|w_new - w_prev|) against a previous allocation.
// Symbols present on only one side count at their full weight.
func (p PortfolioWeights) TurnoverFrom(prev PortfolioWeights) float64 {
	var turnover float64
	for sym, w := range p.Weights {
		turnover += math.Abs(w - prev.Weights[sym])
	}
	for sym, w := range prev.Weights {
		if _, ok := p.Weights[sym]; !ok {
			turnover += w
		}
	}
	return turnover
}

// Symbols returns held symbols in deterministic (sorted) order.
func (p PortfolioWeights) Symbols() []string {
	syms := make([]string, 0, len(p.Weights))
	for sym := range p.Weights {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}
