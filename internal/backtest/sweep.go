package backtest

import (
	"context"
	"sync"
	"time"
)

// SweepResult pairs one parameter combination with its run outcome.
type SweepResult struct {
	Index  int     `json:"index"`
	Result *Result `json:"result"`
	Err    error   `json:"-"`
}

// Sweep runs every configuration concurrently on a bounded worker pool.
// Runs are embarrassingly parallel: each gets its own simulator and
// RiskState inside Run, so workers share nothing mutable. The collaborators
// behind the engine (feature source, scorer, price store) must be safe for
// concurrent reads.
// ⭐ SSOT: 파라미터 스윕 병렬화는 여기서만
func (e *Engine) Sweep(ctx context.Context, configs []RunConfig, workers int) []SweepResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	jobs := make(chan int)
	results := make([]SweepResult, len(configs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := e.Run(ctx, configs[i])
				results[i] = SweepResult{Index: i, Result: res, Err: err}
			}
		}()
	}

	started := time.Now()
	e.logger.WithFields(map[string]interface{}{
		"runs":    len(configs),
		"workers": workers,
	}).Info("Starting parameter sweep")

feed:
	for i := range configs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	completed := 0
	for _, r := range results {
		if r.Err == nil && r.Result != nil {
			completed++
		}
	}
	if e.recorder != nil {
		e.recorder.RecordBacktestLatency("sweep", time.Since(started).Seconds())
	}
	e.logger.WithFields(map[string]interface{}{
		"runs":      len(configs),
		"completed": completed,
		"duration":  time.Since(started).Seconds(),
	}).Info("Parameter sweep finished")

	return results
}

// Best returns the completed result with the highest Sharpe ratio, or nil
// when every run failed.
func Best(results []SweepResult) *Result {
	var best *Result
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		if best == nil || r.Result.Summary.SharpeRatio > best.Summary.SharpeRatio {
			best = r.Result
		}
	}
	return best
}
