package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/pitlab/internal/contracts"
	"github.com/wonny/pitlab/pkg/logger"
	"github.com/wonny/pitlab/pkg/metrics"
	"github.com/wonny/pitlab/pkg/redis"
)

// Config bounds the collector's retry and rate behavior.
type Config struct {
	Vendor         string        // 메트릭/캐시 네임스페이스
	MaxRetries     int           // RateLimited 재시도 예산
	InitialBackoff time.Duration // 첫 재시도 대기
	MaxBackoff     time.Duration // 백오프 상한
	RatePerSecond  float64       // 로컬 토큰 버킷
	RateBurst      int

	// SharedLimit caps the vendor across all workers via Redis. Zero
	// disables the shared window and the local bucket stands alone.
	SharedLimit  int
	SharedWindow time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 2
	}
	if c.RateBurst == 0 {
		c.RateBurst = 1
	}
}

// Collector drives idempotent, rate-limited ingestion against one vendor.
// ⭐ SSOT: 수집 재시도/멱등성 정책은 여기서만
//
// Idempotency: each (symbol, endpoint, window) is fetched at most once per
// marker TTL. The marker lives in Redis when available, with an in-process
// set as fallback, so repeated batch runs neither duplicate vendor calls
// nor re-append facts the sink already has (sinks are append-only with
// conflict suppression on their natural keys).
type Collector struct {
	fetcher  contracts.Fetcher
	cache    *redis.Cache
	limiter  *rate.Limiter
	shared   *redis.RateLimiter // optional, 워커 간 공유 윈도우
	cfg      Config
	logger   *logger.Logger
	recorder *metrics.Recorder // optional

	mu   sync.Mutex
	seen map[string]bool // 로컬 멱등성 마커 (Redis 불가 시 단독 동작)
}

// NewCollector creates a collector. cache, shared and recorder may be nil.
func NewCollector(fetcher contracts.Fetcher, cache *redis.Cache, shared *redis.RateLimiter, cfg Config, log *logger.Logger, recorder *metrics.Recorder) *Collector {
	cfg.applyDefaults()
	return &Collector{
		fetcher:  fetcher,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		shared:   shared,
		cfg:      cfg,
		logger:   log,
		recorder: recorder,
		seen:     make(map[string]bool),
	}
}

// BatchResult summarizes one collection batch.
type BatchResult struct {
	Fetched  int            // 신규 수집 심볼 수
	Skipped  int            // 멱등성 마커로 건너뜀
	Records  []contracts.RawRecord
	Failures map[string]error // symbol -> terminal error
}

// Collect fetches one endpoint/window across a symbol batch. Per-symbol
// faults land in Failures; they never abort the rest of the batch.
func (c *Collector) Collect(ctx context.Context, symbols []string, endpoint string, window contracts.DateRange) (*BatchResult, error) {
	result := &BatchResult{Failures: make(map[string]error)}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records, fetched, err := c.collectOne(ctx, symbol, endpoint, window)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			result.Failures[symbol] = err
			if c.recorder != nil {
				c.recorder.RecordIngestError(c.cfg.Vendor, errorKind(err))
			}
			c.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"endpoint": endpoint,
				"error":    err.Error(),
			}).Warn("Symbol collection failed, continuing batch")
		case fetched:
			result.Fetched++
			result.Records = append(result.Records, records...)
		default:
			result.Skipped++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"vendor":   c.cfg.Vendor,
		"endpoint": endpoint,
		"window":   window.Key(),
		"fetched":  result.Fetched,
		"skipped":  result.Skipped,
		"failed":   len(result.Failures),
	}).Info("Collection batch finished")

	return result, nil
}

// collectOne fetches one (symbol, endpoint, window) with idempotency and
// bounded backoff. fetched=false means the idempotency marker was already
// set.
func (c *Collector) collectOne(ctx context.Context, symbol, endpoint string, window contracts.DateRange) ([]contracts.RawRecord, bool, error) {
	key := fmt.Sprintf("%s:%s:%s", symbol, endpoint, window.Key())
	claimed, err := c.claim(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		return nil, false, nil
	}

	records, err := c.fetchWithRetry(ctx, symbol, endpoint, window)
	if err != nil {
		// 실패한 수집은 마커를 남기지 않음: 다음 배치가 재시도
		c.release(ctx, key)
		return nil, false, err
	}
	return records, true, nil
}

func (c *Collector) fetchWithRetry(ctx context.Context, symbol, endpoint string, window contracts.DateRange) ([]contracts.RawRecord, error) {
	backoff := c.cfg.InitialBackoff

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if c.shared != nil && c.cfg.SharedLimit > 0 {
			err := c.shared.Wait(ctx, redis.RateLimitConfig{
				Key:    c.cfg.Vendor,
				Limit:  c.cfg.SharedLimit,
				Window: c.cfg.SharedWindow,
			})
			if err != nil {
				return nil, err
			}
		}
		if c.recorder != nil {
			c.recorder.RecordFetch(c.cfg.Vendor, endpoint)
		}

		started := time.Now()
		records, err := c.fetcher.Fetch(ctx, symbol, endpoint, window)
		if c.recorder != nil {
			c.recorder.RecordFetchLatency(c.cfg.Vendor, time.Since(started).Seconds())
		}
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, contracts.ErrRateLimited) {
			return nil, err
		}

		if c.recorder != nil {
			c.recorder.RecordRateLimitHit(c.cfg.Vendor)
		}
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("%s/%s: retry budget exhausted after %d attempts: %w",
				symbol, endpoint, attempt+1, err)
		}

		c.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warn("Vendor rate limit, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// claim sets the idempotency marker. The local set always participates so a
// disabled Redis degrades to per-process idempotency instead of none.
func (c *Collector) claim(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	if c.seen[key] {
		c.mu.Unlock()
		return false, nil
	}
	c.seen[key] = true
	c.mu.Unlock()

	if c.cache == nil {
		return true, nil
	}
	ok, err := c.cache.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		// Redis 장애는 수집을 막지 않음
		c.logger.WithError(err).Warn("Idempotency marker write failed, proceeding with local marker")
		return true, nil
	}
	if !ok {
		return false, nil
	}
	return true, nil
}

func (c *Collector) release(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.seen, key)
	c.mu.Unlock()
	if c.cache != nil {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.WithError(err).Warn("Idempotency marker release failed")
		}
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, contracts.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, contracts.ErrNotFound):
		return "not_found"
	default:
		return "fetch"
	}
}
