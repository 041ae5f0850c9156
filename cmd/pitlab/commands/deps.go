package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/backtest"
	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/external/dart"
	"github.com/wonny/pitlab/internal/external/krx"
	"github.com/wonny/pitlab/internal/external/naver"
	"github.com/wonny/pitlab/internal/fundamentals"
	"github.com/wonny/pitlab/internal/ingest"
	"github.com/wonny/pitlab/internal/marketdata"
	"github.com/wonny/pitlab/internal/scheduler"
	"github.com/wonny/pitlab/internal/scheduler/jobs"
	"github.com/wonny/pitlab/internal/scoring"
	"github.com/wonny/pitlab/internal/snapshot"
	"github.com/wonny/pitlab/pkg/config"
	"github.com/wonny/pitlab/pkg/database"
	"github.com/wonny/pitlab/pkg/httputil"
	"github.com/wonny/pitlab/pkg/logger"
	"github.com/wonny/pitlab/pkg/metrics"
	"github.com/wonny/pitlab/pkg/redis"
)

// deps is the shared wiring every command builds on. Commands take only
// the slices they need; 전체 그래프 조립은 여기서만.
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	recorder *metrics.Recorder
}

// initDeps loads config, logger and the database connection.
func initDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{
		Level:   level,
		Format:  cfg.LogFormat,
		Service: "pitlab",
	})

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	return &deps{cfg: cfg, log: log, db: db, recorder: recorder}, nil
}

func (d *deps) close() {
	d.db.Close()
}

// loadCalendar loads the session calendar and symbol lifecycle.
func (d *deps) loadCalendar(ctx context.Context) (*calendar.Service, error) {
	cal, err := calendar.NewRepository(d.db.Pool).LoadService(ctx)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	return cal, nil
}

// loadStores materializes the fact and price stores from the database.
func (d *deps) loadStores(ctx context.Context) (*fundamentals.Store, *marketdata.Store, error) {
	facts, err := fundamentals.NewRepository(d.db.Pool).LoadAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load fundamental facts: %w", err)
	}
	prices, err := marketdata.NewRepository(d.db.Pool).LoadStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load price bars: %w", err)
	}
	return facts, prices, nil
}

// newIngestService wires the three vendor collectors to the database sinks.
func (d *deps) newIngestService() (*ingest.Service, error) {
	redisClient, err := redis.New(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	// 멱등성 마커는 하루 뒤 만료: 다음 장 마감 배치는 새로 수집
	cache := redis.NewCache(redisClient, "ingest", 24*time.Hour)
	shared := redis.NewRateLimiter(redisClient, "ingest")

	collectorCfg := func(vendor string) ingest.Config {
		return ingest.Config{
			Vendor:         vendor,
			MaxRetries:     d.cfg.Ingest.MaxRetries,
			InitialBackoff: d.cfg.Ingest.InitialBackoff,
			MaxBackoff:     d.cfg.Ingest.MaxBackoff,
			RatePerSecond:  d.cfg.Ingest.RatePerSecond,
			RateBurst:      d.cfg.Ingest.RateBurst,
			SharedLimit:    d.cfg.Ingest.SharedLimit,
			SharedWindow:   d.cfg.Ingest.SharedWindow,
		}
	}

	httpClient := httputil.New(d.log)
	naverClient := naver.NewClient(httpClient, d.log)
	dartClient := dart.NewClient(d.cfg.DART.APIKey, d.log)
	krxClient := krx.NewClient(d.log)

	prices := ingest.NewCollector(naverClient, cache, shared, collectorCfg("naver"), d.log, d.recorder)
	financials := ingest.NewCollector(dartClient, cache, shared, collectorCfg("dart"), d.log, d.recorder)
	marketCaps := ingest.NewCollector(krxClient, cache, shared, collectorCfg("krx"), d.log, d.recorder)

	return ingest.NewService(
		prices, financials, marketCaps,
		fundamentals.NewRepository(d.db.Pool),
		marketdata.NewRepository(d.db.Pool),
		d.log,
	), nil
}

// newScheduler builds the cron scheduler with the standing jobs registered.
func (d *deps) newScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	cal, err := d.loadCalendar(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := d.newIngestService()
	if err != nil {
		return nil, err
	}

	// 유니버스는 실행 시점의 최근 거래일 기준
	universe := func() []string {
		session, err := cal.SessionOnOrBefore(time.Now())
		if err != nil {
			d.log.WithError(err).Warn("No session for universe resolution")
			return nil
		}
		return cal.ActiveSymbolsSorted(session)
	}

	newBuilder := func(ctx context.Context) (*snapshot.Builder, error) {
		facts, prices, err := d.loadStores(ctx)
		if err != nil {
			return nil, err
		}
		return snapshot.NewBuilder(facts, prices, d.log), nil
	}

	sched := scheduler.New(d.log)
	standing := []scheduler.Job{
		jobs.NewDailyIngestJob(svc, universe, []string{"KOSPI", "KOSDAQ"}, []string{"KOSPI", "KOSDAQ"}, d.log),
		jobs.NewFinancialsIngestJob(svc, universe, d.log),
		jobs.NewSnapshotBuildJob(cal, newBuilder, snapshot.NewRepository(d.db.Pool), d.recorder, d.log),
	}
	for _, job := range standing {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}
	return sched, nil
}

// newEngine assembles the walk-forward engine over persisted snapshots.
// The fact store is returned alongside so callers can pin the ingest
// version the run saw without a second load.
func (d *deps) newEngine(ctx context.Context) (*backtest.Engine, *fundamentals.Store, error) {
	cal, err := d.loadCalendar(ctx)
	if err != nil {
		return nil, nil, err
	}
	facts, prices, err := d.loadStores(ctx)
	if err != nil {
		return nil, nil, err
	}

	features := backtest.NewDatasetBuilder(cal, snapshot.NewRepository(d.db.Pool), prices)
	scorer := scoring.NewBaselineScorer(d.log)

	return backtest.NewEngine(cal, features, scorer, prices, d.log, d.recorder), facts, nil
}
