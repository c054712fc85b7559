package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/auth"
	"github.com/ibeckermayer/xscrape/internal/browser"
	"github.com/ibeckermayer/xscrape/internal/cache"
	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/instances"
	"github.com/ibeckermayer/xscrape/internal/logger"
	"github.com/ibeckermayer/xscrape/internal/pace"
	"github.com/ibeckermayer/xscrape/internal/result"
	"github.com/ibeckermayer/xscrape/internal/retry"
	"github.com/ibeckermayer/xscrape/internal/scheduler"
	"github.com/ibeckermayer/xscrape/internal/scraper"
	"github.com/ibeckermayer/xscrape/internal/store"
	"github.com/ibeckermayer/xscrape/internal/telemetry"
	"github.com/ibeckermayer/xscrape/internal/types"
)

// Runtime owns every long-lived resource built from the configuration.
type Runtime struct {
	Orchestrator *Orchestrator
	Cache        *cache.Cache
	Ledger       *store.Ledger
	Pool         *Pool
	Instances    *instances.Client
	Telemetry    telemetry.Telemetry

	cfg *config.Config
	log zerolog.Logger
}

// Build wires the production stack: Chrome sessions, the credential pool,
// the badger cache, the sqlite ledger and the global tracer provider. The
// worker pool is started.
func Build(cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	mode, err := browser.ParseProxyMode(cfg.Proxy.Mode)
	if err != nil {
		return nil, err
	}
	creds, err := auth.NewPool(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Dir, logger.Component(log, "cache"))
	if err != nil {
		return nil, err
	}

	ledgerPath := cfg.Ledger.Path
	if ledgerPath == "" {
		dir, err := config.CacheDir()
		if err != nil {
			c.Close()
			return nil, err
		}
		ledgerPath = filepath.Join(dir, "ledger.db")
	}
	ledger, err := store.OpenLedger(ledgerPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	tel, err := telemetry.Setup(context.Background(), cfg.Telemetry, logger.Component(log, "telemetry"))
	if err != nil {
		ledger.Close()
		c.Close()
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	pacer := pace.Random{}
	pool := NewPool(cfg.Scraping.Workers, logger.Component(log, "pool"))
	pool.Start()

	orch := New(Deps{
		Provider: browser.NewChromeProvider(
			cfg.Scraping.Headless, cfg.Proxy, cfg.Scraping.LaunchInterval, logger.Component(log, "browser")),
		ProxyMode: mode,
		Auth:      auth.NewManager(creds, pacer, cfg.Pacing, logger.Component(log, "auth")),
		Scraper:   scraper.New(cfg.Scraping, cfg.Pacing, pacer, logger.Component(log, "scraper")),
		Cache:     c,
		CacheTTL:  cfg.Cache.TTL,
		Ledger:    ledger,
		Assembler: result.NewAssembler(store.JSONWriter{}, cfg.Output.Dir, logger.Component(log, "result")),
		Retry: &retry.Controller{
			MaxRetries: cfg.Scraping.MaxRetries,
			MinJitter:  cfg.Pacing.MinPause,
			MaxJitter:  cfg.Pacing.MaxPause,
			Pacer:      pacer,
			Log:        logger.Component(log, "retry"),
		},
		Pool:           pool,
		AttemptTimeout: cfg.Scraping.AttemptTimeout,
		Log:            logger.Component(log, "orchestrator"),
	})

	return &Runtime{
		Orchestrator: orch,
		Cache:        c,
		Ledger:       ledger,
		Pool:         pool,
		Instances:    instances.New(cfg.Instances.BaseURL, cfg.Instances.Timeout),
		Telemetry:    tel,
		cfg:          cfg,
		log:          log,
	}, nil
}

// Schedule registers the trending warm-up and cache housekeeping jobs. The
// returned scheduler is not started.
func (r *Runtime) Schedule() (*scheduler.Scheduler, error) {
	s, err := scheduler.New(r.cfg.Schedule.Timezone, logger.Component(r.log, "scheduler"))
	if err != nil {
		return nil, err
	}

	key, err := cache.Key(strings.TrimRight(r.cfg.Server.BaseURL, "/") + "/api/trending")
	if err != nil {
		return nil, err
	}
	if err := s.AddTrendingWarm(r.cfg.Schedule.TrendingWarm, r.WarmTrending(key)); err != nil {
		return nil, err
	}
	if err := s.AddHousekeeping(r.cfg.Schedule.Housekeeping, func(context.Context) error {
		return r.Cache.Compact()
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// WarmTrending returns a job that rescrapes trending topics into key.
func (r *Runtime) WarmTrending(key string) scheduler.Job {
	return func(ctx context.Context) error {
		env := r.Orchestrator.Refresh(ctx, types.TrendingQuery(), key)
		if env.Code != result.CodeOK {
			return fmt.Errorf("trending warm-up failed: %s", env.Message)
		}
		return nil
	}
}

// Close stops the pool, closes the stores and flushes pending spans
func (r *Runtime) Close() {
	r.Pool.Stop()
	if err := r.Ledger.Close(); err != nil {
		r.log.Warn().Err(err).Msg("failed to close ledger")
	}
	if err := r.Cache.Close(); err != nil {
		r.log.Warn().Err(err).Msg("failed to close cache")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Telemetry.Shutdown(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to flush telemetry")
	}
}
