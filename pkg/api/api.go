// pkg/api/api.go

// Package api is the embedding surface: one Client wires the registry,
// identity rotator, guarded fetcher, browser pool, and extraction cascade
// from a single configuration.
package api

import (
	"context"

	"github.com/steltix/newsgrab/internal/browser"
	"github.com/steltix/newsgrab/internal/config"
	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/extract"
	"github.com/steltix/newsgrab/internal/fetch"
	"github.com/steltix/newsgrab/internal/identity"
	"github.com/steltix/newsgrab/internal/monitoring"
	"github.com/steltix/newsgrab/internal/output"
	"github.com/steltix/newsgrab/internal/utils"
	"github.com/steltix/newsgrab/pkg/types"
)

// Re-exported so embedders configure through this package alone.
type Config = config.Config

// ArticleResult is the extraction record.
type ArticleResult = types.ArticleResult

// Client is the assembled pipeline.
type Client struct {
	cfg *config.Config
	log utils.Logger

	registry     *domain.Registry
	rotator      *identity.Rotator
	dead         *deadcache.Cache
	fetcher      *fetch.Fetcher
	pool         *browser.Pool
	orchestrator *extract.Orchestrator
	metrics      *monitoring.MetricsManager
	outputs      *output.Manager
}

// NewClient assembles a pipeline from the configuration. A nil config
// selects defaults.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	log := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.Logging.Level))

	rng := utils.NewRand()
	metrics := monitoring.NewMetricsManager(cfg.Metrics)

	registry := domain.NewRegistry(cfg.Domain, rng)
	rotator := identity.NewRotator(cfg.Identity, rng, log)
	dead := deadcache.New(cfg.DeadTTL)
	fetcher := fetch.New(cfg.Fetch, registry, rotator, dead, log, metrics)

	var pool *browser.Pool
	if cfg.Browser.Enabled {
		pool = browser.NewPool(cfg.Browser, nil, log)
		pool.SetRebuildHook(metrics.RecordBrowserRebuild)
	}

	var renderer extract.Renderer
	if pool != nil {
		renderer = pool
	}
	orchestrator := extract.NewOrchestrator(cfg.Extract, extract.DefaultStrategies(fetcher, renderer, registry), dead, log)
	orchestrator.SetTelemetry(metrics)

	c := &Client{
		cfg:          cfg,
		log:          log,
		registry:     registry,
		rotator:      rotator,
		dead:         dead,
		fetcher:      fetcher,
		pool:         pool,
		orchestrator: orchestrator,
		metrics:      metrics,
	}

	if cfg.Output != nil {
		manager, err := output.NewManager(*cfg.Output)
		if err != nil {
			return nil, err
		}
		c.outputs = manager
	}
	return c, nil
}

// Extract runs the cascade for one URL.
func (c *Client) Extract(ctx context.Context, url string) (*types.ArticleResult, error) {
	return c.orchestrator.Extract(ctx, extract.Request{URL: url})
}

// ExtractHTML runs the cascade over caller-supplied HTML with no network
// access.
func (c *Client) ExtractHTML(ctx context.Context, url, html string) (*types.ArticleResult, error) {
	return c.orchestrator.Extract(ctx, extract.Request{URL: url, HTML: html})
}

// WriteResults persists a batch through the configured output sink.
func (c *Client) WriteResults(results []*types.ArticleResult) error {
	if c.outputs == nil {
		return nil
	}
	return c.outputs.Write(results)
}

// Metrics exposes the Prometheus surface for mounting on an HTTP server.
func (c *Client) Metrics() *monitoring.MetricsManager {
	return c.metrics
}

// Logger exposes the configured logger.
func (c *Client) Logger() utils.Logger {
	return c.log
}

// Close releases the browser session, if any.
func (c *Client) Close() error {
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}
