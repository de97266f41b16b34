// Package bootstrap builds the crawler's dependency graph from configuration.
//
// The bootstrap process follows these phases:
//   - Phase 1: Metrics - Create the run's Prometheus registry
//   - Phase 2: Page source - Start the browser renderer or build the HTTP fetcher
//   - Phase 3: Storage - Connect the enabled sinks (PostgreSQL, Elasticsearch)
//   - Phase 4: Tracker - Connect the Redis export tracker (if enabled)
//
// Startup failures in any phase are fatal. Everything opened is released by
// App.Close.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/crawler"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/retry"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

// ErrNilConfig is returned by New without a configuration.
var ErrNilConfig = errors.New("bootstrap: config is required")

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Source    crawler.PageSource
	Robots    crawler.RobotsPolicy
	Artifacts *sink.ArtifactWriter
	Sinks     []sink.Sink
	Tracker   *sink.ExportTracker

	retry   retry.Config
	closers []func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	extraSinks  []sink.Sink
	skipSource  bool
	skipStorage bool
	retry       *retry.Config
}

// WithSink adds a sink next to the configured ones.
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		o.extraSinks = append(o.extraSinks, s)
	}
}

// WithoutPageSource skips phase 2. Commands that never crawl use it.
func WithoutPageSource() Option {
	return func(o *options) {
		o.skipSource = true
	}
}

// WithoutStorage skips phases 3 and 4. Commands that only read artifacts use it.
func WithoutStorage() Option {
	return func(o *options) {
		o.skipStorage = true
	}
}

// WithRetry overrides the backoff used for connection checks.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retry = &cfg
	}
}

// New runs the bootstrap phases. On error every component opened so far is
// closed.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		log = logger.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		Artifacts: sink.NewArtifactWriter(
			cfg.Output.Dir, cfg.Output.QuestionsFile, cfg.Output.StatsFile,
		),
		retry: retry.DefaultConfig(),
	}
	if o.retry != nil {
		app.retry = *o.retry
	}
	app.retry.OnRetry = app.logRetry

	// Phase 1: Metrics
	app.Metrics = metrics.New()

	// Phase 2: Page source
	if !o.skipSource {
		if err := app.setupSource(ctx); err != nil {
			app.closeQuietly()
			return nil, fmt.Errorf("setup page source: %w", err)
		}
	}

	// Phase 3 and 4: Storage and tracker
	if !o.skipStorage && !cfg.Sink.DryRun {
		if err := app.setupSinks(ctx); err != nil {
			app.closeQuietly()
			return nil, fmt.Errorf("setup sinks: %w", err)
		}
		if err := app.setupTracker(ctx); err != nil {
			app.closeQuietly()
			return nil, fmt.Errorf("setup export tracker: %w", err)
		}
	}
	app.Sinks = append(app.Sinks, o.extraSinks...)

	log.Info("Bootstrap complete",
		logger.Bool("renderer", cfg.Renderer.Enabled),
		logger.Int("sinks", len(app.Sinks)),
		logger.Bool("tracker", app.Tracker != nil),
		logger.Bool("dry_run", cfg.Sink.DryRun),
	)

	return app, nil
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases components in reverse order of creation. It returns the
// first error and always runs every closer.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) closeQuietly() {
	if err := a.Close(); err != nil {
		a.Logger.Warn("Cleanup after failed bootstrap", logger.Error(err))
	}
}

func (a *App) logRetry(attempt int, delay time.Duration, err error) {
	a.Logger.Warn("Connection check failed, retrying",
		logger.Int("attempt", attempt),
		logger.Duration("delay", delay),
		logger.Error(err),
	)
}
