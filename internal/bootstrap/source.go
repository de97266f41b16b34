package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/crawler"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/renderer"
)

// robotsCacheTTL bounds how long a host's robots.txt is trusted.
const robotsCacheTTL = time.Hour

// setupSource builds the page source and, when enabled, the robots checker.
func (a *App) setupSource(ctx context.Context) error {
	cfg := a.Config
	fetchCfg := fetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
	}

	if cfg.Crawler.RespectRobots {
		a.Robots = fetcher.NewRobotsChecker(fetchCfg, robotsCacheTTL)
	}

	if !cfg.Renderer.Enabled {
		a.Source = crawler.NewStaticSource(fetcher.New(fetchCfg))
		a.Logger.Info("Using static page source", logger.Duration("timeout", cfg.Crawler.Timeout))
		return nil
	}

	wait, err := renderer.ParseWaitStrategy(cfg.Renderer.WaitStrategy, cfg.Renderer.WaitDelay)
	if err != nil {
		return fmt.Errorf("renderer wait strategy: %w", err)
	}

	r := renderer.New(renderer.Config{
		Headless:       cfg.Renderer.Headless,
		BlockResources: cfg.Renderer.BlockResources,
		UserAgent:      cfg.Crawler.UserAgent,
		ExecPath:       cfg.Renderer.ExecPath,
		Timeout:        cfg.Crawler.Timeout,
		Wait:           wait,
	}, a.Logger)

	if startErr := r.Start(ctx); startErr != nil {
		_ = r.Close()
		return fmt.Errorf("start renderer: %w", startErr)
	}
	a.addCloser(r.Close)

	a.Source = crawler.NewRenderedSource(r, renderer.RenderOptions{})
	a.Logger.Info("Using browser page source",
		logger.Bool("headless", cfg.Renderer.Headless),
		logger.String("wait", wait.String()),
		logger.Bool("block_resources", cfg.Renderer.BlockResources),
	)
	return nil
}
