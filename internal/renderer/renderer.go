// Package renderer drives a Chrome session through chromedp and returns
// post-script DOM snapshots.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

const (
	defaultTimeout  = 45 * time.Second
	idlePollPeriod  = 100 * time.Millisecond
	evaluateTimeout = 10 * time.Second
	windowWidth     = 1920
	windowHeight    = 1080
)

// BlockedPatterns are URL patterns the browser refuses to load when
// resource blocking is on. Scripts and documents always load.
var BlockedPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp",
	"*.css", "*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm",
}

// Config configures the browser session.
type Config struct {
	Headless       bool
	BlockResources bool
	UserAgent      string
	ExecPath       string
	Timeout        time.Duration
	Wait           WaitStrategy
}

// RenderOptions overrides session defaults for one render.
type RenderOptions struct {
	Wait    *WaitStrategy
	Timeout time.Duration
}

// Renderer owns one browser and one tab. Render calls are serialized.
type Renderer struct {
	cfg Config
	log logger.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	idle        *idleTracker
	closeOnce   sync.Once
}

// New returns an unstarted renderer.
func New(cfg Config, log logger.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Renderer{
		cfg:  cfg,
		log:  log.With(logger.Component("renderer")),
		idle: newIdleTracker(),
	}
}

// Interactive reports whether a human can see the browser window.
func (r *Renderer) Interactive() bool {
	return !r.cfg.Headless
}

// Start launches the browser. Cancelling ctx tears the browser down.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tabCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(windowWidth, windowHeight),
	)
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		r.log.Debug(fmt.Sprintf(format, args...))
	}))

	chromedp.ListenTarget(tabCtx, r.idle.observe)

	actions := []chromedp.Action{network.Enable()}
	if r.cfg.BlockResources {
		actions = append(actions, network.SetBlockedURLs(BlockedPatterns))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		allocCancel()
		return &RenderError{URL: "about:blank", Reason: ReasonSession, Err: err}
	}

	r.allocCancel = allocCancel
	r.tabCtx = tabCtx
	r.tabCancel = tabCancel

	r.log.Info("Browser session started",
		logger.Bool("headless", r.cfg.Headless),
		logger.Bool("block_resources", r.cfg.BlockResources),
		logger.String("wait", r.cfg.Wait.String()),
	)
	return nil
}

// Render navigates to pageURL, waits per the strategy and snapshots the DOM.
// The returned handle can still evaluate scripts while the session lives.
func (r *Renderer) Render(ctx context.Context, pageURL string, opts RenderOptions) (dom.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tabCtx == nil {
		return nil, &RenderError{URL: pageURL, Reason: ReasonSession, Err: ErrNotStarted}
	}
	if r.tabCtx.Err() != nil {
		return nil, &RenderError{URL: pageURL, Reason: ReasonSession, Err: ErrSessionClosed}
	}

	wait := r.cfg.Wait
	if opts.Wait != nil {
		wait = *opts.Wait
	}
	timeout := r.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	runCtx, cancel := r.runContext(ctx, timeout)
	defer cancel()

	r.idle.reset()
	if err := chromedp.Run(runCtx, chromedp.Navigate(pageURL)); err != nil {
		return nil, r.renderError(ctx, pageURL, ReasonNavigate, err)
	}

	if err := r.wait(runCtx, wait); err != nil {
		return nil, r.renderError(ctx, pageURL, ReasonTimeout, err)
	}

	var html, location string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, r.renderError(ctx, pageURL, ReasonSnapshot, err)
	}
	if location == "" {
		location = pageURL
	}

	doc, err := dom.NewDocumentFromString(location, html, dom.WithEvaluator(r.evaluate))
	if err != nil {
		return nil, &RenderError{URL: pageURL, Reason: ReasonSnapshot, Err: err}
	}
	return doc, nil
}

// Close tears down the browser. It is safe to call more than once.
func (r *Renderer) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.tabCancel != nil {
			r.tabCancel()
		}
		if r.allocCancel != nil {
			r.allocCancel()
		}
		r.log.Info("Browser session closed")
	})
	return nil
}

func (r *Renderer) wait(ctx context.Context, w WaitStrategy) error {
	switch w.kind {
	case waitDOMReady:
		return chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
	case waitFixedDelay:
		return chromedp.Run(ctx, chromedp.Sleep(w.delay))
	default:
		ticker := time.NewTicker(idlePollPeriod)
		defer ticker.Stop()
		for !r.idle.idle(networkQuietPeriod) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		return nil
	}
}

// evaluate runs a script in the tab; it backs Handle.Evaluate on snapshots.
func (r *Renderer) evaluate(ctx context.Context, script string, out any) error {
	if r.tabCtx == nil || r.tabCtx.Err() != nil {
		return ErrSessionClosed
	}
	runCtx, cancel := r.runContext(ctx, evaluateTimeout)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(script, out))
}

// runContext derives an action context from the tab that also ends when the
// caller's ctx does.
func (r *Renderer) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(r.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (r *Renderer) renderError(ctx context.Context, pageURL, reason string, err error) error {
	switch {
	case r.tabCtx.Err() != nil:
		reason = ReasonSession
	case ctx.Err() != nil:
		err = errors.Join(err, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	}
	return &RenderError{URL: pageURL, Reason: reason, Err: err}
}
