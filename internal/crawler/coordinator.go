// Package crawler drives the crawl loop: retrieve a page, discover links,
// classify, extract and deduplicate, within page and question budgets.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/classifier"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/frontier"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/normalizer"
)

var (
	// ErrEarlyAbort is recorded when consecutive failures pile up before any
	// question was found.
	ErrEarlyAbort = errors.New("crawler: too many consecutive failures with no questions found")
	// ErrNoSeed is returned when no start URL could be queued.
	ErrNoSeed = errors.New("crawler: no valid seed URL")
	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("crawler: missing dependency")
)

// RecordExtractor turns a page into raw question records.
type RecordExtractor interface {
	Extract(doc dom.Handle, sourceURL string) []domain.RawQuestion
}

// RobotsPolicy answers robots.txt questions. It is optional.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, pageURL string) (bool, error)
	CrawlDelay(host string) time.Duration
}

// Config bounds and paces one run.
type Config struct {
	StartURL               string
	SeedURLs               []string
	MaxPages               int
	MaxQuestions           int
	Delay                  time.Duration
	AuthWait               time.Duration
	ProgressInterval       time.Duration
	MaxConsecutiveFailures int
}

// Deps are the collaborators of a Coordinator. Robots and Metrics may be nil.
type Deps struct {
	Source    PageSource
	Extractor RecordExtractor
	Robots    RobotsPolicy
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Result is what a run produced.
type Result struct {
	Questions   []domain.Question
	Report      domain.StatsReport
	Frontier    []domain.FrontierEntry
	AuthSkipped int
	// Abort is ErrEarlyAbort or the context error when the run stopped early.
	Abort error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRunID sets the run id stamped on every record.
func WithRunID(id string) Option {
	return func(c *Coordinator) {
		c.runID = id
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator owns the state of one crawl run. It is not safe for
// concurrent use and runs once.
type Coordinator struct {
	cfg       Config
	source    PageSource
	extractor RecordExtractor
	robots    RobotsPolicy
	metrics   *metrics.Metrics
	log       logger.Logger

	runID   string
	now     func() time.Time
	limiter *rate.Limiter

	frontier    *frontier.Frontier
	sites       map[string]struct{}
	normalizer  *normalizer.Normalizer
	stats       domain.Stats
	consecutive int
	authSkipped int
	abort       error
	lastReport  time.Time
}

// New builds a coordinator. Zero budgets and intervals take the config
// defaults.
func New(deps Deps, cfg Config, opts ...Option) (*Coordinator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: page source", ErrMissingDependency)
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("%w: extractor", ErrMissingDependency)
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	c := &Coordinator{
		cfg:       withDefaults(cfg),
		source:    deps.Source,
		extractor: deps.Extractor,
		robots:    deps.Robots,
		metrics:   m,
		log:       log.With(logger.Component("crawler")),
		now:       time.Now,
		frontier:  frontier.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}

	c.limiter = newLimiter(c.cfg.Delay)
	c.normalizer = normalizer.New(c.runID, normalizer.WithClock(c.now))
	return c, nil
}

func withDefaults(cfg Config) Config {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = config.DefaultMaxPages
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = config.DefaultMaxQuestions
	}
	if cfg.AuthWait <= 0 {
		cfg.AuthWait = config.DefaultAuthWait
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = config.DefaultProgressInterval
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = config.DefaultMaxConsecutiveFailures
	}
	return cfg
}

// newLimiter spaces request starts by delay. The first request is immediate.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// RunID returns the id stamped on this run's records.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run crawls until the frontier is empty, a budget is reached, the early
// abort triggers or ctx ends. Only a missing seed is an error; everything
// else ends with partial results.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if !c.seed() {
		return nil, ErrNoSeed
	}

	c.stats = domain.Stats{RunID: c.runID, StartTime: c.now()}
	c.lastReport = c.stats.StartTime

	c.log.Info("Crawl started",
		logger.String("run_id", c.runID),
		logger.String("source", c.source.Name()),
		logger.String("start_url", c.cfg.StartURL),
		logger.Strings("seed_urls", c.cfg.SeedURLs),
		logger.Time("started_at", c.stats.StartTime),
		logger.Int("max_pages", c.cfg.MaxPages),
		logger.Int("max_questions", c.cfg.MaxQuestions),
		logger.Duration("delay", c.cfg.Delay),
	)

	for c.canContinue() {
		if err := ctx.Err(); err != nil {
			c.abort = err
			break
		}

		entry, ok := c.frontier.Next()
		if !ok {
			break
		}

		c.processEntry(ctx, entry)
		c.metrics.SetProgress(c.frontier.Len(), c.stats.QuestionsFound, c.consecutive)
		c.maybeReportProgress()

		if c.abort != nil {
			break
		}
	}

	return c.finish(), nil
}

// seed queues the start and extra seed URLs and records their registrable
// domains. Only those domains are crawled.
func (c *Coordinator) seed() bool {
	c.sites = make(map[string]struct{})
	seeded := false
	for _, u := range append([]string{c.cfg.StartURL}, c.cfg.SeedURLs...) {
		if u == "" || !c.frontier.Seed(u) {
			continue
		}
		seeded = true
		if host, err := frontier.ExtractHost(u); err == nil {
			c.sites[frontier.RegistrableDomain(host)] = struct{}{}
		}
	}
	return seeded
}

// onSite reports whether rawURL belongs to one of the seeded sites.
func (c *Coordinator) onSite(rawURL string) bool {
	host, err := frontier.ExtractHost(rawURL)
	if err != nil {
		return false
	}
	_, ok := c.sites[frontier.RegistrableDomain(host)]
	return ok
}

func (c *Coordinator) canContinue() bool {
	return c.frontier.Len() > 0 &&
		c.stats.PagesScanned < c.cfg.MaxPages &&
		c.stats.QuestionsFound < c.cfg.MaxQuestions
}

// processEntry handles one dequeued URL. It may set c.abort.
func (c *Coordinator) processEntry(ctx context.Context, entry domain.FrontierEntry) {
	if !c.allowedByRobots(ctx, entry.URL) {
		return
	}

	if err := c.limiter.Wait(ctx); err != nil {
		// The entry stays queued; the run is ending.
		c.abort = ctxErrOr(ctx, err)
		return
	}

	started := c.now()
	doc, err := c.source.Load(ctx, entry.URL)
	elapsed := c.now().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			c.abort = ctx.Err()
			return
		}
		c.recordFailure(entry.URL, err, elapsed)
		return
	}

	if final := doc.URL(); final != "" && !c.onSite(final) {
		c.frontier.MarkFailed(entry.URL, fetcher.ReasonOffsiteRedirect)
		c.metrics.ObserveFailure(fetcher.ReasonOffsiteRedirect)
		c.log.Info("Redirected off site, skipping",
			logger.String("url", entry.URL),
			logger.String("final_url", final),
		)
		return
	}

	c.frontier.MarkVisited(entry.URL)
	c.stats.PagesScanned++
	c.consecutive = 0

	if classifier.RequiresAuth(doc) {
		loggedIn, cleared := c.waitForLogin(ctx, entry.URL)
		if !cleared {
			// Discovery still runs; only extraction is skipped.
			c.discover(doc, entry.URL)
			c.authSkipped++
			c.metrics.ObservePage(c.source.Name(), metrics.PageAuthSkipped, elapsed)
			c.log.Warn("Skipping extraction behind authentication", logger.String("url", entry.URL))
			return
		}
		doc = loggedIn
	}
	c.metrics.ObservePage(c.source.Name(), metrics.PageVisited, elapsed)

	c.discover(doc, entry.URL)
	c.extract(doc, entry.URL)
}

func (c *Coordinator) allowedByRobots(ctx context.Context, pageURL string) bool {
	if c.robots == nil {
		return true
	}

	allowed, err := c.robots.IsAllowed(ctx, pageURL)
	if err != nil {
		c.log.Debug("Robots check failed, allowing", logger.String("url", pageURL), logger.Error(err))
		return true
	}
	if !allowed {
		c.frontier.MarkFailed(pageURL, fetcher.ReasonRobotsBlocked)
		c.metrics.ObserveFailure(fetcher.ReasonRobotsBlocked)
		c.log.Info("Blocked by robots.txt", logger.String("url", pageURL))
		return false
	}

	if host, hostErr := frontier.ExtractHost(pageURL); hostErr == nil {
		if d := c.robots.CrawlDelay(host); d > c.cfg.Delay {
			c.limiter.SetLimit(rate.Every(d))
		}
	}
	return true
}

func (c *Coordinator) recordFailure(pageURL string, err error, elapsed time.Duration) {
	reason := failureReason(err)
	c.frontier.MarkFailed(pageURL, reason)
	c.stats.Errors++
	c.consecutive++
	c.metrics.ObservePage(c.source.Name(), metrics.PageFailed, elapsed)
	c.metrics.ObserveFailure(reason)

	c.log.Warn("Page failed",
		logger.String("url", pageURL),
		logger.String("reason", reason),
		logger.Int("consecutive_failures", c.consecutive),
		logger.Error(err),
	)

	if c.consecutive >= c.cfg.MaxConsecutiveFailures && c.stats.QuestionsFound == 0 {
		c.abort = ErrEarlyAbort
		c.log.Error("Aborting crawl",
			logger.Int("consecutive_failures", c.consecutive),
			logger.Error(ErrEarlyAbort),
		)
	}
}

// waitForLogin gives a person AuthWait to log in through a visible browser,
// then loads the page once more. It reports whether the wall is gone.
func (c *Coordinator) waitForLogin(ctx context.Context, pageURL string) (dom.Handle, bool) {
	if !c.source.Interactive() {
		return nil, false
	}

	c.log.Warn("Authentication required, log in through the browser window",
		logger.String("url", pageURL),
		logger.Duration("wait", c.cfg.AuthWait),
	)

	timer := time.NewTimer(c.cfg.AuthWait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, false
	case <-timer.C:
	}

	doc, err := c.source.Load(ctx, pageURL)
	if err != nil {
		c.log.Warn("Reload after login wait failed", logger.String("url", pageURL), logger.Error(err))
		return nil, false
	}
	if classifier.RequiresAuth(doc) {
		return nil, false
	}

	c.log.Info("Authentication wall cleared", logger.String("url", pageURL))
	return doc, true
}

func (c *Coordinator) discover(doc dom.Handle, pageURL string) {
	base := doc.URL()
	if base == "" {
		base = pageURL
	}

	queued := 0
	for _, link := range frontier.ExtractLinks(doc, base) {
		if !c.onSite(link) || !frontier.IsLikelyContentURL(link) {
			continue
		}
		if c.frontier.Enqueue(link, pageURL) {
			queued++
		}
	}

	if queued > 0 {
		c.log.Debug("Discovered links",
			logger.String("url", pageURL),
			logger.Int("queued", queued),
			logger.Int("frontier", c.frontier.Len()),
		)
	}
}

func (c *Coordinator) extract(doc dom.Handle, pageURL string) {
	result := classifier.Classify(doc)
	if !result.HasContent {
		return
	}

	raws := c.extractor.Extract(doc, pageURL)
	if len(raws) == 0 {
		c.log.Debug("No questions extracted",
			logger.String("url", pageURL),
			logger.Bool("structural", result.Structural),
		)
		return
	}
	c.metrics.ObserveExtraction(raws[0].Strategy, len(raws))

	added := c.normalizer.Add(raws...)
	c.normalizer.Truncate(c.cfg.MaxQuestions)
	c.stats.QuestionsFound = c.normalizer.Len()

	c.log.Info("Questions extracted",
		logger.String("url", pageURL),
		logger.String("strategy", raws[0].Strategy),
		logger.Int("extracted", len(raws)),
		logger.Int("new", added),
		logger.Int("total", c.stats.QuestionsFound),
	)
}

func (c *Coordinator) maybeReportProgress() {
	now := c.now()
	if now.Sub(c.lastReport) < c.cfg.ProgressInterval {
		return
	}
	c.lastReport = now
	c.logProgress("Crawl progress")
}

func (c *Coordinator) logProgress(msg string) {
	c.log.Info(msg,
		logger.Int("pages_scanned", c.stats.PagesScanned),
		logger.Int("questions_found", c.stats.QuestionsFound),
		logger.Int("errors", c.stats.Errors),
		logger.Int("queued", c.frontier.Len()),
		logger.Int("known", c.frontier.Known()),
		logger.Duration("elapsed", c.now().Sub(c.stats.StartTime)),
	)
}

func (c *Coordinator) finish() *Result {
	c.stats.EndTime = c.now()

	report := domain.NewStatsReport(c.stats, c.frontier.Visited(), c.frontier.Failed())
	if c.abort != nil {
		report.Aborted = true
		report.AbortReason = c.abort.Error()
	}

	c.metrics.ObserveRun(c.stats.Duration(), c.abort != nil)
	c.logProgress("Crawl finished")

	return &Result{
		Questions:   c.normalizer.Questions(),
		Report:      report,
		Frontier:    c.frontier.Entries(),
		AuthSkipped: c.authSkipped,
		Abort:       c.abort,
	}
}

// ctxErrOr prefers the context error so callers can match context.Canceled.
func ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
