package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	robotsTxtPath         = "/robots.txt"
	maxRobotsBodyBytes    = 512 * 1024
)

// RobotsChecker answers robots.txt questions for the crawler's user agent.
// Rules are fetched once per host and cached for the TTL. A robots.txt that
// is missing, unreadable or unparsable allows everything.
type RobotsChecker struct {
	fetcher   *Fetcher
	userAgent string
	cacheTTL  time.Duration

	mu    sync.RWMutex
	hosts map[string]robotsRules
}

type robotsRules struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

func (r robotsRules) allowAll() bool {
	return r.data == nil
}

// NewRobotsChecker creates a checker that fetches with the given request
// identity. A zero cacheTTL means 24 hours.
func NewRobotsChecker(cfg Config, cacheTTL time.Duration, opts ...Option) *RobotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = defaultRobotsCacheTTL
	}
	cfg.MaxBodyBytes = maxRobotsBodyBytes

	return &RobotsChecker{
		fetcher:   New(cfg, opts...),
		userAgent: cfg.UserAgent,
		cacheTTL:  cacheTTL,
		hosts:     make(map[string]robotsRules),
	}
}

// IsAllowed reports whether rawURL may be fetched.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	rules := r.rulesFor(ctx, parsed.Scheme, host)
	if rules.allowAll() {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	return rules.data.TestAgent(path, r.userAgent), nil
}

// CrawlDelay returns the Crawl-delay for host, or 0 when none is known.
func (r *RobotsChecker) CrawlDelay(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules, ok := r.hosts[strings.ToLower(host)]
	if !ok || rules.allowAll() {
		return 0
	}

	group := rules.data.FindGroup(r.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

func (r *RobotsChecker) rulesFor(ctx context.Context, scheme, host string) robotsRules {
	r.mu.RLock()
	rules, ok := r.hosts[host]
	r.mu.RUnlock()

	if ok && time.Since(rules.fetchedAt) <= r.cacheTTL {
		return rules
	}

	if scheme == "" {
		scheme = "https"
	}

	rules = robotsRules{fetchedAt: time.Now()}
	if resp, err := r.fetcher.Fetch(ctx, scheme+"://"+host+robotsTxtPath); err == nil {
		if data, parseErr := robotstxt.FromBytes(resp.Body); parseErr == nil {
			rules.data = data
		}
	}

	r.mu.Lock()
	r.hosts[host] = rules
	r.mu.Unlock()

	return rules
}
