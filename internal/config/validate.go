package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the whole document and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.Crawler.Validate,
		c.Renderer.Validate,
		c.Sink.Validate,
		c.Postgres.Validate,
		c.Elasticsearch.Validate,
		c.Redis.Validate,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks crawler bounds and URLs.
func (c *CrawlerConfig) Validate() error {
	if err := validateAbsoluteURL("crawler.start_url", c.StartURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("crawler.base_url", c.BaseURL); err != nil {
		return err
	}
	for _, seed := range c.SeedURLs {
		if err := validateAbsoluteURL("crawler.seed_urls", seed); err != nil {
			return err
		}
	}
	if c.MaxPages < 1 {
		return &ValidationError{Field: "crawler.max_pages", Message: "must be at least 1"}
	}
	if c.MaxQuestions < 1 {
		return &ValidationError{Field: "crawler.max_questions", Message: "must be at least 1"}
	}
	if c.Delay < 0 {
		return &ValidationError{Field: "crawler.delay", Message: "must not be negative"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "crawler.timeout", Message: "must be positive"}
	}
	if c.UserAgent == "" {
		return &ValidationError{Field: "crawler.user_agent", Message: "is required"}
	}
	if c.MaxConsecutiveFailures < 1 {
		return &ValidationError{Field: "crawler.max_consecutive_failures", Message: "must be at least 1"}
	}
	return nil
}

// Validate checks the wait strategy.
func (r *RendererConfig) Validate() error {
	switch r.WaitStrategy {
	case WaitDOMReady, WaitNetworkIdle, WaitFixedDelay:
	default:
		return &ValidationError{
			Field:   "renderer.wait_strategy",
			Message: "must be one of: dom_ready, network_idle, fixed_delay",
		}
	}
	if r.WaitStrategy == WaitFixedDelay && r.WaitDelay <= 0 {
		return &ValidationError{Field: "renderer.wait_delay", Message: "must be positive for fixed_delay"}
	}
	return nil
}

// Validate checks the batch size.
func (s *SinkConfig) Validate() error {
	if s.BatchSize < 1 {
		return &ValidationError{Field: "sink.batch_size", Message: "must be at least 1"}
	}
	return nil
}

// Validate checks required connection fields when the sink is enabled.
func (p *PostgresConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Host == "" {
		return &ValidationError{Field: "postgres.host", Message: "is required"}
	}
	if p.Port < 1 || p.Port > 65535 {
		return &ValidationError{Field: "postgres.port", Message: "must be between 1 and 65535"}
	}
	if p.User == "" {
		return &ValidationError{Field: "postgres.user", Message: "is required"}
	}
	if p.Database == "" {
		return &ValidationError{Field: "postgres.database", Message: "is required"}
	}
	return nil
}

// Validate checks the URL when the sink is enabled.
func (e *ElasticsearchConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	return validateAbsoluteURL("elasticsearch.url", e.URL)
}

// Validate checks the address when the tracker is enabled.
func (r *RedisConfig) Validate() error {
	if r.Enabled && r.Address == "" {
		return &ValidationError{Field: "redis.address", Message: "is required"}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return &ValidationError{Field: "logging.format", Message: "must be one of: json, console"}
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}
