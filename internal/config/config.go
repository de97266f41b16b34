// Package config defines the crawler configuration and its defaults.
package config

import (
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// Default values used when neither the config file nor the environment
// provide a setting.
const (
	DefaultStartURL               = "https://oneprep.xyz/question-set/sat-suite-question-bank/"
	DefaultMaxPages               = 2000
	DefaultMaxQuestions           = 10000
	DefaultDelay                  = 1500 * time.Millisecond
	DefaultTimeout                = 45 * time.Second
	DefaultAuthWait               = 30 * time.Second
	DefaultProgressInterval       = 30 * time.Second
	DefaultMaxConsecutiveFailures = 3
	DefaultUserAgent              = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultWaitStrategy = WaitNetworkIdle
	DefaultWaitDelay    = 2 * time.Second

	DefaultOutputDir     = "data"
	DefaultQuestionsFile = "questions.json"
	DefaultStatsFile     = "stats.json"
	DefaultBatchSize     = 1000
	DefaultPostgresTable = "questions"
	DefaultPostgresPort  = 5432
	DefaultPostgresSSL   = "disable"
	DefaultESIndex       = "sat_questions"
	DefaultRedisAddress  = "localhost:6379"
	DefaultExportedTTL   = 30 * 24 * time.Hour
)

// Renderer wait strategies.
const (
	WaitDOMReady    = "dom_ready"
	WaitNetworkIdle = "network_idle"
	WaitFixedDelay  = "fixed_delay"
)

// Config is the root configuration document.
type Config struct {
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Renderer      RendererConfig      `yaml:"renderer"`
	Output        OutputConfig        `yaml:"output"`
	Sink          SinkConfig          `yaml:"sink"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       logger.Config       `yaml:"logging"`
}

// CrawlerConfig bounds and paces the crawl loop.
type CrawlerConfig struct {
	BaseURL                string        `env:"CRAWLER_BASE_URL"           yaml:"base_url"`
	StartURL               string        `env:"CRAWLER_START_URL"          yaml:"start_url"`
	SeedURLs               []string      `env:"CRAWLER_SEED_URLS"          yaml:"seed_urls"`
	MaxPages               int           `env:"CRAWLER_MAX_PAGES"          yaml:"max_pages"`
	MaxQuestions           int           `env:"CRAWLER_MAX_QUESTIONS"      yaml:"max_questions"`
	Delay                  time.Duration `env:"CRAWLER_DELAY"              yaml:"delay"`
	Timeout                time.Duration `env:"CRAWLER_TIMEOUT"            yaml:"timeout"`
	UserAgent              string        `env:"CRAWLER_USER_AGENT"         yaml:"user_agent"`
	AuthWait               time.Duration `env:"CRAWLER_AUTH_WAIT"          yaml:"auth_wait"`
	ProgressInterval       time.Duration `env:"CRAWLER_PROGRESS_INTERVAL"  yaml:"progress_interval"`
	MaxConsecutiveFailures int           `env:"CRAWLER_MAX_FAILURES"       yaml:"max_consecutive_failures"`
	RespectRobots          bool          `env:"CRAWLER_RESPECT_ROBOTS"     yaml:"respect_robots"`
}

// RendererConfig configures the headless browser session.
type RendererConfig struct {
	Enabled        bool          `env:"RENDERER_ENABLED"         yaml:"enabled"`
	Headless       bool          `env:"RENDERER_HEADLESS"        yaml:"headless"`
	WaitStrategy   string        `env:"RENDERER_WAIT_STRATEGY"   yaml:"wait_strategy"`
	WaitDelay      time.Duration `env:"RENDERER_WAIT_DELAY"      yaml:"wait_delay"`
	BlockResources bool          `env:"RENDERER_BLOCK_RESOURCES" yaml:"block_resources"`
	ExecPath       string        `env:"RENDERER_EXEC_PATH"       yaml:"exec_path"`
}

// OutputConfig locates the JSON artifacts.
type OutputConfig struct {
	Dir           string `env:"OUTPUT_DIR"            yaml:"dir"`
	QuestionsFile string `env:"OUTPUT_QUESTIONS_FILE" yaml:"questions_file"`
	StatsFile     string `env:"OUTPUT_STATS_FILE"     yaml:"stats_file"`
}

// SinkConfig configures batched delivery.
type SinkConfig struct {
	BatchSize int  `env:"SINK_BATCH_SIZE" yaml:"batch_size"`
	DryRun    bool `env:"SINK_DRY_RUN"    yaml:"dry_run"`
}

// PostgresConfig configures the relational sink.
type PostgresConfig struct {
	Enabled  bool   `env:"POSTGRES_ENABLED"  yaml:"enabled"`
	Host     string `env:"POSTGRES_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_USER"     yaml:"user"`
	Password string `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	Table    string `env:"POSTGRES_TABLE"    yaml:"table"`
}

// ElasticsearchConfig configures the search index sink.
type ElasticsearchConfig struct {
	Enabled  bool   `env:"ELASTICSEARCH_ENABLED"  yaml:"enabled"`
	URL      string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	APIKey   string `env:"ELASTICSEARCH_API_KEY"  yaml:"api_key"`
	Index    string `env:"ELASTICSEARCH_INDEX"    yaml:"index"`
}

// RedisConfig configures the exported-question tracker.
type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB"       yaml:"db"`
	TTL      time.Duration `env:"REDIS_TTL"      yaml:"ttl"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `env:"METRICS_TEXTFILE" yaml:"textfile"`
}

// Default returns a Config whose boolean switches already hold their
// defaults. Load decodes YAML over it so absent keys keep these values.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			Headless:       true,
			BlockResources: true,
		},
	}
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Crawler.SetDefaults()
	c.Renderer.SetDefaults()
	c.Output.SetDefaults()
	c.Sink.SetDefaults()
	c.Postgres.SetDefaults()
	c.Elasticsearch.SetDefaults()
	c.Redis.SetDefaults()
	c.Logging.SetDefaults()
}

// SetDefaults applies crawler defaults. BaseURL is derived from StartURL.
func (c *CrawlerConfig) SetDefaults() {
	if c.StartURL == "" {
		c.StartURL = DefaultStartURL
	}
	if c.BaseURL == "" {
		c.BaseURL = originOf(c.StartURL)
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxQuestions == 0 {
		c.MaxQuestions = DefaultMaxQuestions
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AuthWait == 0 {
		c.AuthWait = DefaultAuthWait
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
}

// SetDefaults applies renderer defaults.
func (r *RendererConfig) SetDefaults() {
	if r.WaitStrategy == "" {
		r.WaitStrategy = DefaultWaitStrategy
	}
	if r.WaitDelay == 0 {
		r.WaitDelay = DefaultWaitDelay
	}
}

// SetDefaults applies output defaults.
func (o *OutputConfig) SetDefaults() {
	if o.Dir == "" {
		o.Dir = DefaultOutputDir
	}
	if o.QuestionsFile == "" {
		o.QuestionsFile = DefaultQuestionsFile
	}
	if o.StatsFile == "" {
		o.StatsFile = DefaultStatsFile
	}
}

// SetDefaults applies sink defaults.
func (s *SinkConfig) SetDefaults() {
	if s.BatchSize == 0 {
		s.BatchSize = DefaultBatchSize
	}
}

// SetDefaults applies postgres defaults.
func (p *PostgresConfig) SetDefaults() {
	if p.Port == 0 {
		p.Port = DefaultPostgresPort
	}
	if p.SSLMode == "" {
		p.SSLMode = DefaultPostgresSSL
	}
	if p.Table == "" {
		p.Table = DefaultPostgresTable
	}
}

// SetDefaults applies elasticsearch defaults.
func (e *ElasticsearchConfig) SetDefaults() {
	if e.URL == "" {
		e.URL = "http://localhost:9200"
	}
	if e.Index == "" {
		e.Index = DefaultESIndex
	}
}

// SetDefaults applies redis defaults.
func (r *RedisConfig) SetDefaults() {
	if r.Address == "" {
		r.Address = DefaultRedisAddress
	}
	if r.TTL == 0 {
		r.TTL = DefaultExportedTTL
	}
}

// originOf returns scheme://host of rawURL, or "" when it does not parse.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
