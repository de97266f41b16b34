package config

import "time"

// Override keys shared with the CLI flag bindings.
const (
	KeyStartURL     = "crawler.start_url"
	KeyMaxPages     = "crawler.max_pages"
	KeyMaxQuestions = "crawler.max_questions"
	KeyDelay        = "crawler.delay"
	KeyTimeout      = "crawler.timeout"
	KeyRender       = "renderer.enabled"
	KeyHeadless     = "renderer.headless"
	KeyOutputDir    = "output.dir"
	KeyDryRun       = "sink.dry_run"
	KeyLogLevel     = "logging.level"
)

// Overrides is the subset of *viper.Viper used to layer explicitly set
// CLI flags over the loaded file.
type Overrides interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
}

// ApplyOverrides copies every key that was explicitly set in o.
func (c *Config) ApplyOverrides(o Overrides) {
	if o == nil {
		return
	}
	if o.IsSet(KeyStartURL) {
		c.Crawler.StartURL = o.GetString(KeyStartURL)
		c.Crawler.BaseURL = originOf(c.Crawler.StartURL)
	}
	if o.IsSet(KeyMaxPages) {
		c.Crawler.MaxPages = o.GetInt(KeyMaxPages)
	}
	if o.IsSet(KeyMaxQuestions) {
		c.Crawler.MaxQuestions = o.GetInt(KeyMaxQuestions)
	}
	if o.IsSet(KeyDelay) {
		c.Crawler.Delay = o.GetDuration(KeyDelay)
	}
	if o.IsSet(KeyTimeout) {
		c.Crawler.Timeout = o.GetDuration(KeyTimeout)
	}
	if o.IsSet(KeyRender) {
		c.Renderer.Enabled = o.GetBool(KeyRender)
	}
	if o.IsSet(KeyHeadless) {
		c.Renderer.Headless = o.GetBool(KeyHeadless)
	}
	if o.IsSet(KeyOutputDir) {
		c.Output.Dir = o.GetString(KeyOutputDir)
	}
	if o.IsSet(KeyDryRun) {
		c.Sink.DryRun = o.GetBool(KeyDryRun)
	}
	if o.IsSet(KeyLogLevel) {
		c.Logging.Level = o.GetString(KeyLogLevel)
	}
}
