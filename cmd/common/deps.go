// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// Viper keys of the root persistent flags.
const (
	KeyConfigFile = "config"
	KeyDebug      = "debug"
)

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads the configuration named by --config (or CONFIG_PATH),
// layers the flags bound on the global viper instance over it and builds
// the logger.
func NewCommandDeps() (*CommandDeps, error) {
	return LoadCommandDeps(viper.GetViper())
}

// LoadCommandDeps is NewCommandDeps for an explicit viper instance.
func LoadCommandDeps(v *viper.Viper) (*CommandDeps, error) {
	path := v.GetString(KeyConfigFile)
	if path == "" {
		path = config.GetConfigPath(config.DefaultPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyOverrides(v)
	if v.GetBool(KeyDebug) {
		cfg.Logging.Level = "debug"
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	deps := &CommandDeps{Logger: log, Config: cfg}
	if validateErr := deps.Validate(); validateErr != nil {
		return nil, validateErr
	}
	return deps, nil
}
