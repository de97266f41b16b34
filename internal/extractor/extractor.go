// Package extractor turns a page into raw question records. Strategies run
// in order and the first one that yields records wins.
package extractor

import (
	"fmt"
	"runtime/debug"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

const (
	minQuestionLength = 10
	maxQuestionLength = 5000
	maxOptions        = 4
	minOptions        = 2
)

// Strategy extracts questions from one kind of page layout.
type Strategy interface {
	Name() string
	Extract(doc dom.Handle) ([]domain.RawQuestion, error)
}

// ExtractionError wraps a strategy failure. It is logged, never returned
// to the crawl loop.
type ExtractionError struct {
	Strategy string
	URL      string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s with %s: %v", e.URL, e.Strategy, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Cascade runs strategies in order and stops at the first non-empty result.
type Cascade struct {
	strategies []Strategy
	log        logger.Logger
	onError    func(*ExtractionError)
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithErrorHook is called for every strategy failure.
func WithErrorHook(fn func(*ExtractionError)) Option {
	return func(c *Cascade) {
		c.onError = fn
	}
}

// NewCascade builds a cascade over strategies. With no strategies it uses
// DefaultStrategies.
func NewCascade(log logger.Logger, strategies []Strategy, opts ...Option) *Cascade {
	if log == nil {
		log = logger.NewNop()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	c := &Cascade{
		strategies: strategies,
		log:        log.With(logger.Component("extractor")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategies is structural, then pattern-mining, then
// readability-mining.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewStructural(),
		NewPatternMining(),
		NewReadabilityMining(),
	}
}

// Extract returns the records of the first strategy that finds any, with
// SourceURL and Strategy filled in.
func (c *Cascade) Extract(doc dom.Handle, sourceURL string) []domain.RawQuestion {
	for _, strategy := range c.strategies {
		raws, err := c.run(strategy, doc)
		if err != nil {
			extractErr := &ExtractionError{Strategy: strategy.Name(), URL: sourceURL, Err: err}
			c.log.Warn("Extraction strategy failed",
				logger.String("strategy", strategy.Name()),
				logger.String("url", sourceURL),
				logger.Error(err),
			)
			if c.onError != nil {
				c.onError(extractErr)
			}
			continue
		}
		if len(raws) == 0 {
			continue
		}

		for i := range raws {
			raws[i].SourceURL = sourceURL
			raws[i].Strategy = strategy.Name()
		}
		c.log.Debug("Extracted questions",
			logger.String("strategy", strategy.Name()),
			logger.String("url", sourceURL),
			logger.Int("count", len(raws)),
		)
		return raws
	}
	return nil
}

// run calls the strategy and turns a panic into an error.
func (c *Cascade) run(strategy Strategy, doc dom.Handle) (raws []domain.RawQuestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.log.Debug("Strategy panic stack", logger.String("stack", string(debug.Stack())))
		}
	}()
	return strategy.Extract(doc)
}

// finishOptions caps options at four and reports low confidence when fewer
// than two remain.
func finishOptions(options []string) ([]string, bool) {
	if len(options) > maxOptions {
		options = options[:maxOptions]
	}
	return options, len(options) < minOptions
}

func validQuestionLength(text string) bool {
	n := len([]rune(text))
	return n >= minQuestionLength && n <= maxQuestionLength
}
