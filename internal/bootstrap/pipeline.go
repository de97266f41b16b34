package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/crawler"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/extractor"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/normalizer"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

// ErrNoPageSource is returned by Crawl on an App built WithoutPageSource.
var ErrNoPageSource = errors.New("bootstrap: page source not configured")

// Delivery summarizes one hand-off of questions to the sinks.
type Delivery struct {
	Results []sink.FlushResult
	// Tracked is true when NewQuestions comes from the export tracker.
	Tracked      bool
	NewQuestions int
	DryRun       bool
}

// CrawlSummary is the outcome of a crawl command.
type CrawlSummary struct {
	Result        *crawler.Result
	Delivery      Delivery
	QuestionsPath string
	StatsPath     string
}

// ImportSummary is the outcome of an import command.
type ImportSummary struct {
	Read       int
	Invalid    int
	Duplicates int
	Questions  []domain.Question
	Delivery   Delivery
}

// Crawl runs one crawl, writes the artifacts and delivers the questions.
// Cancelling ctx stops the crawl; artifacts and delivery still run for the
// partial result.
func (a *App) Crawl(ctx context.Context) (*CrawlSummary, error) {
	if a.Source == nil {
		return nil, ErrNoPageSource
	}

	cascade := extractor.NewCascade(a.Logger, nil, extractor.WithErrorHook(func(err *extractor.ExtractionError) {
		a.Metrics.ObserveExtractionError(err.Strategy)
	}))

	cfg := a.Config.Crawler
	coordinator, err := crawler.New(crawler.Deps{
		Source:    a.Source,
		Extractor: cascade,
		Robots:    a.Robots,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}, crawler.Config{
		StartURL:               cfg.StartURL,
		SeedURLs:               cfg.SeedURLs,
		MaxPages:               cfg.MaxPages,
		MaxQuestions:           cfg.MaxQuestions,
		Delay:                  cfg.Delay,
		AuthWait:               cfg.AuthWait,
		ProgressInterval:       cfg.ProgressInterval,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	})
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	result, err := coordinator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run crawl: %w", err)
	}

	summary := &CrawlSummary{
		Result:        result,
		QuestionsPath: a.Artifacts.QuestionsPath(),
		StatsPath:     a.Artifacts.StatsPath(),
	}

	if writeErr := a.writeArtifacts(result); writeErr != nil {
		return summary, writeErr
	}

	// Delivery outlives an interrupted crawl so partial results are kept.
	summary.Delivery = a.Deliver(context.WithoutCancel(ctx), result.Questions)

	a.writeMetrics()
	return summary, nil
}

func (a *App) writeArtifacts(result *crawler.Result) error {
	if err := a.Artifacts.WriteQuestions(result.Questions); err != nil {
		return fmt.Errorf("write questions artifact: %w", err)
	}
	if err := a.Artifacts.WriteStats(result.Report); err != nil {
		return fmt.Errorf("write stats artifact: %w", err)
	}
	a.Logger.Info("Artifacts written",
		logger.String("questions", a.Artifacts.QuestionsPath()),
		logger.String("stats", a.Artifacts.StatsPath()),
		logger.Int("count", len(result.Questions)),
	)
	return nil
}

func (a *App) writeMetrics() {
	path := a.Config.Metrics.Textfile
	if path == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(path); err != nil {
		a.Logger.Warn("Failed to write metrics textfile", logger.String("path", path), logger.Error(err))
	}
}

// Import reads a questions artifact, drops records without question text,
// deduplicates and delivers the rest.
func (a *App) Import(ctx context.Context, path string) (*ImportSummary, error) {
	questions, err := sink.ReadQuestions(path)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Content.Question) == "" {
			continue
		}
		valid = append(valid, withImportDefaults(q))
	}
	deduped := normalizer.Dedupe(valid)

	summary := &ImportSummary{
		Read:       len(questions),
		Invalid:    len(questions) - len(valid),
		Duplicates: len(valid) - len(deduped),
		Questions:  deduped,
	}

	a.Logger.Info("Import validated",
		logger.String("path", path),
		logger.Int("read", summary.Read),
		logger.Int("invalid", summary.Invalid),
		logger.Int("duplicates", summary.Duplicates),
	)

	summary.Delivery = a.Deliver(ctx, deduped)
	return summary, nil
}

func withImportDefaults(q domain.Question) domain.Question {
	if q.Module == "" {
		q.Module = domain.ModuleMath
	}
	if q.Difficulty == "" {
		q.Difficulty = domain.DifficultyMedium
	}
	if q.Program == "" {
		q.Program = domain.ProgramSAT
	}
	if q.Provenance.Strategy == "" {
		q.Provenance.Strategy = domain.StrategyImport
	}
	if q.Content.Options == nil {
		q.Content.Options = []string{}
	}
	return q
}

// Deliver flushes questions to every sink in batches and updates the export
// tracker. In dry-run mode nothing is sent.
func (a *App) Deliver(ctx context.Context, questions []domain.Question) Delivery {
	if a.Config.Sink.DryRun {
		a.Logger.Info("Dry run, skipping sinks", logger.Int("questions", len(questions)))
		return Delivery{DryRun: true}
	}

	var delivery Delivery
	ids := questionIDs(questions)

	if a.Tracker != nil {
		delivery.Tracked = true
		delivery.NewQuestions = len(a.Tracker.FilterNew(ctx, ids))
	}

	if len(questions) > 0 {
		batcher := sink.NewBatcher(a.Config.Sink.BatchSize, a.Logger)
		for _, s := range a.Sinks {
			result := batcher.Flush(ctx, s, questions)
			a.Metrics.ObserveSink(result.Sink, result.InsertedOrUpdated, result.ErrorCount, result.Batches, len(result.Errors))
			delivery.Results = append(delivery.Results, result)

			a.Logger.Info("Sink flush complete",
				logger.String("sink", result.Sink),
				logger.Int("batches", result.Batches),
				logger.Int("upserted", result.InsertedOrUpdated),
				logger.Int("errors", result.ErrorCount),
			)
		}
	}

	if a.Tracker != nil && len(ids) > 0 {
		if err := a.Tracker.MarkExported(ctx, ids); err != nil {
			a.Logger.Warn("Export tracker not updated", logger.Error(err))
		}
	}

	return delivery
}

func questionIDs(questions []domain.Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.QuestionID)
	}
	return ids
}
