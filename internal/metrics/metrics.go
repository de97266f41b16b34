// Package metrics provides Prometheus instrumentation for crawl runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all crawler metrics.
	MetricsNamespace = "question_crawler"

	// MetricsSubsystem is the subsystem for crawl loop metrics.
	MetricsSubsystem = "crawl"
)

// Page outcomes used as the "result" label.
const (
	PageVisited     = "visited"
	PageFailed      = "failed"
	PageAuthSkipped = "auth_skipped"
)

// Metrics holds the Prometheus collectors of one run. Each instance owns its
// registry so several runs can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Crawl loop
	PagesTotal         *prometheus.CounterVec
	FailuresTotal      *prometheus.CounterVec
	PageDuration       *prometheus.HistogramVec
	FrontierQueued     prometheus.Gauge
	QuestionsFound     prometheus.Gauge
	ConsecutiveFailure prometheus.Gauge

	// Extraction
	RecordsExtracted *prometheus.CounterVec
	ExtractionErrors *prometheus.CounterVec

	// Sinks
	SinkRecords *prometheus.CounterVec
	SinkBatches *prometheus.CounterVec

	// Run
	RunDuration prometheus.Gauge
	RunAborted  prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.initCrawlMetrics(factory)
	m.initExtractionMetrics(factory)
	m.initSinkMetrics(factory)
	m.initRunMetrics(factory)

	return m
}

// Registry exposes the registry, mainly for tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) initCrawlMetrics(factory promauto.Factory) {
	m.PagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "pages_total",
			Help:      "Pages processed, by result",
		},
		[]string{"result"},
	)

	m.FailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "failures_total",
			Help:      "Failed page retrievals, by reason",
		},
		[]string{"reason"},
	)

	m.PageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "page_duration_seconds",
			Help:      "Time to retrieve one page",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"source"},
	)

	m.FrontierQueued = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "frontier_queued",
			Help:      "URLs waiting in the frontier",
		},
	)

	m.QuestionsFound = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "questions_found",
			Help:      "Unique questions collected so far",
		},
	)

	m.ConsecutiveFailure = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "consecutive_failures",
			Help:      "Current run of consecutive failed pages",
		},
	)
}

func (m *Metrics) initExtractionMetrics(factory promauto.Factory) {
	m.RecordsExtracted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "extract",
			Name:      "records_total",
			Help:      "Raw records produced, by strategy",
		},
		[]string{"strategy"},
	)

	m.ExtractionErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "extract",
			Name:      "errors_total",
			Help:      "Extraction strategy failures, by strategy",
		},
		[]string{"strategy"},
	)
}

func (m *Metrics) initSinkMetrics(factory promauto.Factory) {
	m.SinkRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sink",
			Name:      "records_total",
			Help:      "Records handed to sinks, by outcome",
		},
		[]string{"sink", "outcome"},
	)

	m.SinkBatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sink",
			Name:      "batches_total",
			Help:      "Sink batches, by status",
		},
		[]string{"sink", "status"},
	)
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunDuration = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		},
	)

	m.RunAborted = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_aborted",
			Help:      "1 when the last run stopped early",
		},
	)
}

// ObservePage records one page outcome and its retrieval time.
func (m *Metrics) ObservePage(source, result string, elapsed time.Duration) {
	m.PagesTotal.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.PageDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

// ObserveFailure counts a failed page by reason.
func (m *Metrics) ObserveFailure(reason string) {
	m.FailuresTotal.WithLabelValues(reason).Inc()
}

// SetProgress updates the loop gauges.
func (m *Metrics) SetProgress(queued, questions, consecutiveFailures int) {
	m.FrontierQueued.Set(float64(queued))
	m.QuestionsFound.Set(float64(questions))
	m.ConsecutiveFailure.Set(float64(consecutiveFailures))
}

// ObserveExtraction counts records produced by strategy.
func (m *Metrics) ObserveExtraction(strategy string, records int) {
	if records > 0 {
		m.RecordsExtracted.WithLabelValues(strategy).Add(float64(records))
	}
}

// ObserveExtractionError counts a strategy failure.
func (m *Metrics) ObserveExtractionError(strategy string) {
	m.ExtractionErrors.WithLabelValues(strategy).Inc()
}

// ObserveSink records one flush to a sink.
func (m *Metrics) ObserveSink(sinkName string, upserted, failed, batches, failedBatches int) {
	m.SinkRecords.WithLabelValues(sinkName, "upserted").Add(float64(upserted))
	m.SinkRecords.WithLabelValues(sinkName, "failed").Add(float64(failed))
	m.SinkBatches.WithLabelValues(sinkName, "ok").Add(float64(batches - failedBatches))
	m.SinkBatches.WithLabelValues(sinkName, "failed").Add(float64(failedBatches))
}

// ObserveRun records the final run gauges.
func (m *Metrics) ObserveRun(elapsed time.Duration, aborted bool) {
	m.RunDuration.Set(elapsed.Seconds())
	if aborted {
		m.RunAborted.Set(1)
		return
	}
	m.RunAborted.Set(0)
}

// WriteTextfile writes every collector in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
