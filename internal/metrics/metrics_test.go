package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/metrics"
)

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	first := metrics.New()
	second := metrics.New()

	first.ObservePage("static", metrics.PageVisited, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(first.PagesTotal.WithLabelValues(metrics.PageVisited)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(second.PagesTotal.WithLabelValues(metrics.PageVisited)), 0)
}

func TestMetrics_Observations(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	m.ObservePage("renderer", metrics.PageVisited, 200*time.Millisecond)
	m.ObservePage("renderer", metrics.PageAuthSkipped, 0)
	m.ObservePage("renderer", metrics.PageFailed, time.Second)
	m.ObserveFailure("timeout")
	m.SetProgress(7, 42, 1)
	m.ObserveExtraction("structural", 3)
	m.ObserveExtraction("pattern-mining", 0)
	m.ObserveExtractionError("readability-mining")
	m.ObserveSink("postgres", 1500, 1000, 3, 1)
	m.ObserveRun(90*time.Second, true)

	assert.InDelta(t, 1, testutil.ToFloat64(m.PagesTotal.WithLabelValues(metrics.PageAuthSkipped)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.FrontierQueued), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.QuestionsFound), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.RecordsExtracted.WithLabelValues("structural")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ExtractionErrors.WithLabelValues("readability-mining")), 0)
	assert.InDelta(t, 1500, testutil.ToFloat64(m.SinkRecords.WithLabelValues("postgres", "upserted")), 0)
	assert.InDelta(t, 1000, testutil.ToFloat64(m.SinkRecords.WithLabelValues("postgres", "failed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.SinkBatches.WithLabelValues("postgres", "ok")), 0)
	assert.InDelta(t, 90, testutil.ToFloat64(m.RunDuration), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunAborted), 0)

	// Only the structural strategy produced records.
	assert.Equal(t, 1, testutil.CollectAndCount(m.RecordsExtracted))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObservePage("static", metrics.PageVisited, time.Second)

	path := filepath.Join(t.TempDir(), "crawl.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `question_crawler_crawl_pages_total{result="visited"} 1`)
}

func TestMetrics_WriteTextfileBadPath(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "crawl.prom"))
	require.Error(t, err)
}
