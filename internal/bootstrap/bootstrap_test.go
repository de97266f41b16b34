package bootstrap_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/retry"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

// recordingSink keeps every upserted question.
type recordingSink struct {
	mu       sync.Mutex
	received []domain.Question
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Upsert(_ context.Context, questions []domain.Question) (sink.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, questions...)
	return sink.UpsertResult{InsertedOrUpdated: len(questions)}, nil
}

func (s *recordingSink) Received() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Question(nil), s.received...)
}

const questionPage = `<html><body>
<a href="/question-set/next">Next set</a>
<div class="question-container"><div class="question-text">What is the value of x if 2x = 10?</div>
<li class="option">A) 2</li><li class="option">B) 5</li></div>
<div class="question-container"><div class="question-text">Which choice best states the main idea of the passage?</div>
<li class="option">A) Growth</li><li class="option">B) Decline</li></div>
<div class="question-container"><div class="question-text">How many solutions does the equation x^2 = 9 have?</div>
<li class="option">A) 1</li><li class="option">B) 2</li></div>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/practice" {
			_, _ = w.Write([]byte(questionPage))
			return
		}
		_, _ = w.Write([]byte("<html><body><p>Nothing to see.</p></body></html>"))
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, startURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Crawler.StartURL = startURL
	cfg.SetDefaults()
	cfg.Crawler.Delay = time.Millisecond
	cfg.Crawler.Timeout = 2 * time.Second
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := bootstrap.New(context.Background(), nil, nil)
	require.ErrorIs(t, err, bootstrap.ErrNilConfig)
}

func TestCrawl_WritesArtifactsAndDelivers(t *testing.T) {
	t.Parallel()

	server := newSite(t)
	cfg := testConfig(t, server.URL+"/practice")
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "crawl.prom")

	recorder := &recordingSink{}
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithSink(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	app.Tracker = sink.NewExportTracker(client, time.Hour, nil)

	summary, err := app.Crawl(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Result.Questions, 3)
	assert.Equal(t, 2, summary.Result.Report.PagesScanned)

	saved, err := sink.ReadQuestions(summary.QuestionsPath)
	require.NoError(t, err)
	assert.Equal(t, summary.Result.Questions, saved)

	stats, err := sink.ReadStats(summary.StatsPath)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.QuestionsFound)

	require.Len(t, summary.Delivery.Results, 1)
	assert.Equal(t, 3, summary.Delivery.Results[0].InsertedOrUpdated)
	assert.Len(t, recorder.Received(), 3)
	assert.True(t, summary.Delivery.Tracked)
	assert.Equal(t, 3, summary.Delivery.NewQuestions)

	again := app.Deliver(context.Background(), summary.Result.Questions)
	assert.Zero(t, again.NewQuestions)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `question_crawler_sink_records_total{outcome="upserted",sink="recording"} 3`)
}

func TestCrawl_DryRunSkipsSinks(t *testing.T) {
	t.Parallel()

	server := newSite(t)
	cfg := testConfig(t, server.URL+"/practice")
	cfg.Sink.DryRun = true
	cfg.Postgres.Enabled = true // never dialled in dry-run mode

	recorder := &recordingSink{}
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithSink(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	summary, err := app.Crawl(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Delivery.DryRun)
	assert.Empty(t, recorder.Received())
	_, statErr := os.Stat(summary.QuestionsPath)
	require.NoError(t, statErr)
}

func TestCrawl_WithoutPageSource(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://prep.org/practice")
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithoutPageSource(), bootstrap.WithoutStorage())
	require.NoError(t, err)

	_, err = app.Crawl(context.Background())
	require.ErrorIs(t, err, bootstrap.ErrNoPageSource)
}

func TestImport_ValidatesAndDedupes(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://prep.org/practice")
	dir := t.TempDir()
	writer := sink.NewArtifactWriter(dir, "questions.json", "stats.json")

	longStem := strings.Repeat("Which value of k makes the system consistent? ", 3)
	require.NoError(t, writer.WriteQuestions([]domain.Question{
		{QuestionID: "q-1", Content: domain.Content{Question: longStem}},
		{QuestionID: "q-2", Content: domain.Content{Question: longStem + "Variant wording."}},
		{QuestionID: "q-3", Content: domain.Content{Question: "   "}},
		{QuestionID: "q-4", DedupKey: "4521", Module: domain.ModuleReading, Content: domain.Content{Question: "Which choice completes the text?"}},
	}))

	recorder := &recordingSink{}
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithoutPageSource(), bootstrap.WithSink(recorder))
	require.NoError(t, err)

	summary, err := app.Import(context.Background(), writer.QuestionsPath())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Read)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Questions, 2)

	first := summary.Questions[0]
	assert.Equal(t, "q-1", first.QuestionID)
	assert.Equal(t, domain.ModuleMath, first.Module)
	assert.Equal(t, domain.DifficultyMedium, first.Difficulty)
	assert.Equal(t, domain.ProgramSAT, first.Program)
	assert.Equal(t, domain.StrategyImport, first.Provenance.Strategy)
	assert.Equal(t, domain.ModuleReading, summary.Questions[1].Module)

	assert.Len(t, recorder.Received(), 2)
}

func TestImport_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://prep.org/practice")
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithoutPageSource(), bootstrap.WithoutStorage())
	require.NoError(t, err)

	_, err = app.Import(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestNew_UnreachablePostgresIsFatal(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://prep.org/practice")
	cfg.Postgres.Enabled = true
	cfg.Postgres.Host = "127.0.0.1"
	cfg.Postgres.Port = 1
	cfg.Postgres.User = "prep"
	cfg.Postgres.Database = "prep"

	_, err := bootstrap.New(context.Background(), cfg, nil,
		bootstrap.WithoutPageSource(),
		bootstrap.WithRetry(retry.Config{MaxAttempts: 1}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect postgres")
}

func TestNew_InvalidWaitStrategy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://prep.org/practice")
	cfg.Renderer.Enabled = true
	cfg.Renderer.WaitStrategy = "whenever"

	_, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithoutStorage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer wait strategy")
}

func ExampleApp_Deliver() {
	cfg := config.Default()
	cfg.SetDefaults()
	cfg.Sink.DryRun = true

	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithoutPageSource())
	if err != nil {
		fmt.Println(err)
		return
	}
	delivery := app.Deliver(context.Background(), nil)
	fmt.Println(delivery.DryRun)
	// Output: true
}
