package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/crawler"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/extractor"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/metrics"
)

const siteURL = "https://prep.org"

func questionBlocks(prefix string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="question-container">
  <div class="question-text">%s question %d: what is the value of x if %dx = %d?</div>
  <li class="option">A) 1</li>
  <li class="option">B) 2</li>
</div>
`, prefix, i, i, i*2)
	}
	return b.String()
}

func page(links []string, body string) string {
	var b strings.Builder
	b.WriteString("<html><body><nav>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a> `, l)
	}
	b.WriteString("</nav>")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String()
}

const emptyBody = `<p>Nothing to see.</p>`

const authBody = `<p>Please log in to continue.</p>`

// fakeSource serves canned pages. Each URL yields its pages in order and
// then repeats the last one. A URL in redirects is served from its target,
// which also becomes the document URL.
type fakeSource struct {
	mu          sync.Mutex
	pages       map[string][]string
	errs        map[string]error
	redirects   map[string]string
	interactive bool
	loads       []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: map[string][]string{}, errs: map[string]error{}, redirects: map[string]string{}}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Interactive() bool { return s.interactive }

func (s *fakeSource) Load(_ context.Context, pageURL string) (dom.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads = append(s.loads, pageURL)
	if target, ok := s.redirects[pageURL]; ok {
		pageURL = target
	}
	if err, ok := s.errs[pageURL]; ok {
		return nil, err
	}
	queue, ok := s.pages[pageURL]
	if !ok || len(queue) == 0 {
		return nil, &fetcher.FetchError{URL: pageURL, Reason: fetcher.ReasonStatus, Status: http.StatusNotFound, Err: fetcher.ErrUnexpectedStatus}
	}
	html := queue[0]
	if len(queue) > 1 {
		s.pages[pageURL] = queue[1:]
	}
	return dom.NewDocumentFromString(pageURL, html)
}

func (s *fakeSource) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

type fakeRobots struct {
	blocked string
}

func (r fakeRobots) IsAllowed(_ context.Context, pageURL string) (bool, error) {
	return !strings.Contains(pageURL, r.blocked), nil
}

func (r fakeRobots) CrawlDelay(string) time.Duration { return 0 }

func newCoordinator(t *testing.T, deps crawler.Deps, cfg crawler.Config) *crawler.Coordinator {
	t.Helper()
	if deps.Extractor == nil {
		deps.Extractor = extractor.NewCascade(nil, nil)
	}
	c, err := crawler.New(deps, cfg, crawler.WithRunID("run-test"))
	require.NoError(t, err)
	return c
}

func TestRun_StructuralSeedOverHTTP(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/practice" {
			links := []string{"/question-set/algebra", "/practice/geometry#top", "/about", "/login"}
			_, _ = w.Write([]byte(page(links, questionBlocks("Seed", 3))))
			return
		}
		_, _ = w.Write([]byte(page(nil, emptyBody)))
	}))
	defer server.Close()

	source := crawler.NewStaticSource(fetcher.New(fetcher.Config{UserAgent: "test", Timeout: time.Second}))
	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: server.URL + "/practice",
		MaxPages: 10,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Questions, 3)
	for _, q := range result.Questions {
		assert.Equal(t, domain.StrategyStructural, q.Provenance.Strategy)
		assert.Equal(t, server.URL+"/practice", q.Provenance.SourceURL)
		assert.Equal(t, "run-test", q.Provenance.RunID)
	}

	assert.Equal(t, []string{
		server.URL + "/practice",
		server.URL + "/question-set/algebra",
		server.URL + "/practice/geometry",
	}, result.Report.VisitedURLs)
	assert.Equal(t, 3, result.Report.PagesScanned)
	assert.Equal(t, 3, result.Report.QuestionsFound)
	assert.Zero(t, result.Report.Errors)
	assert.False(t, result.Report.Aborted)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits["/about"])
	assert.Zero(t, hits["/login"])
	assert.Equal(t, 1, hits["/practice"])
}

func TestRun_TimeoutMarksFailedAndContinues(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/practice":
			_, _ = w.Write([]byte(page([]string{"/question/slow", "/question/fast"}, emptyBody)))
		case "/question/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			_, _ = w.Write([]byte(page(nil, questionBlocks("Fast", 2))))
		}
	}))
	defer server.Close()

	source := crawler.NewStaticSource(fetcher.New(fetcher.Config{UserAgent: "test", Timeout: 200 * time.Millisecond}))
	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{StartURL: server.URL + "/practice"})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Report.Errors)
	assert.Equal(t, []string{server.URL + "/question/slow"}, result.Report.FailedURLs)
	assert.Contains(t, result.Report.VisitedURLs, server.URL+"/question/fast")
	assert.Len(t, result.Questions, 2)
	assert.NoError(t, result.Abort)

	for _, entry := range result.Frontier {
		if entry.URL == server.URL+"/question/slow" {
			assert.Equal(t, domain.StateFailed, entry.State)
			assert.Equal(t, fetcher.ReasonTimeout, entry.Error)
		}
	}
}

func TestRun_MaxQuestionsStopsMidFrontier(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page([]string{"/question/1", "/question/2"}, questionBlocks("Seed", 3))}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL:     siteURL + "/practice",
		MaxQuestions: 2,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Questions, 2)
	assert.Equal(t, 2, result.Report.QuestionsFound)
	assert.Equal(t, 1, result.Report.PagesScanned)
	assert.Equal(t, []string{siteURL + "/practice"}, source.Loads())

	queued := 0
	for _, entry := range result.Frontier {
		if entry.State == domain.StateQueued {
			queued++
		}
	}
	assert.Equal(t, 2, queued)
}

func TestRun_MaxPages(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	for i := range 5 {
		url := fmt.Sprintf("%s/practice/%d", siteURL, i)
		source.pages[url] = []string{page([]string{fmt.Sprintf("/practice/%d", i+1)}, emptyBody)}
	}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: siteURL + "/practice/0",
		MaxPages: 2,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Report.PagesScanned)
	assert.Len(t, source.Loads(), 2)
}

func TestRun_EarlyAbortAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	m := metrics.New()
	c := newCoordinator(t, crawler.Deps{Source: source, Metrics: m}, crawler.Config{
		StartURL: siteURL + "/practice/a",
		SeedURLs: []string{siteURL + "/practice/b", siteURL + "/practice/c", siteURL + "/practice/d"},
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.ErrorIs(t, result.Abort, crawler.ErrEarlyAbort)
	assert.True(t, result.Report.Aborted)
	assert.Equal(t, crawler.ErrEarlyAbort.Error(), result.Report.AbortReason)
	assert.Equal(t, 3, result.Report.Errors)
	assert.Len(t, source.Loads(), 3)
	assert.InDelta(t, 3, testutil.ToFloat64(m.PagesTotal.WithLabelValues(metrics.PageFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunAborted), 0)
}

func TestRun_NoEarlyAbortOnceQuestionsFound(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page(
		[]string{"/question/1", "/question/2", "/question/3", "/question/4"},
		questionBlocks("Seed", 1),
	)}
	source.pages[siteURL+"/question/4"] = []string{page(nil, questionBlocks("Last", 1))}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{StartURL: siteURL + "/practice"})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, result.Abort)
	assert.Equal(t, 3, result.Report.Errors)
	assert.Len(t, source.Loads(), 5)
	assert.Len(t, result.Questions, 2)
}

func TestRun_DuplicatesKeepFirstSource(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page([]string{"/question/copy"}, questionBlocks("Same", 2))}
	source.pages[siteURL+"/question/copy"] = []string{page(nil, questionBlocks("Same", 2))}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{StartURL: siteURL + "/practice"})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Questions, 2)
	for _, q := range result.Questions {
		assert.Equal(t, siteURL+"/practice", q.Provenance.SourceURL)
	}
	assert.Equal(t, 2, result.Report.PagesScanned)
}

func TestRun_AuthWallSkippedWhenNotInteractive(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page(nil, authBody)}
	m := metrics.New()

	c := newCoordinator(t, crawler.Deps{Source: source, Metrics: m}, crawler.Config{
		StartURL: siteURL + "/practice",
		AuthWait: time.Hour,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.AuthSkipped)
	assert.Equal(t, 1, result.Report.PagesScanned)
	assert.Empty(t, result.Questions)
	assert.Equal(t, []string{siteURL + "/practice"}, source.Loads())
	assert.InDelta(t, 1, testutil.ToFloat64(m.PagesTotal.WithLabelValues(metrics.PageAuthSkipped)), 0)
}

func TestRun_AuthWallPageStillFeedsFrontier(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/"] = []string{
		`<html><body><header><a href="/account">Login</a></header>` +
			`<a href="/practice/1">Practice set 1</a></body></html>`,
	}
	source.pages[siteURL+"/practice/1"] = []string{page(nil, questionBlocks("Hub", 2))}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: siteURL + "/",
		AuthWait: time.Hour,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.AuthSkipped)
	assert.Len(t, result.Questions, 2)
	assert.Equal(t, []string{siteURL + "/", siteURL + "/practice/1"}, source.Loads())
	assert.Equal(t, 2, result.Report.PagesScanned)
}

func TestRun_OffsiteRedirectIsNotFollowed(t *testing.T) {
	t.Parallel()

	const foreign = "https://elsewhere.net"

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page([]string{"/practice-go"}, questionBlocks("Home", 1))}
	source.redirects[siteURL+"/practice-go"] = foreign + "/practice-foreign"
	source.pages[foreign+"/practice-foreign"] = []string{
		page([]string{"/practice-foreign-2"}, questionBlocks("Foreign", 2)),
	}
	source.pages[foreign+"/practice-foreign-2"] = []string{page(nil, questionBlocks("Deeper", 2))}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: siteURL + "/practice",
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Questions, 1)
	assert.Equal(t, []string{siteURL + "/practice", siteURL + "/practice-go"}, source.Loads())
	assert.Equal(t, []string{siteURL + "/practice-go"}, result.Report.FailedURLs)
	assert.Zero(t, result.Report.Errors)
	for _, entry := range result.Frontier {
		assert.True(t, strings.HasPrefix(entry.URL, siteURL), "left the seed site: %s", entry.URL)
	}
	for _, entry := range result.Frontier {
		if entry.URL == siteURL+"/practice-go" {
			assert.Equal(t, fetcher.ReasonOffsiteRedirect, entry.Error)
		}
	}
}

func TestRun_AuthWallClearedAfterInteractiveLogin(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.interactive = true
	source.pages[siteURL+"/practice"] = []string{
		page(nil, authBody),
		page(nil, questionBlocks("Member", 2)),
	}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: siteURL + "/practice",
		AuthWait: 10 * time.Millisecond,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.AuthSkipped)
	assert.Len(t, result.Questions, 2)
	assert.Equal(t, []string{siteURL + "/practice", siteURL + "/practice"}, source.Loads())
}

func TestRun_AuthWallStillPresentAfterWait(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.interactive = true
	source.pages[siteURL+"/practice"] = []string{page(nil, authBody)}

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{
		StartURL: siteURL + "/practice",
		AuthWait: 10 * time.Millisecond,
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.AuthSkipped)
	assert.Len(t, source.Loads(), 2)
}

func TestRun_RobotsBlockedURLMarkedFailed(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page([]string{"/practice/private", "/practice/open"}, emptyBody)}
	source.pages[siteURL+"/practice/open"] = []string{page(nil, emptyBody)}

	c := newCoordinator(t, crawler.Deps{Source: source, Robots: fakeRobots{blocked: "/private"}}, crawler.Config{
		StartURL: siteURL + "/practice",
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{siteURL + "/practice/private"}, result.Report.FailedURLs)
	assert.Zero(t, result.Report.Errors)
	assert.NotContains(t, source.Loads(), siteURL+"/practice/private")

	for _, entry := range result.Frontier {
		if entry.URL == siteURL+"/practice/private" {
			assert.Equal(t, fetcher.ReasonRobotsBlocked, entry.Error)
		}
	}
}

func TestRun_CancelledContextReturnsPartialResult(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{StartURL: siteURL + "/practice"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := c.Run(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, result.Abort, context.Canceled)
	assert.True(t, result.Report.Aborted)
	assert.Empty(t, source.Loads())
	assert.NotNil(t, result.Report.VisitedURLs)
}

func TestRun_NoSeed(t *testing.T) {
	t.Parallel()

	c := newCoordinator(t, crawler.Deps{Source: newFakeSource()}, crawler.Config{StartURL: "ftp://prep.org/files"})

	_, err := c.Run(context.Background())
	require.ErrorIs(t, err, crawler.ErrNoSeed)
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	_, err := crawler.New(crawler.Deps{}, crawler.Config{})
	require.ErrorIs(t, err, crawler.ErrMissingDependency)

	_, err = crawler.New(crawler.Deps{Source: newFakeSource()}, crawler.Config{})
	require.ErrorIs(t, err, crawler.ErrMissingDependency)
}

func TestNew_GeneratesRunID(t *testing.T) {
	t.Parallel()

	c, err := crawler.New(crawler.Deps{Source: newFakeSource(), Extractor: extractor.NewCascade(nil, nil)}, crawler.Config{})
	require.NoError(t, err)
	assert.Len(t, c.RunID(), 36)
}

func TestFailureReasons(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.pages[siteURL+"/practice"] = []string{page([]string{"/question/broken"}, questionBlocks("Seed", 1))}
	source.errs[siteURL+"/question/broken"] = errors.New("connection dropped")

	c := newCoordinator(t, crawler.Deps{Source: source}, crawler.Config{StartURL: siteURL + "/practice"})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	for _, entry := range result.Frontier {
		if entry.URL == siteURL+"/question/broken" {
			assert.Equal(t, "unknown", entry.Error)
		}
	}
}
