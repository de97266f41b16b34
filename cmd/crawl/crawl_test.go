package crawl_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/cmd/crawl"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

const practicePage = `<html><body>
<div class="question-container"><div class="question-text">What is the value of y if 3y = 12?</div>
<li class="option">A) 3</li><li class="option">B) 4</li></div>
<div class="question-container"><div class="question-text">Which choice best describes the author's purpose?</div>
<li class="option">A) To inform</li><li class="option">B) To persuade</li></div>
</body></html>`

func TestCrawlCommand_DryRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(practicePage))
	}))
	defer server.Close()

	outDir := t.TempDir()
	cmd := crawl.Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--start-url", server.URL + "/practice",
		"--output", outDir,
		"--delay", "1ms",
		"--timeout", "2s",
		"--max-pages", "5",
		"--dry-run",
	})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Crawl summary")
	assert.Contains(t, out.String(), "Dry run")

	questions, err := sink.ReadQuestions(filepath.Join(outDir, "questions.json"))
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestCrawlCommand_RejectsArgs(t *testing.T) {
	cmd := crawl.Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"unexpected"})

	require.Error(t, cmd.Execute())
}
