package sink_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

func TestArtifactWriter_Questions(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "data")
	w := sink.NewArtifactWriter(dir, "questions.json", "stats.json")

	questions := makeQuestions(2)
	require.NoError(t, w.WriteQuestions(questions))

	raw, err := os.ReadFile(w.QuestionsPath())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "[\n  {"), "indented array")

	loaded, err := sink.ReadQuestions(w.QuestionsPath())
	require.NoError(t, err)
	assert.Equal(t, questions, loaded)
}

func TestArtifactWriter_EmptyQuestionsIsArray(t *testing.T) {
	t.Parallel()

	w := sink.NewArtifactWriter(t.TempDir(), "questions.json", "stats.json")
	require.NoError(t, w.WriteQuestions(nil))

	raw, err := os.ReadFile(w.QuestionsPath())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestArtifactWriter_Stats(t *testing.T) {
	t.Parallel()

	w := sink.NewArtifactWriter(t.TempDir(), "questions.json", "stats.json")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := domain.StatsReport{
		RunID:          "run-1",
		PagesScanned:   12,
		QuestionsFound: 30,
		Errors:         1,
		VisitedURLs:    []string{"https://oneprep.xyz/a"},
		FailedURLs:     []string{"https://oneprep.xyz/b"},
		DurationMs:     1500,
		StartTime:      start,
		EndTime:        start.Add(1500 * time.Millisecond),
	}
	require.NoError(t, w.WriteStats(report))

	raw, err := os.ReadFile(w.StatsPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pagesScanned": 12`)

	loaded, err := sink.ReadStats(w.StatsPath())
	require.NoError(t, err)
	assert.Equal(t, report, loaded)
}

func TestReadQuestions_Errors(t *testing.T) {
	t.Parallel()

	_, err := sink.ReadQuestions(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = sink.ReadQuestions(bad)
	require.Error(t, err)
}
