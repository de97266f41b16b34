package stats_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/question-crawler/cmd/stats"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

func TestStatsCommand_RendersArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := sink.NewArtifactWriter(dir, "questions.json", "stats.json")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writer.WriteStats(domain.NewStatsReport(domain.Stats{
		RunID:          "run-42",
		PagesScanned:   9,
		QuestionsFound: 31,
		Errors:         1,
		StartTime:      start,
		EndTime:        start.Add(90 * time.Second),
	}, []string{"https://prep.org/practice"}, []string{"https://prep.org/practice/broken"})))

	cmd := stats.Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{writer.StatsPath()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "run-42")
	assert.Contains(t, out.String(), "31")
	assert.Contains(t, out.String(), "1m30s")
	assert.Contains(t, out.String(), "https://prep.org/practice/broken")
}

func TestStatsCommand_MissingFile(t *testing.T) {
	t.Parallel()

	cmd := stats.Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.json")})

	require.Error(t, cmd.Execute())
}
