package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

const (
	artifactDirPerm  = 0o755
	artifactFilePerm = 0o644
)

// ArtifactWriter writes the questions and stats files of a run.
type ArtifactWriter struct {
	dir           string
	questionsFile string
	statsFile     string
}

// NewArtifactWriter writes into dir using the given file names.
func NewArtifactWriter(dir, questionsFile, statsFile string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, questionsFile: questionsFile, statsFile: statsFile}
}

// QuestionsPath is where WriteQuestions writes.
func (w *ArtifactWriter) QuestionsPath() string {
	return filepath.Join(w.dir, w.questionsFile)
}

// StatsPath is where WriteStats writes.
func (w *ArtifactWriter) StatsPath() string {
	return filepath.Join(w.dir, w.statsFile)
}

// WriteQuestions writes questions as an indented JSON array.
func (w *ArtifactWriter) WriteQuestions(questions []domain.Question) error {
	if questions == nil {
		questions = []domain.Question{}
	}
	return w.write(w.QuestionsPath(), questions)
}

// WriteStats writes the run report.
func (w *ArtifactWriter) WriteStats(report domain.StatsReport) error {
	return w.write(w.StatsPath(), report)
}

func (w *ArtifactWriter) write(path string, v any) error {
	if err := os.MkdirAll(w.dir, artifactDirPerm); err != nil {
		return fmt.Errorf("create output dir %s: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if writeErr := os.WriteFile(tmp, append(data, '\n'), artifactFilePerm); writeErr != nil {
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	if renameErr := os.Rename(tmp, path); renameErr != nil {
		return fmt.Errorf("replace %s: %w", path, renameErr)
	}
	return nil
}

// ReadQuestions loads a questions artifact.
func ReadQuestions(path string) ([]domain.Question, error) {
	var questions []domain.Question
	if err := readJSON(path, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// ReadStats loads a stats artifact.
func ReadStats(path string) (domain.StatsReport, error) {
	var report domain.StatsReport
	if err := readJSON(path, &report); err != nil {
		return domain.StatsReport{}, err
	}
	return report, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if unmarshalErr := json.Unmarshal(data, v); unmarshalErr != nil {
		return fmt.Errorf("parse %s: %w", path, unmarshalErr)
	}
	return nil
}
