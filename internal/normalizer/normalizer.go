// Package normalizer converts raw extraction output into canonical
// questions and keeps the first record seen for each fingerprint.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

const (
	dedupKeyLength   = 100
	questionIDPrefix = "q-"
	questionIDHexLen = 16
)

// Normalizer accumulates unique questions in arrival order. It is owned by
// one coordinator and is not safe for concurrent use.
type Normalizer struct {
	runID     string
	now       func() time.Time
	seen      map[string]struct{}
	questions []domain.Question
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// New returns an empty normalizer stamping records with runID.
func New(runID string, opts ...Option) *Normalizer {
	n := &Normalizer{
		runID: runID,
		now:   time.Now,
		seen:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Add canonicalizes raws and keeps those with an unseen DedupKey. It
// returns how many were accepted.
func (n *Normalizer) Add(raws ...domain.RawQuestion) int {
	added := 0
	for _, raw := range raws {
		q, ok := n.canonical(raw)
		if !ok {
			continue
		}
		if _, dup := n.seen[q.DedupKey]; dup {
			continue
		}
		n.seen[q.DedupKey] = struct{}{}
		n.questions = append(n.questions, q)
		added++
	}
	return added
}

// Questions returns a copy of the accepted questions in arrival order.
func (n *Normalizer) Questions() []domain.Question {
	out := make([]domain.Question, len(n.questions))
	copy(out, n.questions)
	return out
}

// Len is the number of accepted questions.
func (n *Normalizer) Len() int {
	return len(n.questions)
}

// Truncate drops questions beyond max.
func (n *Normalizer) Truncate(maxQuestions int) {
	if maxQuestions < 0 || len(n.questions) <= maxQuestions {
		return
	}
	for _, q := range n.questions[maxQuestions:] {
		delete(n.seen, q.DedupKey)
	}
	n.questions = n.questions[:maxQuestions]
}

// Normalize canonicalizes and deduplicates raws in one call.
func Normalize(raws []domain.RawQuestion) []domain.Question {
	n := New("")
	n.Add(raws...)
	return n.Questions()
}

// DedupKey is the external id when present, otherwise the first 100
// characters of the trimmed question text.
func DedupKey(raw domain.RawQuestion) string {
	if id := strings.TrimSpace(raw.ExternalID); id != "" {
		return id
	}
	return truncateRunes(strings.TrimSpace(raw.QuestionText), dedupKeyLength)
}

// QuestionID derives the sink conflict key from a dedup key and optional
// external id.
func QuestionID(dedupKey, externalID string) string {
	if id := strings.TrimSpace(externalID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(dedupKey))
	return questionIDPrefix + hex.EncodeToString(sum[:])[:questionIDHexLen]
}

// Dedupe keeps the first question per DedupKey, recomputing missing keys
// from the question text. Applying it twice gives the same result.
func Dedupe(questions []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(questions))
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.DedupKey) == "" {
			q.DedupKey = truncateRunes(strings.TrimSpace(q.Content.Question), dedupKeyLength)
		}
		if q.DedupKey == "" {
			continue
		}
		if q.QuestionID == "" {
			q.QuestionID = QuestionID(q.DedupKey, "")
		}
		if _, dup := seen[q.DedupKey]; dup {
			continue
		}
		seen[q.DedupKey] = struct{}{}
		out = append(out, q)
	}
	return out
}

func (n *Normalizer) canonical(raw domain.RawQuestion) (domain.Question, bool) {
	text := strings.TrimSpace(raw.QuestionText)
	if text == "" {
		return domain.Question{}, false
	}
	key := DedupKey(raw)

	options := make([]string, len(raw.Options))
	copy(options, raw.Options)

	return domain.Question{
		QuestionID: QuestionID(key, raw.ExternalID),
		DedupKey:   key,
		Module:     orDefault(raw.InferredModule, domain.ModuleMath),
		Difficulty: orDefault(raw.InferredDifficulty, domain.DifficultyMedium),
		Content: domain.Content{
			Question:      text,
			Options:       options,
			CorrectAnswer: deref(raw.CorrectAnswer),
			Explanation:   deref(raw.Explanation),
		},
		Program: domain.ProgramSAT,
		Provenance: domain.Provenance{
			SourceURL:     raw.SourceURL,
			Strategy:      raw.Strategy,
			RunID:         n.runID,
			ExtractedAt:   n.now().UTC(),
			LowConfidence: raw.LowConfidence,
		},
		Active: true,
	}, true
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
