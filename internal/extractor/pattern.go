package extractor

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

// QuestionKeywords must appear in a mined question line.
var QuestionKeywords = []string{
	"What", "Which", "How", "Solve", "Find", "Calculate", "Determine", "Select", "Choose",
}

// NoiseTokens disqualify a line as navigation or site chrome.
var NoiseTokens = []string{
	"Menu", "Navigation", "Login", "Log in", "Sign up", "Sign in",
	"Home", "Practice Tests", "Cookie", "Privacy",
}

const (
	minMinedLength = 20
	maxMinedLength = 1000
	// optionLookahead bounds how many lines after a question are scanned
	// for its choices.
	optionLookahead = 8
)

var minedOptionRe = regexp.MustCompile(`^\(?([A-D]\)|[A-D]\.|[1-4]\.)\s*\S`)

// PatternMining finds question sentences in the visible text of pages
// without usable markup.
type PatternMining struct{}

// NewPatternMining returns the text-mining strategy.
func NewPatternMining() *PatternMining { return &PatternMining{} }

// Name implements Strategy.
func (p *PatternMining) Name() string { return domain.StrategyPattern }

// Extract implements Strategy.
func (p *PatternMining) Extract(doc dom.Handle) ([]domain.RawQuestion, error) {
	return mineText(doc.Text(), doc.URL()), nil
}

// IsQuestionLine reports whether a cleaned line reads like a question.
func IsQuestionLine(line string) bool {
	n := len([]rune(line))
	if n < minMinedLength || n > maxMinedLength {
		return false
	}
	if !strings.Contains(line, "?") {
		return false
	}
	if !containsAny(line, QuestionKeywords) {
		return false
	}
	return !containsAny(line, NoiseTokens)
}

func mineText(text, sourceURL string) []domain.RawQuestion {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = CleanText(lines[i])
	}

	var out []domain.RawQuestion
	for i, line := range lines {
		if !IsQuestionLine(line) {
			continue
		}

		var options []string
		for j := i + 1; j < len(lines) && j <= i+optionLookahead && len(options) < maxOptions; j++ {
			next := lines[j]
			if IsQuestionLine(next) {
				break
			}
			if minedOptionRe.MatchString(next) {
				options = append(options, next)
			}
		}
		options, lowConfidence := finishOptions(options)

		out = append(out, domain.RawQuestion{
			QuestionText:       line,
			Options:            options,
			InferredDifficulty: domain.DifficultyMedium,
			InferredModule:     InferModule("", sourceURL),
			LowConfidence:      lowConfidence,
		})
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
