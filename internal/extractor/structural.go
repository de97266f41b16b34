package extractor

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/classifier"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

// ContainerSelectors match elements wrapping one whole question.
var ContainerSelectors = []string{
	".question-container",
	".question-item",
	".question-body",
	".problem-content",
}

// QuestionTextSelectors locate the stem inside a container.
var QuestionTextSelectors = []string{".question-text", ".stem", ".prompt", "p"}

// OptionSelectors locate answer choices inside a container.
var OptionSelectors = []string{
	".option", ".choice", ".answer-choice", ".multiple-choice-option",
	"[data-option]", "label", "li",
}

// CorrectAnswerSelectors locate the revealed answer.
var CorrectAnswerSelectors = []string{
	".correct-answer", ".answer", "[data-correct]", ".solution", ".correct", ".right-answer",
}

// ExplanationSelectors locate the worked explanation.
var ExplanationSelectors = []string{
	".explanation", ".rationale", ".hint", ".explanation-text", ".solution-text",
}

// DifficultySelectors locate explicit difficulty metadata.
var DifficultySelectors = []string{".difficulty", ".level", "[data-difficulty]"}

// ModuleSelectors locate explicit module metadata.
var ModuleSelectors = []string{".module", ".subject", ".category", ".tag"}

const (
	minOptionLength = 5
	maxOptionLength = 500
)

var (
	optionShapeRe = regexp.MustCompile(`^([A-D]\)|[1-4]\.|[A-D]\.)`)
	questionIDRe  = regexp.MustCompile(`Question ID\s*#\s*(\d+)`)
)

// Structural reads questions from known container markup.
type Structural struct {
	groups [][]string
}

// NewStructural uses ContainerSelectors first and the classifier's
// structural selectors second.
func NewStructural() *Structural {
	return &Structural{groups: [][]string{ContainerSelectors, classifier.StructuralSelectors}}
}

// Name implements Strategy.
func (s *Structural) Name() string { return domain.StrategyStructural }

// Extract implements Strategy.
func (s *Structural) Extract(doc dom.Handle) ([]domain.RawQuestion, error) {
	for _, group := range s.groups {
		containers := outermost(doc.QueryAll(strings.Join(group, ", ")))
		if len(containers) == 0 {
			continue
		}

		var out []domain.RawQuestion
		for _, container := range containers {
			if raw, ok := extractContainer(container, doc.URL()); ok {
				out = append(out, raw)
			}
		}
		return out, nil
	}
	return nil, nil
}

func extractContainer(container dom.Element, sourceURL string) (domain.RawQuestion, bool) {
	rawText := container.Text()

	question := CleanText(stripQuestionID(firstCleaned(container, QuestionTextSelectors)))
	if question == "" {
		question = CleanText(stripQuestionID(CleanElement(container)))
	}
	if !validQuestionLength(question) {
		return domain.RawQuestion{}, false
	}

	options, lowConfidence := finishOptions(collectOptions(container, question))

	raw := domain.RawQuestion{
		QuestionText:       question,
		Options:            options,
		CorrectAnswer:      optional(firstCleanedOrAttr(container, CorrectAnswerSelectors, "data-correct")),
		Explanation:        optional(firstCleaned(container, ExplanationSelectors)),
		ExternalID:         externalID(container, rawText),
		InferredDifficulty: InferDifficulty(firstCleanedOrAttr(container, DifficultySelectors, "data-difficulty")),
		InferredModule:     InferModule(firstCleaned(container, ModuleSelectors), sourceURL),
		LowConfidence:      lowConfidence,
	}
	return raw, true
}

func collectOptions(container dom.Element, question string) []string {
	seen := make(map[string]struct{})
	var options []string
	for _, el := range container.QueryAll(strings.Join(OptionSelectors, ", ")) {
		text := CleanElement(el)
		if text == "" || text == question || !IsOptionShaped(text) {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		options = append(options, text)
	}
	return options
}

// IsOptionShaped reports whether text looks like an answer choice: a
// lettered or numbered marker, or a plausible length.
func IsOptionShaped(text string) bool {
	if optionShapeRe.MatchString(text) {
		return true
	}
	n := len([]rune(text))
	return n > minOptionLength && n < maxOptionLength
}

func externalID(container dom.Element, text string) string {
	if id, ok := container.Attr("data-question-id"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	for _, el := range container.QueryAll("[data-question-id]") {
		if id, _ := el.Attr("data-question-id"); strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	if m := questionIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func stripQuestionID(text string) string {
	return questionIDRe.ReplaceAllString(text, " ")
}

func firstCleaned(container dom.Element, selectors []string) string {
	for _, el := range container.QueryAll(strings.Join(selectors, ", ")) {
		if text := CleanElement(el); text != "" {
			return text
		}
	}
	return ""
}

func firstCleanedOrAttr(container dom.Element, selectors []string, attr string) string {
	if v, ok := container.Attr(attr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, el := range container.QueryAll(strings.Join(selectors, ", ")) {
		if text := CleanElement(el); text != "" {
			return text
		}
		if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// outermost drops matches nested inside an earlier match. Matches arrive
// in document order, so an ancestor always precedes its descendants.
func outermost(elements []dom.Element) []dom.Element {
	var kept []dom.Element
	var keptHTML []string
	for _, el := range elements {
		html := el.HTML()
		nested := false
		for _, outer := range keptHTML {
			if strings.Contains(outer, html) {
				nested = true
				break
			}
		}
		if nested {
			continue
		}
		kept = append(kept, el)
		keptHTML = append(keptHTML, html)
	}
	return kept
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
