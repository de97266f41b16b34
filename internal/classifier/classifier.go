// Package classifier decides whether a page holds questions and whether it
// sits behind a login wall.
package classifier

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
)

// StructuralSelectors match elements that mark a page as a question page.
var StructuralSelectors = []string{
	".question",
	"[data-question]",
	".question-content",
	".question-text",
	".problem",
	".quiz-question",
	".practice-question",
	".sat-question",
	".multiple-choice",
	".answer-choice",
}

// ContentKeywords are lowercase phrases that suggest question content.
var ContentKeywords = []string{
	"question", "problem", "solve", "answer", "choose", "select",
	"what is", "which of", "how many", "find the", "calculate",
	"multiple choice", "correct answer", "explanation",
}

// ContentPatterns are text shapes that suggest question content:
// numbered items, lettered choices and question marks.
var ContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\.\s*[A-Z]`),
	regexp.MustCompile(`[A-D]\)\s`),
	regexp.MustCompile(`\?`),
}

// AuthPhrases are lowercase phrases shown on login walls.
var AuthPhrases = []string{
	"sign in", "login", "log in to continue", "please log in",
}

// Result explains a classification.
type Result struct {
	HasContent      bool
	Structural      bool
	MatchedSelector string
	MatchedKeyword  string
	MatchedPattern  string
}

// Classify inspects doc. Structural selectors win; otherwise the visible
// text is scanned for keywords and patterns. Keyword hits are advisory.
func Classify(doc dom.Handle) Result {
	if selector, ok := structuralMatch(doc); ok {
		return Result{HasContent: true, Structural: true, MatchedSelector: selector}
	}

	text := doc.Text()
	lower := strings.ToLower(text)
	for _, kw := range ContentKeywords {
		if strings.Contains(lower, kw) {
			return Result{HasContent: true, MatchedKeyword: kw}
		}
	}
	for _, re := range ContentPatterns {
		if re.MatchString(text) {
			return Result{HasContent: true, MatchedPattern: re.String()}
		}
	}
	return Result{}
}

// HasContent reports whether doc likely holds questions.
func HasContent(doc dom.Handle) bool {
	return Classify(doc).HasContent
}

// RequiresAuth reports whether doc is a login wall: the text asks the
// visitor to sign in and no question markup is present.
func RequiresAuth(doc dom.Handle) bool {
	if _, ok := structuralMatch(doc); ok {
		return false
	}
	lower := strings.ToLower(doc.Text())
	for _, phrase := range AuthPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func structuralMatch(doc dom.Handle) (string, bool) {
	for _, selector := range StructuralSelectors {
		if len(doc.QueryAll(selector)) > 0 {
			return selector, true
		}
	}
	return "", false
}
