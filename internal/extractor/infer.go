package extractor

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

// InferDifficulty maps an explicit difficulty label to E, M or H. The first
// recognised word or number in the label decides. Unknown or missing labels
// are medium.
func InferDifficulty(explicit string) string {
	tokens := strings.FieldsFunc(strings.ToLower(explicit), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		if difficulty, ok := difficultyTokens[token]; ok {
			return difficulty
		}
	}
	return domain.DifficultyMedium
}

var difficultyTokens = map[string]string{
	"easy": domain.DifficultyEasy, "beginner": domain.DifficultyEasy, "1": domain.DifficultyEasy, "e": domain.DifficultyEasy,
	"medium": domain.DifficultyMedium, "intermediate": domain.DifficultyMedium, "2": domain.DifficultyMedium, "m": domain.DifficultyMedium,
	"hard": domain.DifficultyHard, "advanced": domain.DifficultyHard, "3": domain.DifficultyHard, "h": domain.DifficultyHard,
}

// InferModule picks the module from explicit metadata, then from the
// source URL. It falls back to math.
func InferModule(explicit, sourceURL string) string {
	if module, ok := moduleFromLabel(explicit); ok {
		return module
	}
	if module, ok := moduleFromURL(sourceURL); ok {
		return module
	}
	return domain.ModuleMath
}

func moduleFromLabel(label string) (string, bool) {
	label = strings.ToLower(label)
	switch {
	case label == "":
		return "", false
	case strings.Contains(label, "math"):
		return domain.ModuleMath, true
	case strings.Contains(label, "reading"), strings.Contains(label, "english"):
		return domain.ModuleReading, true
	case strings.Contains(label, "writing"), strings.Contains(label, "grammar"):
		return domain.ModuleWriting, true
	default:
		return "", false
	}
}

func moduleFromURL(rawURL string) (string, bool) {
	if module, ok := moduleFromLabel(rawURL); ok {
		return module, true
	}
	u, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return "", false
	}
	for _, segment := range strings.Split(u.Path, "/") {
		if segment == "en" {
			return domain.ModuleReading, true
		}
	}
	return "", false
}
