package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
)

var (
	markForReviewRe = regexp.MustCompile(`(?i)Mark\s+for\s+Review(\s*\d{1,2}:\d{2})?`)
	solvedRe        = regexp.MustCompile(`(?i)Solved\s+(about\s+)?\d+\s+(second|minute|hour|day|week|month|year)s?\s+ago\s+in(\s+\d+\s+(second|minute|hour)s?)+(\s*\(\d+\s+Attempts?\))?`)
	explanationRe   = regexp.MustCompile(`(?im)^\s*Explanation\s*:?\s*$|^\s*Explanation\s*:\s*`)
	tagRe           = regexp.MustCompile(`<[^>]*>`)
	markupRe        = regexp.MustCompile(`</?[a-zA-Z][^<>]*>|&[a-zA-Z]+;|&#\d+;`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// CleanText removes page chrome from extracted text: markup tags, review
// timers, solve timestamps and Explanation labels. Whitespace is collapsed.
func CleanText(s string) string {
	if markupRe.MatchString(s) {
		s = htmlToText(s)
	}
	// Removing one label can expose another, so strip until nothing changes.
	for {
		stripped := stripChrome(s)
		if stripped == s {
			return s
		}
		s = stripped
	}
}

func stripChrome(s string) string {
	s = markForReviewRe.ReplaceAllString(s, " ")
	s = solvedRe.ReplaceAllString(s, " ")
	s = explanationRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CleanElement cleans the rendered content of el, keeping MathML fractions
// readable.
func CleanElement(el dom.Element) string {
	if el == nil {
		return ""
	}
	return CleanText(el.HTML())
}

// htmlToText parses a markup fragment and renders its visible text with
// MathML fractions as a/b.
func htmlToText(fragment string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return tagRe.ReplaceAllString(fragment, " ")
	}
	for _, n := range nodes {
		rewriteFractions(n)
	}
	return dom.VisibleText(nodes...)
}

func rewriteFractions(n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "mfrac" {
		var parts []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				parts = append(parts, strings.Join(strings.Fields(dom.VisibleText(c)), ""))
			}
		}
		if len(parts) == 2 {
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: parts[0] + "/" + parts[1]})
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteFractions(c)
	}
}
