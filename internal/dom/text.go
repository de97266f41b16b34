package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements never contribute visible text.
var skippedElements = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Template: {},
	atom.Head:     {},
	atom.Svg:      {},
}

// blockElements start a new line in the visible text.
var blockElements = map[atom.Atom]struct{}{
	atom.Address: {}, atom.Article: {}, atom.Aside: {}, atom.Blockquote: {},
	atom.Br: {}, atom.Dd: {}, atom.Div: {}, atom.Dl: {}, atom.Dt: {},
	atom.Fieldset: {}, atom.Figcaption: {}, atom.Figure: {}, atom.Footer: {},
	atom.Form: {}, atom.H1: {}, atom.H2: {}, atom.H3: {}, atom.H4: {},
	atom.H5: {}, atom.H6: {}, atom.Header: {}, atom.Hr: {}, atom.Label: {},
	atom.Li: {}, atom.Main: {}, atom.Nav: {}, atom.Ol: {}, atom.P: {},
	atom.Pre: {}, atom.Section: {}, atom.Table: {}, atom.Td: {}, atom.Th: {},
	atom.Tr: {}, atom.Ul: {}, atom.Option: {}, atom.Button: {},
}

// VisibleText renders the text of nodes with one block element per line.
// Runs of spaces inside a line collapse to one space and blank lines are
// dropped.
func VisibleText(nodes ...*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return tidyLines(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, skip := skippedElements[n.DataAtom]; skip {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	default:
	}

	_, block := blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
