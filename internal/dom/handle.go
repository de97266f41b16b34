// Package dom exposes a page as a small query capability so pipeline code
// does not care whether the page came from a static fetch or a live browser.
package dom

import (
	"context"
	"errors"
)

// ErrEvaluateUnsupported is returned by Evaluate on documents that have no
// script engine behind them.
var ErrEvaluateUnsupported = errors.New("dom: evaluate is not supported by this document")

// Element is one matched node.
type Element interface {
	Text() string
	HTML() string
	Attr(name string) (string, bool)
	QueryText(selector string) string
	QueryAll(selector string) []Element
}

// Handle is a loaded page.
type Handle interface {
	// URL is the address the page was loaded from.
	URL() string
	// HTML is the serialized document.
	HTML() string
	// Text is the visible body text, one block element per line.
	Text() string
	// QueryText returns the trimmed text of the first match, or "".
	QueryText(selector string) string
	// QueryAll returns every match in document order. Invalid selectors
	// match nothing.
	QueryAll(selector string) []Element
	// Evaluate runs a script against the live page and decodes the result
	// into out.
	Evaluate(ctx context.Context, script string, out any) error
}

// EvaluateFunc executes script in a live page.
type EvaluateFunc func(ctx context.Context, script string, out any) error
