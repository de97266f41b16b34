package dom

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Document is a Handle backed by a parsed goquery document.
type Document struct {
	url      string
	doc      *goquery.Document
	evaluate EvaluateFunc
	text     string
	textDone bool
}

// Option configures a Document.
type Option func(*Document)

// WithEvaluator attaches a live script engine to the document.
func WithEvaluator(fn EvaluateFunc) Option {
	return func(d *Document) {
		d.evaluate = fn
	}
}

// NewDocument parses r as HTML.
func NewDocument(pageURL string, r io.Reader, opts ...Option) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse %s: %w", pageURL, err)
	}

	d := &Document{url: pageURL, doc: doc}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// NewDocumentFromString parses an HTML string.
func NewDocumentFromString(pageURL, html string, opts ...Option) (*Document, error) {
	return NewDocument(pageURL, strings.NewReader(html), opts...)
}

// URL implements Handle.
func (d *Document) URL() string { return d.url }

// HTML implements Handle.
func (d *Document) HTML() string {
	html, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return html
}

// Text implements Handle. The result is computed once.
func (d *Document) Text() string {
	if !d.textDone {
		root := d.doc.Find("body")
		if root.Length() == 0 {
			root = d.doc.Selection
		}
		d.text = VisibleText(root.Nodes...)
		d.textDone = true
	}
	return d.text
}

// QueryText implements Handle.
func (d *Document) QueryText(selector string) string {
	return queryText(d.doc.Selection, selector)
}

// QueryAll implements Handle.
func (d *Document) QueryAll(selector string) []Element {
	return queryAll(d.doc.Selection, selector)
}

// Evaluate implements Handle.
func (d *Document) Evaluate(ctx context.Context, script string, out any) error {
	if d.evaluate == nil {
		return ErrEvaluateUnsupported
	}
	return d.evaluate(ctx, script, out)
}

// Selection exposes the underlying goquery selection for callers that need
// the full goquery API.
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

type element struct {
	sel *goquery.Selection
}

func (e element) Text() string {
	return VisibleText(e.sel.Nodes...)
}

func (e element) HTML() string {
	html, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return ""
	}
	return html
}

func (e element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e element) QueryText(selector string) string {
	return queryText(e.sel, selector)
}

func (e element) QueryAll(selector string) []Element {
	return queryAll(e.sel, selector)
}

func find(sel *goquery.Selection, selector string) *goquery.Selection {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return sel.FilterFunction(func(int, *goquery.Selection) bool { return false })
	}
	return sel.FindMatcher(matcher)
}

func queryText(sel *goquery.Selection, selector string) string {
	match := find(sel, selector).First()
	if match.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(VisibleText(match.Nodes...))
}

func queryAll(sel *goquery.Selection, selector string) []Element {
	matches := find(sel, selector)
	out := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, element{sel: s})
	})
	return out
}
