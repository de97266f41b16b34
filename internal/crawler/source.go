package crawler

import (
	"context"
	"errors"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/renderer"
)

// Page source names, used in logs and metric labels.
const (
	SourceStatic   = "static"
	SourceRenderer = "renderer"
)

// reasonUnknown labels failures that carry no typed reason.
const reasonUnknown = "unknown"

// PageSource retrieves one page as a DOM handle.
type PageSource interface {
	Name() string
	Load(ctx context.Context, pageURL string) (dom.Handle, error)
	// Interactive reports whether a person can act on the page between
	// loads, which enables the login grace period.
	Interactive() bool
}

// DocumentFetcher is the part of the HTTP fetcher the static source uses.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, pageURL string) (dom.Handle, error)
}

// PageRenderer is the part of the browser renderer the rendered source uses.
type PageRenderer interface {
	Render(ctx context.Context, pageURL string, opts renderer.RenderOptions) (dom.Handle, error)
	Interactive() bool
}

// StaticSource loads pages with plain HTTP requests.
type StaticSource struct {
	fetcher DocumentFetcher
}

// NewStaticSource wraps f.
func NewStaticSource(f DocumentFetcher) *StaticSource {
	return &StaticSource{fetcher: f}
}

// Name implements PageSource.
func (s *StaticSource) Name() string { return SourceStatic }

// Load implements PageSource.
func (s *StaticSource) Load(ctx context.Context, pageURL string) (dom.Handle, error) {
	return s.fetcher.FetchDocument(ctx, pageURL)
}

// Interactive implements PageSource. Static pages never are.
func (s *StaticSource) Interactive() bool { return false }

// RenderedSource loads pages in a browser tab.
type RenderedSource struct {
	renderer PageRenderer
	opts     renderer.RenderOptions
}

// NewRenderedSource renders every page with opts.
func NewRenderedSource(r PageRenderer, opts renderer.RenderOptions) *RenderedSource {
	return &RenderedSource{renderer: r, opts: opts}
}

// Name implements PageSource.
func (s *RenderedSource) Name() string { return SourceRenderer }

// Load implements PageSource.
func (s *RenderedSource) Load(ctx context.Context, pageURL string) (dom.Handle, error) {
	return s.renderer.Render(ctx, pageURL, s.opts)
}

// Interactive implements PageSource.
func (s *RenderedSource) Interactive() bool { return s.renderer.Interactive() }

// failureReason extracts the typed reason of a load error.
func failureReason(err error) string {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	var renderErr *renderer.RenderError
	if errors.As(err, &renderErr) {
		return renderErr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fetcher.ReasonTimeout
	}
	return reasonUnknown
}
