// Package fetcher retrieves pages over plain HTTP. Each call is a single
// attempt; callers decide whether a failure is retried or skipped.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

const (
	statusSuccessLow  = 200
	statusSuccessHigh = 300
)

// defaultHeaders are sent with every request unless overridden in Config.
var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// Config is the request identity and bounds.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Headers      map[string]string
}

// Response is a successful fetch.
type Response struct {
	URL         string
	FinalURL    string
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher issues single-attempt GET requests.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client. The per-request timeout from
// Config still applies through the request context.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// New creates a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxResponseBodyBytes
	}

	f := &Fetcher{
		client: &http.Client{},
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs one GET of rawURL. Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonNetwork, Err: err}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req) //nolint:gosec // URL comes from the crawl frontier
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < statusSuccessLow || resp.StatusCode >= statusSuccessHigh {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return nil, &FetchError{
			URL:    rawURL,
			Reason: ReasonStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, &FetchError{
			URL:    rawURL,
			Reason: classifyBodyError(err),
			Status: resp.StatusCode,
			Err:    err,
		}
	}

	return &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FetchDocument fetches rawURL and parses it into a static dom.Handle.
// Relative links resolve against the post-redirect URL.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (dom.Handle, error) {
	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := dom.NewDocument(resp.FinalURL, bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonBody, Status: resp.Status, Err: err}
	}

	return doc, nil
}

// maxDrainBytes bounds how much of an error response is drained so the
// connection can be reused.
const maxDrainBytes = 64 * 1024

func (f *Fetcher) setHeaders(req *http.Request) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	reader, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	body, err := io.ReadAll(io.LimitReader(reader, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}

func classifyBodyError(err error) string {
	if classifyTransportError(err) == ReasonTimeout {
		return ReasonTimeout
	}
	return ReasonBody
}
