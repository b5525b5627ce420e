package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

const (
	// DefaultUserAgent identifies the checker to remote servers.
	DefaultUserAgent = "linkcheck (+https://github.com/nao1215/linkcheck)"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultTimeout is the per-request timeout of NewHTTPClient.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the redirect limit of NewHTTPClient.
	DefaultMaxRedirects = 10
)

// Response is the outcome of a completed HTTP exchange.
type Response struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body holds the response body. It is only read for usable responses.
	Body []byte
}

// Usable reports whether the response may be parsed for anchors:
// a non-error status and an HTML content type.
func (r *Response) Usable() bool {
	if r == nil {
		return false
	}
	return r.StatusCode >= http.StatusOK &&
		r.StatusCode < http.StatusBadRequest &&
		model.IsHTMLContentType(r.ContentType)
}

// Fetcher performs GET requests with a shared http.Client.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	headers     http.Header
	logger      *slog.Logger

	// requests counts the requests sent.
	requests atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.headers.Add(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher. A nil client is replaced by NewHTTPClient with
// default settings.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout, DefaultMaxRedirects, nil)
	}
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(http.Header),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Requests returns the number of requests sent so far.
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// Fetch sends one GET request to rawURL.
//
// A transport failure is returned as *model.FetchError together with a nil
// response. An HTTP error status is not an error: the response is returned
// and Usable reports false.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	for key, values := range f.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	f.requests.Add(1)
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	result := &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if result.Usable() {
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			return nil, f.transportError(ctx, rawURL, err)
		}
		result.Body = body
	}

	f.logger.Debug("fetched",
		slog.String("url", rawURL),
		slog.Int("status", result.StatusCode),
		slog.String("content_type", result.ContentType),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// transportError converts err into a *model.FetchError when it is a
// transport failure. Cancellation of ctx and unrecognized errors are
// returned unchanged.
func (f *Fetcher) transportError(ctx context.Context, rawURL string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	kind, ok := Classify(err)
	if !ok {
		return err
	}
	f.logger.Debug("fetch failed",
		slog.String("url", rawURL),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	return model.NewFetchError(rawURL, kind, err)
}
