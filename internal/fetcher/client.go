package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrTooManyRedirects is returned by clients of NewHTTPClient when a
// redirect chain exceeds the configured cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// DialContextFunc dials a network connection, typically through a proxy.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NewHTTPClient returns an http.Client for off-site fetches.
// When dial is nil the default transport dialer is used.
func NewHTTPClient(timeout time.Duration, maxRedirects int, dial DialContextFunc) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
	}
	transport = transport.Clone()
	if dial != nil {
		transport.DialContext = dial
		// A proxy dialer resolves names itself.
		transport.Proxy = nil
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
}
