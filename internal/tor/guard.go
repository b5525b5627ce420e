package tor

import (
	"context"
	"net/url"

	"github.com/nao1215/linkcheck/internal/fetcher"
	"github.com/nao1215/linkcheck/internal/model"
)

// Fetcher retrieves one URL. It matches the fetcher used by the link graph.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// OnionGuard wraps a Fetcher and answers .onion URLs that cannot succeed
// without touching the network: malformed or v2 addresses always, and
// every onion address when no proxy route is configured.
type OnionGuard struct {
	next   Fetcher
	routed bool
}

// NewOnionGuard returns a guard in front of next. routed tells whether
// next dials through a SOCKS5 proxy able to reach onion services.
func NewOnionGuard(next Fetcher, routed bool) *OnionGuard {
	return &OnionGuard{next: next, routed: routed}
}

// Fetch implements Fetcher.
func (g *OnionGuard) Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !IsOnionHost(u.Host) {
		return g.next.Fetch(ctx, rawURL)
	}

	addr := serviceAddress(u.Host)
	if IsV2Address(addr) || !IsValidV3Address(addr) {
		return nil, model.NewFetchError(rawURL, model.FetchErrorDNS, ErrInvalidOnion)
	}
	if !g.routed {
		return nil, model.NewFetchError(rawURL, model.FetchErrorDNS, ErrOnionUnroutable)
	}

	return g.next.Fetch(ctx, rawURL)
}
