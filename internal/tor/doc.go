// Package tor routes off-site link checks through a SOCKS5 proxy.
//
// A Client wraps a golang.org/x/net/proxy SOCKS5 dialer and hands it to
// the fetcher's HTTP client, so documentation that links to hidden
// services (or a site only reachable through a proxy) can be checked.
// EmbeddedTor starts a private Tor daemon through tornago when no proxy is
// running. OnionGuard short-circuits .onion links that can never succeed.
package tor
