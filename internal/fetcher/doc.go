// Package fetcher retrieves remote documents over HTTP(S).
//
// A Fetcher issues exactly one GET per call. Failures of the transport
// (DNS, refused connections, TLS handshakes, timeouts, truncated bodies)
// are returned as *model.FetchError so callers can record them on the
// link that triggered the fetch and carry on. Any other error, such as a
// malformed request or a cancelled context, is returned as is and is
// expected to abort the run.
package fetcher
