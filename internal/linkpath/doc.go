// Package linkpath converts hrefs found on a page into canonical registry
// paths.
//
// Everything here is string and path algebra: nothing touches the
// filesystem and nothing is percent-decoded, so the functions can be tested
// without any I/O. Off-site hrefs (anything starting with "http") are
// already canonical and pass through unchanged.
package linkpath
