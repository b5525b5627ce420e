package model

import "fmt"

// Validity is the tri-state verdict of a link.
type Validity int

const (
	// ValidityUnknown is the state of a link that has not been judged yet.
	ValidityUnknown Validity = iota

	// ValidityValid marks a link whose target (and fragment) exist.
	ValidityValid

	// ValidityInvalid marks a broken link.
	ValidityInvalid
)

// String returns a lower-case name for the validity.
func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Validity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Link represents one hyperlink occurrence on a source page.
// A link refers to its target page by canonical path only; the target may
// not exist in the registry yet when the link is created.
type Link struct {
	// Href is the raw attribute value as authored.
	Href string `json:"href"`

	// Text is the visible anchor text, used only in reports.
	Text string `json:"text,omitempty"`

	// TargetPath is the canonical path or URL of the destination,
	// without the fragment.
	TargetPath string `json:"target_path"`

	// Fragment is the part of Href after '#'. Only meaningful when
	// HasFragment is true; an href ending in a bare '#' has an empty fragment.
	Fragment string `json:"fragment,omitempty"`

	// HasFragment reports whether Href carried a '#'.
	HasFragment bool `json:"has_fragment"`

	// Validity is the verdict. It is set at most once; see SetValidity.
	Validity Validity `json:"validity"`

	// FetchError is set when the destination could not be retrieved.
	FetchError *FetchError `json:"fetch_error,omitempty"`
}

// NewLink creates a link in the unknown state.
func NewLink(href, text, targetPath, fragment string, hasFragment bool) *Link {
	return &Link{
		Href:        href,
		Text:        text,
		TargetPath:  targetPath,
		Fragment:    fragment,
		HasFragment: hasFragment,
	}
}

// SetValidity records the verdict unless one has already been recorded.
// It returns false when the link had already been judged.
func (l *Link) SetValidity(v Validity) bool {
	if l.Validity != ValidityUnknown {
		return false
	}
	l.Validity = v
	return true
}

// MarkFetchFailed records a transport failure and marks the link invalid.
func (l *Link) MarkFetchFailed(err *FetchError) {
	if l.FetchError == nil {
		l.FetchError = err
	}
	l.SetValidity(ValidityInvalid)
}

// Valid reports whether the link was judged valid.
func (l *Link) Valid() bool {
	return l.Validity == ValidityValid
}

// FetchErrorKind classifies transport-layer failures.
type FetchErrorKind string

const (
	// FetchErrorTimeout is a request or dial timeout.
	FetchErrorTimeout FetchErrorKind = "timeout"

	// FetchErrorDNS is a host name resolution failure.
	FetchErrorDNS FetchErrorKind = "dns"

	// FetchErrorConnection is a refused, reset or otherwise failed connection.
	FetchErrorConnection FetchErrorKind = "connection"

	// FetchErrorTLS is a TLS handshake or certificate failure.
	FetchErrorTLS FetchErrorKind = "tls"

	// FetchErrorProtocol is a malformed or truncated HTTP exchange.
	FetchErrorProtocol FetchErrorKind = "protocol"

	// FetchErrorRedirect is a redirect chain longer than the configured cap.
	FetchErrorRedirect FetchErrorKind = "redirect"
)

// FetchError describes a transport failure while fetching a remote target.
type FetchError struct {
	// URL is the address that was requested.
	URL string `json:"url"`

	// Kind classifies the failure.
	Kind FetchErrorKind `json:"kind"`

	// Message is the text of the underlying error, kept for serialization.
	Message string `json:"message"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// NewFetchError wraps err as a FetchError of the given kind.
func NewFetchError(url string, kind FetchErrorKind, err error) *FetchError {
	fe := &FetchError{URL: url, Kind: kind, Err: err}
	if err != nil {
		fe.Message = err.Error()
	}
	return fe
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s error: %s", e.URL, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}
