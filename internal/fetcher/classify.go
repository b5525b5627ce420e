package fetcher

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/nao1215/linkcheck/internal/model"
)

// Classify reports the kind of transport failure err represents.
// The second result is false when err is not a transport failure.
//
// The checks run from most to least specific: a DNS failure is also a
// net.Error, and a TLS failure is wrapped in a *net.OpError.
func Classify(err error) (model.FetchErrorKind, bool) {
	if err == nil {
		return "", false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.FetchErrorDNS, true
	}
	if isTLSError(err) {
		return model.FetchErrorTLS, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FetchErrorTimeout, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return model.FetchErrorConnection, true
	}

	if errors.Is(err, ErrTooManyRedirects) {
		return model.FetchErrorRedirect, true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, http.ErrSchemeMismatch) {
		return model.FetchErrorProtocol, true
	}

	// The transport reports malformed responses and redirects to
	// unsupported schemes with untyped errors, which only *url.Error
	// marks as coming from the exchange with the server. Request
	// construction errors and cancellation never reach Classify.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return model.FetchErrorProtocol, true
	}
	return "", false
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}
