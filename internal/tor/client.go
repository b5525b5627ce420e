package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/linkcheck/internal/fetcher"
)

// checkProxyTimeout bounds the SOCKS5 handshake of CheckConnection.
const checkProxyTimeout = 2 * time.Second

// Client dials through a SOCKS5 proxy, typically a Tor daemon.
type Client struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is the SOCKS5 dialer, reused for every connection.
	dialer proxy.Dialer
}

// NewClient creates a client for the SOCKS5 proxy at proxyAddress.
// The address is "host:port", optionally prefixed with socks5:// or
// socks5h://. The proxy is not contacted; call CheckConnection to verify it.
func NewClient(proxyAddress string) (*Client, error) {
	addr, err := parseProxyAddress(proxyAddress)
	if err != nil {
		return nil, err
	}

	// Tor's SOCKS port does not require authentication.
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: addr,
		dialer:       dialer,
	}, nil
}

// parseProxyAddress strips an optional socks5 scheme and validates host:port.
func parseProxyAddress(address string) (string, error) {
	for _, scheme := range []string{"socks5h://", "socks5://"} {
		if rest, ok := strings.CutPrefix(address, scheme); ok {
			address = strings.TrimSuffix(rest, "/")
			break
		}
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return "", ErrInvalidProxyAddress
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", ErrInvalidProxyAddress
	}

	return address, nil
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestHost is a reserved name used only to see the proxy answer
	// a CONNECT request; the connection itself is expected to fail.
	socks5TestHost = "linkcheck.invalid"
)

// CheckConnection verifies that a SOCKS5 proxy is listening at the
// configured address by performing a greeting and a CONNECT exchange.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	const testPort = 80
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(socks5TestHost)),
	}
	connectReq = append(connectReq, socks5TestHost...)
	connectReq = append(connectReq, byte(testPort>>8), byte(testPort&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// Any reply code proves the proxy processed the request.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// DialContext establishes a connection through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// HTTPClient returns an HTTP client for off-site fetches that dials
// through the proxy. Host names are resolved by the proxy.
func (c *Client) HTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return fetcher.NewHTTPClient(timeout, maxRedirects, c.DialContext)
}
