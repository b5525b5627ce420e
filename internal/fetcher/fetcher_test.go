package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

func isFetchError(err error) bool {
	var fe *model.FetchError
	return errors.As(err, &fe)
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/doc.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-Agent", r.Header.Get("User-Agent"))
		w.Header().Set("X-Seen-Token", r.Header.Get("X-Token"))
		_, _ = w.Write([]byte(`<html><body><h1 id="top">Doc</h1></body></html>`))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x"}`))
	})
	mux.HandleFunc("/missing.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<html><body id="nope"></body></html>`))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow.html", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestFetch tests successful and HTTP-error fetches.
func TestFetch(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantUsable bool
		wantBody   bool
	}{
		{"html document", "/doc.html", http.StatusOK, true, true},
		{"non html document", "/data.json", http.StatusOK, false, false},
		{"not found", "/missing.html", http.StatusNotFound, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := New(server.Client())
			resp, err := f.Fetch(context.Background(), server.URL+tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Usable() != tt.wantUsable {
				t.Errorf("Usable() = %v, want %v", resp.Usable(), tt.wantUsable)
			}
			if (len(resp.Body) > 0) != tt.wantBody {
				t.Errorf("body read = %v, want %v", len(resp.Body) > 0, tt.wantBody)
			}
			if f.Requests() != 1 {
				t.Errorf("Requests() = %d, want 1", f.Requests())
			}
		})
	}
}

// TestFetchHeaders tests that the user agent and extra headers are sent.
func TestFetchHeaders(t *testing.T) {
	t.Parallel()

	var seenAgent, seenToken string
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seenAgent = req.Header.Get("User-Agent")
		seenToken = req.Header.Get("X-Token")
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       http.NoBody,
			Request:    req,
		}, nil
	})}

	f := New(client, WithUserAgent("test-agent/1.0"), WithHeader("X-Token", "abc"))
	if _, err := f.Fetch(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenAgent != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", seenAgent)
	}
	if seenToken != "abc" {
		t.Errorf("X-Token = %q", seenToken)
	}
}

// TestFetchTransportErrors tests that transport failures become *model.FetchError.
func TestFetchTransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("dns failure", func(t *testing.T) {
		t.Parallel()

		client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return nil, &net.DNSError{Err: "no such host", Name: req.URL.Hostname(), IsNotFound: true}
		})}

		_, err := New(client).Fetch(context.Background(), "http://nowhere.invalid/x.html")
		assertFetchError(t, err, model.FetchErrorDNS)
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		addr := listener.Addr().String()
		listener.Close()

		_, err = New(nil).Fetch(context.Background(), "http://"+addr+"/x.html")
		assertFetchError(t, err, model.FetchErrorConnection)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		client := server.Client()
		client.Timeout = 50 * time.Millisecond

		_, err := New(client).Fetch(context.Background(), server.URL+"/slow.html")
		assertFetchError(t, err, model.FetchErrorTimeout)
	})

	t.Run("redirect loop", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		client := NewHTTPClient(time.Second, 3, nil)

		_, err := New(client).Fetch(context.Background(), server.URL+"/loop")
		assertFetchError(t, err, model.FetchErrorRedirect)
		if !errors.Is(err, ErrTooManyRedirects) {
			t.Errorf("expected ErrTooManyRedirects in chain, got %v", err)
		}
	})
}

// TestFetchNonTransportErrors tests that other failures propagate unchanged.
func TestFetchNonTransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil).Fetch(context.Background(), "http://[::1")
		if err == nil {
			t.Fatal("expected error")
		}
		if isFetchError(err) {
			t.Errorf("expected plain error, got fetch error %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(server.Client()).Fetch(ctx, server.URL+"/doc.html")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if isFetchError(err) {
			t.Error("cancellation must not be a fetch error")
		}
	})
}

// TestResponseUsable tests the usability predicate.
func TestResponseUsable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *Response
		want bool
	}{
		{"nil", nil, false},
		{"ok html", &Response{StatusCode: 200, ContentType: "text/html"}, true},
		{"redirect status html", &Response{StatusCode: 304, ContentType: "text/html"}, true},
		{"xhtml", &Response{StatusCode: 200, ContentType: "application/xhtml+xml"}, true},
		{"ok plain", &Response{StatusCode: 200, ContentType: "text/plain"}, false},
		{"server error", &Response{StatusCode: 500, ContentType: "text/html"}, false},
		{"zero status", &Response{StatusCode: 0, ContentType: "text/html"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.resp.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func assertFetchError(t *testing.T, err error, want model.FetchErrorKind) {
	t.Helper()

	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *model.FetchError, got %T: %v", err, err)
	}
	if fe.Kind != want {
		t.Errorf("kind = %q, want %q (%v)", fe.Kind, want, err)
	}
}

// TestClassify tests the transport failure kinds.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   model.FetchErrorKind
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"dns", &net.DNSError{Err: "no such host", Name: "x.invalid"}, model.FetchErrorDNS, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, model.FetchErrorConnection, true},
		{"redirect cap", &url.Error{Op: "Get", URL: "http://x/", Err: fmt.Errorf("%w: stopped after 3", ErrTooManyRedirects)}, model.FetchErrorRedirect, true},
		{"truncated body", io.ErrUnexpectedEOF, model.FetchErrorProtocol, true},
		{"scheme mismatch", &url.Error{Op: "Get", URL: "https://x/", Err: http.ErrSchemeMismatch}, model.FetchErrorProtocol, true},
		{"plain error", errors.New("bug"), "", false},
		{"cancellation", context.Canceled, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Classify(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Classify() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
