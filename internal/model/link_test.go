package model

import (
	"errors"
	"strings"
	"testing"
)

// TestLinkSetValidity tests that a verdict is never overwritten.
func TestLinkSetValidity(t *testing.T) {
	t.Parallel()

	t.Run("first verdict is recorded", func(t *testing.T) {
		t.Parallel()

		link := NewLink("page.html", "", "page.html", "", false)
		if !link.SetValidity(ValidityValid) {
			t.Fatal("expected first SetValidity to succeed")
		}
		if !link.Valid() {
			t.Error("expected link to be valid")
		}
	})

	t.Run("second verdict is ignored", func(t *testing.T) {
		t.Parallel()

		link := NewLink("page.html", "", "page.html", "", false)
		link.SetValidity(ValidityInvalid)
		if link.SetValidity(ValidityValid) {
			t.Error("expected second SetValidity to be rejected")
		}
		if link.Validity != ValidityInvalid {
			t.Errorf("expected invalid, got %s", link.Validity)
		}
	})
}

// TestLinkMarkFetchFailed tests fetch failure recording.
func TestLinkMarkFetchFailed(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such host")
	fe := NewFetchError("https://nosuch.invalid/", FetchErrorDNS, cause)

	link := NewLink("https://nosuch.invalid/", "", "https://nosuch.invalid/", "", false)
	link.MarkFetchFailed(fe)

	if link.Validity != ValidityInvalid {
		t.Errorf("expected invalid, got %s", link.Validity)
	}
	if link.FetchError != fe {
		t.Error("expected fetch error to be recorded")
	}
	if !errors.Is(link.FetchError, cause) {
		t.Error("expected FetchError to unwrap to its cause")
	}
	if !strings.Contains(fe.Error(), "dns") {
		t.Errorf("expected kind in message, got %q", fe.Error())
	}
}

// TestValidityString tests the Validity names.
func TestValidityString(t *testing.T) {
	t.Parallel()

	tests := map[Validity]string{
		ValidityUnknown: "unknown",
		ValidityValid:   "valid",
		ValidityInvalid: "invalid",
	}
	for v, want := range tests {
		if got := v.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", v, got, want)
		}
	}
}
