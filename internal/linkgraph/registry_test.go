package linkgraph

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/linkcheck/internal/model"
)

// TestKey tests registry key normalization.
func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"classes/Foo.html", "classes/Foo.html"},
		{"https://Example.COM:443/Doc.html", "https://example.com/Doc.html"},
		{"HTTPS://Example.COM/Doc.html", "HTTPS://Example.COM/Doc.html"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
	}

	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestRegistryClaim tests that one page exists per canonical path.
func TestRegistryClaim(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	first, created := r.Claim("https://example.com/doc.html", model.OriginTarget)
	if !created {
		t.Fatal("expected first claim to create the page")
	}
	second, created := r.Claim("https://EXAMPLE.com:443/doc.html", model.OriginTarget)
	if created {
		t.Error("expected second claim to reuse the page")
	}
	if first != second {
		t.Error("expected the same page object")
	}
	if got, ok := r.Get("https://example.com/doc.html"); !ok || got != first {
		t.Error("Get() did not return the claimed page")
	}
	if r.Len() != 1 || r.TargetCount() != 1 {
		t.Errorf("Len() = %d, TargetCount() = %d", r.Len(), r.TargetCount())
	}
}

// TestRegistryConcurrentClaim tests that exactly one concurrent claimer creates a page.
func TestRegistryConcurrentClaim(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var creators atomic.Int64
	var wg sync.WaitGroup

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, created := r.Claim("shared.html", model.OriginTarget); created {
				creators.Add(1)
			}
		}()
	}
	wg.Wait()

	if creators.Load() != 1 {
		t.Errorf("creators = %d, want 1", creators.Load())
	}
}

// TestRegistryPagesSorted tests deterministic ordering.
func TestRegistryPagesSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, p := range []string{"z.html", "a.html", "https://example.com/", "m/n.html"} {
		r.Claim(p, model.OriginSource)
	}

	pages := r.Pages()
	for i := 1; i < len(pages); i++ {
		if pages[i-1].Path >= pages[i].Path {
			t.Errorf("pages not sorted: %q before %q", pages[i-1].Path, pages[i].Path)
		}
	}
	if r.TargetCount() != 0 {
		t.Errorf("TargetCount() = %d, want 0", r.TargetCount())
	}
}
