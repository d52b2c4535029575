package headers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/nullgate/gatewire"
)

func applyTo(t *testing.T, inj *Injector, host, urlPath string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", urlPath, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	sess := gatewire.NewSession(rec, req, nil)
	if _, err := inj.ResponseFilter(context.Background(), sess, nil); err != nil {
		t.Fatalf("ResponseFilter: %v", err)
	}
	return rec
}

func TestCacheControlDescendantInheritsAncestorDirective(t *testing.T) {
	inj := New([]Rule{
		{Match: "/*", CacheControl: []string{"public"}},
		{Match: "example.com/subdir/*", CacheControl: []string{"no-cache"}},
	})

	rec := applyTo(t, inj, "example.com", "/subdir/x.txt")
	got := rec.Header().Get("Cache-Control")
	if got != "no-cache, public" {
		t.Fatalf("expected %q, got %q", "no-cache, public", got)
	}
}

func TestCustomHeaderDescendantOverridesAncestor(t *testing.T) {
	inj := New([]Rule{
		{Match: "/*", Set: map[string]string{"X-Frame-Options": "DENY"}},
		{Match: "example.com/api/*", Set: map[string]string{"X-Frame-Options": "SAMEORIGIN"}},
	})

	rec := applyTo(t, inj, "example.com", "/api/widgets")
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Fatalf("expected descendant rule to win, got %q", got)
	}

	rec = applyTo(t, inj, "example.com", "/other")
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected ancestor rule outside /api, got %q", got)
	}
}
