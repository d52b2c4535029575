package rewrite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nullgate/gatewire"
)

func newSession(method, path string) *gatewire.Session {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return gatewire.NewSession(rec, req, nil)
}

func TestRewriteInternalSubstitution(t *testing.T) {
	rw, err := New([]Rule{{Match: `^/old/(.+)$`, Replace: "/new/$1"}})
	if err != nil {
		t.Fatal(err)
	}

	sess := newSession(http.MethodGet, "/old/page")
	res, err := rw.RequestFilter(context.Background(), sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != gatewire.Unhandled {
		t.Errorf("expected Unhandled (internal rewrite continues pipeline), got %v", res)
	}
	if sess.Request().URL.Path != "/new/page" {
		t.Errorf("path = %q, want /new/page", sess.Request().URL.Path)
	}
	if !sess.WasRewritten() {
		t.Error("expected WasRewritten to be true")
	}
}

func TestRewriteRedirect(t *testing.T) {
	rw, err := New([]Rule{{Match: `^/old$`, Replace: "/new", Redirect: http.StatusMovedPermanently}})
	if err != nil {
		t.Fatal(err)
	}

	sess := newSession(http.MethodGet, "/old")
	res, err := rw.RequestFilter(context.Background(), sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != gatewire.ResponseSent {
		t.Errorf("expected ResponseSent for a redirect rule, got %v", res)
	}
}

func TestRewriteNoMatchPassesThrough(t *testing.T) {
	rw, err := New([]Rule{{Match: `^/old$`, Replace: "/new"}})
	if err != nil {
		t.Fatal(err)
	}

	sess := newSession(http.MethodGet, "/unrelated")
	res, err := rw.RequestFilter(context.Background(), sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != gatewire.Unhandled {
		t.Errorf("expected Unhandled, got %v", res)
	}
	if sess.WasRewritten() {
		t.Error("expected no rewrite to have happened")
	}
}
