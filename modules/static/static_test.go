package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nullgate/gatewire"
)

func newTestHandler(t *testing.T, opts Options) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	opts.Root = dir
	h, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, dir
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	sess := gatewire.NewSession(rec, req, nil)
	h.RequestFilter(context.Background(), sess, nil)
	return rec
}

func TestCanonicalizeURIRedirectsDotDot(t *testing.T) {
	h, dir := newTestHandler(t, Options{CanonicalizeURI: true})
	writeFile(t, dir, "hello.txt", "hi")

	rec := serve(h, http.MethodGet, "/sub/../hello.txt")
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("expected 308, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/hello.txt" {
		t.Fatalf("expected Location /hello.txt, got %q", loc)
	}
}

func TestCanonicalizeURILeavesCleanPathAlone(t *testing.T) {
	h, dir := newTestHandler(t, Options{CanonicalizeURI: true})
	writeFile(t, dir, "hello.txt", "hi")

	rec := serve(h, http.MethodGet, "/hello.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSelectPrecompressedPrefersHigherQuality(t *testing.T) {
	h, dir := newTestHandler(t, Options{Precompressed: []string{"gz", "br"}})
	writeFile(t, dir, "a.txt", "plain")
	writeFile(t, dir, "a.txt.gz", "gzipped")
	writeFile(t, dir, "a.txt.br", "brotli")

	servePath, enc, ok := h.selectPrecompressed("gzip;q=0.3, br;q=0.9", filepath.Join(dir, "a.txt"))
	if !ok || enc != "br" || servePath != filepath.Join(dir, "a.txt.br") {
		t.Fatalf("expected br selected, got %q %q %v", servePath, enc, ok)
	}
}

func TestSelectPrecompressedWildcardExpandsConfiguredOrder(t *testing.T) {
	h, dir := newTestHandler(t, Options{Precompressed: []string{"br", "gz"}})
	writeFile(t, dir, "a.txt", "plain")
	writeFile(t, dir, "a.txt.gz", "gzipped")
	writeFile(t, dir, "a.txt.br", "brotli")

	_, enc, ok := h.selectPrecompressed("*", filepath.Join(dir, "a.txt"))
	if !ok || enc != "br" {
		t.Fatalf("expected wildcard to pick br (first configured), got %q %v", enc, ok)
	}
}

func TestSelectPrecompressedNoAcceptableEncoding(t *testing.T) {
	h, dir := newTestHandler(t, Options{Precompressed: []string{"gz"}})
	writeFile(t, dir, "a.txt", "plain")
	writeFile(t, dir, "a.txt.gz", "gzipped")

	_, _, ok := h.selectPrecompressed("br;q=1.0", filepath.Join(dir, "a.txt"))
	if ok {
		t.Fatal("expected no precompressed sibling selected")
	}
}

func TestServeNotFoundUsesPage404(t *testing.T) {
	h, dir := newTestHandler(t, Options{Page404: "/404.html"})
	writeFile(t, dir, "404.html", "<h1>missing</h1>")

	rec := serve(h, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != "<h1>missing</h1>" {
		t.Fatalf("expected custom 404 body, got %q", rec.Body.String())
	}
}

func TestDeclareCharsetAppendsForConfiguredTypes(t *testing.T) {
	h, dir := newTestHandler(t, Options{DeclareCharset: "utf-8", DeclareCharsetTypes: []string{"text/"}})
	writeFile(t, dir, "a.txt", "plain")

	rec := serve(h, http.MethodGet, "/a.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ct := rec.Header().Get("Content-Type")
	if ct == "" || !contains(ct, "charset=utf-8") {
		t.Fatalf("expected charset declared, got %q", ct)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
