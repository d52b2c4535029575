package static

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nullgate/gatewire"
)

// Options configures a Handler.
type Options struct {
	// Root is the directory files are served from.
	Root string
	// IndexFiles lists candidate directory index filenames, tried in
	// order (e.g. "index.html").
	IndexFiles []string
	// Precompressed lists encodings this handler may serve precompressed
	// siblings for (e.g. "gz" looks for "<path>.gz" when the client
	// accepts gzip), matching the original conf.precompressed list.
	Precompressed []string
	// CanonicalizeURI redirects requests whose path doesn't exactly match
	// the canonical on-disk path (collapsed "..", trailing slash on
	// directories) with 308.
	CanonicalizeURI bool
	// Page404 is a root-relative path served (with a 404 status) instead
	// of a bare empty body when no file is found.
	Page404 string
	// DeclareCharset, when non-empty, is appended as a "; charset=" Content-Type
	// parameter for responses whose Content-Type matches one of
	// DeclareCharsetTypes (or, if that list is empty, any "text/" type).
	DeclareCharset string
	// DeclareCharsetTypes lists the Content-Type values (or "type/" prefixes
	// ending in '/') DeclareCharset applies to.
	DeclareCharsetTypes []string
}

// Handler is the request_filter Stage serving static files. It always
// handles the request (ResponseSent), matching the original's note that
// StaticFilesHandler::handle never returns false.
type Handler struct {
	gatewire.BaseStage
	opts Options
	root string
}

// New builds a Handler, canonicalizing opts.Root the way the original
// constructor does so later checks reject outside-root paths reliably.
func New(opts Options) (*Handler, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	return &Handler{opts: opts, root: root}, nil
}

// resolve maps a request path onto a filesystem path beneath h.root,
// rejecting traversal outside of it. It also returns the canonical,
// "/"-rooted form of the request path (".." and "." segments collapsed),
// which may differ from the path the client actually sent.
func (h *Handler) resolve(urlPath string) (full, clean string, err error) {
	clean = path.Clean("/" + urlPath)
	full = filepath.Join(h.root, filepath.FromSlash(clean))
	rel, relErr := filepath.Rel(h.root, full)
	if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", os.ErrInvalid
	}
	return full, clean, nil
}

func (h *Handler) RequestFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	req := sess.Request()
	w := sess.Writer()

	fullPath, cleanPath, err := h.resolve(req.URL.Path)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	info, err := os.Stat(fullPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		h.serveNotFound(w, sess)
		return gatewire.ResponseSent, nil
	case errors.Is(err, os.ErrPermission):
		w.WriteHeader(http.StatusForbidden)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	// The canonical URI is the cleaned ("..", "." collapsed) request path,
	// with a trailing slash added for directories; redirect whenever the
	// client's actual request path differs from it.
	canonical := cleanPath
	if info.IsDir() && !strings.HasSuffix(canonical, "/") {
		canonical += "/"
	}
	if h.opts.CanonicalizeURI && canonical != req.URL.Path {
		h.redirect(sess, canonical)
		return gatewire.ResponseSent, nil
	}

	if info.IsDir() {
		found := false
		for _, name := range h.opts.IndexFiles {
			candidate := filepath.Join(fullPath, name)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				fullPath, info, found = candidate, fi, true
				break
			}
		}
		if !found {
			h.serveNotFound(w, sess)
			return gatewire.ResponseSent, nil
		}
	}

	if !info.Mode().IsRegular() {
		w.WriteHeader(http.StatusForbidden)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	servePath, servedEncoding, ok := h.selectPrecompressed(req.Header.Get("Accept-Encoding"), fullPath)
	if ok {
		if fi, err := os.Stat(servePath); err == nil {
			fullPath, info = servePath, fi
		} else {
			servedEncoding = ""
		}
	}

	meta := FromFileInfo(info)

	if meta.HasFailedPrecondition(req.Header) {
		meta.ApplyCommonHeaders(w.Header())
		w.WriteHeader(http.StatusPreconditionFailed)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}
	if meta.IsNotModified(req.Header) {
		meta.ApplyCommonHeaders(w.Header())
		w.WriteHeader(http.StatusNotModified)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	rng := ExtractRange(req.Header, meta.ETag, meta.Modified, meta.Size)
	meta.ApplyCommonHeaders(w.Header())
	if servedEncoding != "" {
		w.Header().Set("Content-Encoding", servedEncoding)
		w.Header().Add("Vary", "Accept-Encoding")
	}
	if ct := mime.TypeByExtension(filepath.Ext(fullPath)); ct != "" {
		w.Header().Set("Content-Type", h.declareCharset(ct))
	}

	if rng.OutOfBounds {
		w.Header().Set("Content-Range", contentRangeUnsatisfied(meta.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		sess.MarkResponded()
		return gatewire.ResponseSent, nil
	}

	start, end := int64(0), meta.Size-1
	status := http.StatusOK
	if rng.Valid {
		start, end = rng.Start, rng.End
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", contentRange(start, end, meta.Size))
	}
	w.Header().Set("Content-Length", itoa(end-start+1))
	w.WriteHeader(status)
	sess.MarkResponded()

	if req.Method == http.MethodGet {
		if err := writeFileRange(w, fullPath, start, end); err != nil {
			sess.Logger().Error("static: failed writing response body", "path", fullPath, "error", err)
		}
	}

	return gatewire.ResponseSent, nil
}

func (h *Handler) redirect(sess *gatewire.Session, to string) {
	if q := sess.Request().URL.RawQuery; q != "" {
		to += "?" + q
	}
	sess.Writer().Header().Set("Location", to)
	sess.Writer().WriteHeader(http.StatusPermanentRedirect)
	sess.MarkResponded()
}

// serveNotFound writes a 404 response, serving opts.Page404's contents in
// the body when configured instead of an empty one.
func (h *Handler) serveNotFound(w http.ResponseWriter, sess *gatewire.Session) {
	if h.opts.Page404 == "" {
		w.WriteHeader(http.StatusNotFound)
		sess.MarkResponded()
		return
	}

	pagePath := filepath.Join(h.root, filepath.FromSlash(path.Clean("/"+h.opts.Page404)))
	f, err := os.Open(pagePath)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		sess.MarkResponded()
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(filepath.Ext(pagePath)); ct != "" {
		w.Header().Set("Content-Type", h.declareCharset(ct))
	}
	w.WriteHeader(http.StatusNotFound)
	sess.MarkResponded()
	io.Copy(w, f)
}

// declareCharset appends opts.DeclareCharset to ct as a charset parameter
// when ct matches one of opts.DeclareCharsetTypes (or, if that list is
// empty, any "text/" content type) and ct doesn't already declare one.
func (h *Handler) declareCharset(ct string) string {
	if h.opts.DeclareCharset == "" || strings.Contains(ct, "charset=") {
		return ct
	}

	mediaType := ct
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		mediaType = ct[:idx]
	}
	mediaType = strings.TrimSpace(mediaType)

	matches := len(h.opts.DeclareCharsetTypes) == 0 && strings.HasPrefix(mediaType, "text/")
	for _, want := range h.opts.DeclareCharsetTypes {
		if strings.HasSuffix(want, "/") {
			if strings.HasPrefix(mediaType, want) {
				matches = true
				break
			}
			continue
		}
		if mediaType == want {
			matches = true
			break
		}
	}
	if !matches {
		return ct
	}
	return ct + "; charset=" + h.opts.DeclareCharset
}

// selectPrecompressed finds a precompressed sibling of fullPath (e.g.
// fullPath+".gz") the client accepts, ranked by Accept-Encoding quality,
// the way the original compression.rs rewrites the served path before
// metadata is read. It returns the sibling path, the Content-Encoding
// value to advertise, and whether one was selected.
func (h *Handler) selectPrecompressed(acceptEncoding, fullPath string) (string, string, bool) {
	if len(h.opts.Precompressed) == 0 || acceptEncoding == "" {
		return "", "", false
	}

	type candidate struct {
		ext, encoding string
		q             float64
		order         int
	}
	known := map[string]string{"gz": "gzip", "br": "br", "zst": "zstd"}

	accepted := make(map[string]float64)
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, q := part, 1.0
		if idx := strings.IndexByte(part, ';'); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			for _, param := range strings.Split(part[idx+1:], ";") {
				param = strings.TrimSpace(param)
				if v, ok := strings.CutPrefix(param, "q="); ok {
					if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
						q = parsed
					}
				}
			}
		}
		accepted[name] = q
	}
	star, hasStar := accepted["*"]

	var candidates []candidate
	for i, ext := range h.opts.Precompressed {
		enc, ok := known[ext]
		if !ok {
			continue
		}
		q, explicit := accepted[enc]
		if !explicit {
			if !hasStar {
				continue
			}
			q = star
		}
		if q <= 0 {
			continue
		}
		if _, err := os.Stat(fullPath + "." + ext); err == nil {
			candidates = append(candidates, candidate{ext: ext, encoding: enc, q: q, order: i})
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].q != candidates[j].q {
			return candidates[i].q > candidates[j].q
		}
		return candidates[i].order < candidates[j].order
	})
	best := candidates[0]
	return fullPath + "." + best.ext, best.encoding, true
}

func writeFileRange(w io.Writer, path string, start, end int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return err
	}
	_, err = io.CopyN(w, f, end-start+1)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func contentRange(start, end, size int64) string {
	return "bytes " + itoa(start) + "-" + itoa(end) + "/" + itoa(size)
}

func contentRangeUnsatisfied(size int64) string {
	return "bytes */" + itoa(size)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
