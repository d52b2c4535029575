package gatewire

import (
	"log/slog"
	"net"
	"net/http"
)

type extKey string

// Session wraps the request/response pair flowing through a Pipeline,
// adding the mutable bits every Stage needs to share: extension storage
// for cross-stage data (auth identity, matched route, compression
// decision, ...), the original request URI (preserved across internal
// rewrites), and a per-request logger.
type Session struct {
	req    *http.Request
	writer http.ResponseWriter
	logger *slog.Logger

	originalURI string
	rewritten   bool
	responded   bool
	statusCode  int

	ext map[extKey]any
}

// NewSession builds a Session for an incoming request. logger may be nil,
// in which case slog.Default() is used.
func NewSession(w http.ResponseWriter, r *http.Request, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		req:         r,
		writer:      w,
		logger:      logger,
		originalURI: r.URL.RequestURI(),
		ext:         make(map[extKey]any),
	}
}

// Request returns the current (possibly rewritten) request.
func (s *Session) Request() *http.Request { return s.req }

// Writer returns the response writer.
func (s *Session) Writer() http.ResponseWriter { return s.writer }

// Logger returns the session's logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// OriginalURI returns the request-URI as it was before any internal
// rewrite, unaffected by calls to SetURI.
func (s *Session) OriginalURI() string { return s.originalURI }

// SetURI rewrites the effective request URI for downstream stages (used
// by modules/rewrite). Only the first call updates originalURI's "this
// was rewritten" bookkeeping; originalURI itself never changes.
func (s *Session) SetURI(path, rawQuery string) {
	s.rewritten = true
	s.req.URL.Path = path
	s.req.URL.RawQuery = rawQuery
}

// WasRewritten reports whether SetURI has been called for this request.
func (s *Session) WasRewritten() bool { return s.rewritten }

// Host returns the effective virtual host for routing: the Host header
// takes precedence over the request URL's authority, preserved for
// compatibility with how most reverse-proxy deployments see the header.
func (s *Session) Host() string {
	if h := s.req.Host; h != "" {
		if host, _, err := net.SplitHostPort(h); err == nil {
			return host
		}
		return h
	}
	return s.req.URL.Hostname()
}

// Responded reports whether a response has already been sent.
func (s *Session) Responded() bool { return s.responded }

// MarkResponded records that a response has been written, so later stages
// and the default error handler don't write a second one.
func (s *Session) MarkResponded() { s.responded = true }

// StatusCode returns the status code recorded via SetStatusCode, or 0 if
// none was recorded yet (used by modules/commonlog before the real
// http.ResponseWriter status is known at logging time).
func (s *Session) StatusCode() int { return s.statusCode }

// SetStatusCode records the status code a Stage is about to write, so
// later stages (logging) can read it without wrapping the ResponseWriter.
func (s *Session) SetStatusCode(code int) { s.statusCode = code }

// Extension retrieves a value previously stored under key.
func (s *Session) Extension(key string) (any, bool) {
	v, ok := s.ext[extKey(key)]
	return v, ok
}

// SetExtension stores a value under key for later stages to retrieve.
func (s *Session) SetExtension(key string, value any) {
	s.ext[extKey(key)] = value
}
