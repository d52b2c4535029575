package static

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Metadata captures the bits of os.FileInfo the handler needs repeatedly:
// size, modification time formatted as an HTTP date, and a strong ETag
// derived from mtime+size the way the original metadata.rs builds one
// without hashing file contents.
type Metadata struct {
	Size         int64
	ModifiedTime time.Time
	Modified     string // RFC 1123 HTTP date
	ETag         string
}

// FromFileInfo builds Metadata from fi.
func FromFileInfo(fi os.FileInfo) Metadata {
	mt := fi.ModTime()
	return Metadata{
		Size:         fi.Size(),
		ModifiedTime: mt,
		Modified:     mt.UTC().Format(http.TimeFormat),
		ETag:         fmt.Sprintf("%q", fmt.Sprintf("%x-%x", mt.Unix(), fi.Size())),
	}
}

// HasFailedPrecondition reports whether If-Match or If-Unmodified-Since
// rules out serving the resource (the caller should respond 412).
func (m Metadata) HasFailedPrecondition(h http.Header) bool {
	if v := h.Get("If-Match"); v != "" && v != "*" && v != m.ETag {
		return true
	}
	if v := h.Get("If-Unmodified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil && m.ModifiedTime.After(t) {
			return true
		}
	}
	return false
}

// IsNotModified reports whether If-None-Match or If-Modified-Since mean
// the client's cached copy is current (the caller should respond 304).
func (m Metadata) IsNotModified(h http.Header) bool {
	if v := h.Get("If-None-Match"); v != "" {
		return v == "*" || v == m.ETag
	}
	if v := h.Get("If-Modified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return !m.ModifiedTime.After(t)
		}
	}
	return false
}

// ApplyCommonHeaders sets ETag and Last-Modified on every response this
// handler produces, matching the original handler writing them on every
// branch (200, 206, 304, 412, 416).
func (m Metadata) ApplyCommonHeaders(h http.Header) {
	h.Set("ETag", m.ETag)
	h.Set("Last-Modified", m.Modified)
	h.Set("Accept-Ranges", "bytes")
}
