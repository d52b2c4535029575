// Package static serves files from a local directory: conditional
// requests, single byte-range requests, precompressed variant selection
// and directory index fallback, ported from the original static-files
// module's range.rs/handler.rs/metadata.rs algorithms.
package static

import (
	"net/http"
	"strconv"
	"strings"
)

// RangeResult is the outcome of parsing a Range header against a known
// file size.
type RangeResult struct {
	// Valid is true if Start/End describe an in-bounds byte range.
	Valid bool
	// OutOfBounds is true if a Range header was present and well-formed
	// but outside the file's bounds (callers should respond 416).
	OutOfBounds bool
	Start, End  int64
}

// ParseRange parses the value of a Range header (e.g. "bytes=0-499",
// "bytes=500-", "bytes=-10") against fileSize. It returns a zero
// RangeResult (Valid=false, OutOfBounds=false) if the header is missing,
// uses an unsupported unit, specifies more than one range, or otherwise
// fails to parse — all of which mean "serve the whole file", exactly
// matching the original module's treatment of unparseable ranges.
func ParseRange(header string, fileSize int64) RangeResult {
	if header == "" {
		return RangeResult{}
	}

	units, spec, ok := strings.Cut(header, "=")
	if !ok || units != "bytes" {
		return RangeResult{}
	}
	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, ",") {
		// Multiple ranges are unsupported; treat like no Range header.
		return RangeResult{}
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok {
		return RangeResult{}
	}
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)

	var s, e int64
	switch {
	case start == "":
		length, err := strconv.ParseInt(end, 10, 64)
		if err != nil {
			return RangeResult{}
		}
		if length > fileSize {
			return RangeResult{OutOfBounds: true}
		}
		s, e = fileSize-length, fileSize-1
	case end == "":
		v, err := strconv.ParseInt(start, 10, 64)
		if err != nil {
			return RangeResult{}
		}
		s, e = v, fileSize-1
	default:
		sv, err1 := strconv.ParseInt(start, 10, 64)
		ev, err2 := strconv.ParseInt(end, 10, 64)
		if err1 != nil || err2 != nil {
			return RangeResult{}
		}
		s, e = sv, ev
	}

	if e >= fileSize || s > e {
		return RangeResult{OutOfBounds: true}
	}
	return RangeResult{Valid: true, Start: s, End: e}
}

// ExtractRange applies the If-Range precondition before parsing Range: if
// If-Range is present and matches neither the current ETag nor
// Last-Modified value, the Range header is ignored entirely (the whole
// file is served), matching the original extract_range's semantics.
func ExtractRange(h http.Header, etag, lastModified string, fileSize int64) RangeResult {
	if ifRange := h.Get("If-Range"); ifRange != "" {
		if ifRange != etag && ifRange != lastModified {
			return RangeResult{}
		}
	}
	return ParseRange(h.Get("Range"), fileSize)
}
