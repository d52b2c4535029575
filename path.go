package gatewire

import "strings"

// separator is the byte used to delimit path segments.
const separator = '/'

// Path is a normalized, slash-segmented router path. The zero value is the
// root path ("").
type Path struct {
	path string
}

// NewPath normalizes p: leading/trailing slashes are stripped and internal
// runs of slashes are collapsed to one.
func NewPath(p string) Path {
	return Path{path: normalizePath(p)}
}

func normalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	hadSeparator := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == separator {
			if hadSeparator {
				continue
			}
			hadSeparator = true
			b.WriteByte(c)
			continue
		}
		hadSeparator = false
		b.WriteByte(c)
	}
	out := b.String()
	out = strings.TrimSuffix(out, "/")
	return out
}

// String returns the normalized path string (no leading/trailing slash).
func (p Path) String() string { return p.path }

// IsEmpty reports whether this is the root path.
func (p Path) IsEmpty() bool { return p.path == "" }

// IsPrefixOf reports whether p is a segment-boundary prefix of other.
func (p Path) IsPrefixOf(other Path) bool {
	return commonPrefixLength(p.path, other.path) == len(p.path)
}

// RemovePrefixFrom removes p as a full-segment prefix from the wire-form
// path (which may still contain an arbitrary number of slashes). It returns
// the suffix ("/" if nothing remains) and true on success, or ("", false)
// if p is empty or is not a prefix of path.
func (p Path) RemovePrefixFrom(path string) (string, bool) {
	if p.path == "" {
		return "", false
	}

	remaining := path
	segments := strings.Split(p.path, "/")
	for _, segment := range segments {
		for len(remaining) > 0 && remaining[0] == separator {
			remaining = remaining[1:]
		}
		if !strings.HasPrefix(remaining, segment) {
			return "", false
		}
		rest := remaining[len(segment):]
		if len(rest) > 0 && rest[0] != separator {
			return "", false
		}
		remaining = rest
	}

	if remaining == "" {
		return "/", true
	}
	return remaining, true
}

// commonPrefixLength returns the length of the longest prefix shared by a
// and b that ends at a segment boundary in both (end of string or at a
// separator).
func commonPrefixLength(a, b string) int {
	length := 0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return length
		}
		if a[i] == separator {
			length = i
		}
	}

	switch {
	case len(a) == len(b):
		length = len(a)
	case len(a) < len(b) && b[len(a)] == separator:
		length = len(a)
	case len(a) > len(b) && a[len(b)] == separator:
		length = len(b)
	}
	return length
}

// splitSegments splits a normalized path into its non-empty segments.
func splitSegments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
