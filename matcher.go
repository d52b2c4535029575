package gatewire

import "strings"

// Matcher is a parsed host/path rule as written in configuration, e.g.
// "example.com/images/*" (prefix match under a host), "example.com/robots.txt"
// (exact match), "/images/*" (prefix match, any host) or "*" (catch-all).
// The grammar mirrors pandora-module-utils' HostPathMatcher::from parsing:
// anything before the first '/' is the host pattern (empty means
// "any host"); a trailing "/*" marks a prefix match, otherwise the match is
// exact.
type Matcher struct {
	Host   string // "" means any host (fallback)
	Path   Path
	Prefix bool // true: matches Path and everything nested below it
}

// ParseMatcher parses s using the grammar above.
func ParseMatcher(s string) Matcher {
	if s == "*" {
		return Matcher{Prefix: true}
	}

	host := ""
	rest := s
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		host = s[:idx]
		rest = s[idx:]
	} else {
		// No slash at all: treat the whole string as a host with an implicit
		// catch-all path, e.g. "example.com" means "example.com/*".
		host = s
		rest = "/*"
	}

	prefix := false
	if strings.HasSuffix(rest, "/*") {
		prefix = true
		rest = strings.TrimSuffix(rest, "*")
	}

	return Matcher{Host: host, Path: NewPath(rest), Prefix: prefix}
}

// String renders the matcher back into its configuration grammar.
func (m Matcher) String() string {
	var b strings.Builder
	b.WriteString(m.Host)
	b.WriteByte('/')
	b.WriteString(m.Path.String())
	if m.Prefix {
		if !m.Path.IsEmpty() {
			b.WriteByte('/')
		}
		b.WriteByte('*')
	}
	return b.String()
}

// Exact reports whether m denotes an exact (non-prefix) match, the
// opposite of its Prefix flag.
func (m Matcher) Exact() bool { return !m.Prefix }
