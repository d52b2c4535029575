package gatewire

import "strings"

// Router resolves a (host, path) request pair to the configured value for
// the most specific matching rule. It holds one trie per known host plus a
// fallback trie for rules that apply regardless of host, and always tries
// the host-specific trie first before falling back, the way router.rs's
// two-trie Router does.
type Router[V any] struct {
	hosts    map[string]*trie[V]
	fallback *trie[V]
}

// NewRouter creates an empty router.
func NewRouter[V any]() *Router[V] {
	return &Router[V]{
		hosts:    make(map[string]*trie[V]),
		fallback: newTrie[V](),
	}
}

// RouterBuilder accumulates rules before producing an immutable Router. A
// non-nil merge function combines values on repeated inserts at the same
// (host, path, kind); when nil, the later insert wins.
type RouterBuilder[V any] struct {
	router *Router[V]
	merge  func(existing, incoming V) V
}

// NewRouterBuilder creates a builder. merge may be nil.
func NewRouterBuilder[V any](merge func(existing, incoming V) V) *RouterBuilder[V] {
	return &RouterBuilder[V]{router: NewRouter[V](), merge: merge}
}

// Insert adds a rule for m with the given value.
func (b *RouterBuilder[V]) Insert(m Matcher, value V) {
	t := b.router.fallback
	if m.Host != "" {
		existing, ok := b.router.hosts[m.Host]
		if !ok {
			existing = newTrie[V]()
			b.router.hosts[m.Host] = existing
		}
		t = existing
	}

	segments := splitSegments(m.Path.String())
	if b.merge != nil {
		existing := t.lookupExactAt(segments, !m.Prefix)
		if existing.has {
			value = b.merge(existing.value, value)
		}
	}
	t.insert(segments, !m.Prefix, value)
}

// Build finalizes the router.
func (b *RouterBuilder[V]) Build() *Router[V] {
	return b.router
}

// exactAtResult reports whether segments has an already-recorded value of
// the requested kind at the exact node (not via descent), used by
// RouterBuilder.Insert to find a prior value to merge with.
type exactAtResult[V any] struct {
	has   bool
	value V
}

func (t *trie[V]) lookupExactAt(segments []string, exact bool) exactAtResult[V] {
	node := t.root
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			return exactAtResult[V]{}
		}
		node = child
	}
	if exact {
		if node.hasExact {
			return exactAtResult[V]{has: true, value: node.exact}
		}
		return exactAtResult[V]{}
	}
	if node.hasPrefix {
		return exactAtResult[V]{has: true, value: node.prefix}
	}
	return exactAtResult[V]{}
}

// Lookup resolves the best rule for (host, path): it tries the
// host-specific trie first, and only consults the fallback trie when the
// host trie produced neither an exact nor a prefix match (host rules
// always take precedence over fallback rules when both exist).
func (r *Router[V]) Lookup(host, path string) RouteMatch[V] {
	p := NewPath(path)
	segments := splitSegments(p.String())

	if host != "" {
		if t, ok := r.hosts[host]; ok {
			if res, ok := resolveLookup(t, segments, p); ok {
				return res
			}
		}
	}

	if res, ok := resolveLookup(r.fallback, segments, p); ok {
		return res
	}
	return RouteMatch[V]{}
}

// RouteMatch is the result of looking up a (host, path) pair in a Router: the
// looked-up value plus whether it was an exact or prefix match. Remainder
// is "/" for exact matches and the whole looked-up path for prefix
// matches; it does not hold the part beyond the matched mount point.
type RouteMatch[V any] struct {
	Found     bool
	Value     V
	Exact     bool
	Remainder string
}

func resolveLookup[V any](t *trie[V], segments []string, p Path) (RouteMatch[V], bool) {
	res := t.lookup(segments)
	if res.HasExact {
		return RouteMatch[V]{Found: true, Value: res.Exact, Exact: true, Remainder: "/"}, true
	}
	if res.HasPrefix {
		return RouteMatch[V]{Found: true, Value: res.Prefix, Exact: false, Remainder: remainderAfterPrefixMatch(segments, p)}, true
	}
	return RouteMatch[V]{}, false
}

// remainderAfterPrefixMatch is a placeholder that returns the full path;
// callers that need the exact unmatched suffix should use
// Matcher.Path.RemovePrefixFrom directly against the matched rule's own
// path, since the trie itself does not track which depth produced the
// prefix hit.
func remainderAfterPrefixMatch(segments []string, p Path) string {
	return "/" + strings.Join(segments, "/")
}
