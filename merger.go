package gatewire

import (
	"reflect"
	"sort"
)

// Merger combines independently-configured rule sets (e.g. one block of
// Cache-Control overrides and one block of custom headers) that each apply
// to possibly-overlapping (host, path) regions, producing a single set of
// non-overlapping regions where every contributing rule's value is
// available together. It mirrors the region-partitioning algorithm in
// pandora-module-utils' merger.rs: entries are stored per host (plus a
// fallback bucket for host-less entries) as a sorted list of path
// "hinges" — paths at which the effective combination of rule values can
// change — together with the merged value of all rules active in the
// region starting at that hinge.
type Merger[V any] struct {
	hosts    map[string][]mergerEntry[V]
	fallback []mergerEntry[V]
	merge    func(existing, incoming V) V
}

type mergerEntry[V any] struct {
	path   Path
	exact  bool
	values []V
}

// NewMerger creates an empty merger. merge is stored on the merger but
// never called: Regions returns each region's values as an unfolded list,
// and callers combine them themselves. It may be nil.
func NewMerger[V any](merge func(existing, incoming V) V) *Merger[V] {
	return &Merger[V]{
		hosts:   make(map[string][]mergerEntry[V]),
		fallback: nil,
		merge:   merge,
	}
}

// Push adds a rule for matcher m with value. Host-specific rules that are
// pushed after fallback rules already exist automatically inherit those
// fallback rules (and vice versa: fallback rules pushed later propagate
// into every host bucket already created), matching merger.rs's
// ensure_host/ensure_entry propagation.
func (m *Merger[V]) Push(match Matcher, value V) {
	if match.Host == "" {
		m.fallback = m.pushEntry(m.fallback, match, value)
		for host, entries := range m.hosts {
			m.hosts[host] = m.pushEntry(entries, match, value)
		}
		return
	}

	entries, ok := m.hosts[match.Host]
	if !ok {
		// New host bucket inherits every fallback rule seen so far.
		entries = append([]mergerEntry[V](nil), m.fallback...)
	}
	m.hosts[match.Host] = m.pushEntry(entries, match, value)
}

func (m *Merger[V]) pushEntry(entries []mergerEntry[V], match Matcher, value V) []mergerEntry[V] {
	for i := range entries {
		if entries[i].path.String() == match.Path.String() && entries[i].exact == match.Exact() {
			entries[i].values = append(entries[i].values, value)
			return entries
		}
	}
	entries = append(entries, mergerEntry[V]{path: match.Path, exact: match.Exact(), values: []V{value}})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].path.String() < entries[j].path.String()
	})
	return entries
}

// Region is one partition of the merged rule space: the host and path at
// which it begins, whether it is an exact or prefix region, and the
// combined list of values contributed by every rule active over it.
type Region[V any] struct {
	Host   string
	Path   Path
	Exact  bool
	Values []V
}

// Regions flattens the merger into its final, sorted, deduplicated list of
// regions — redundant states (a prefix region whose combined value list is
// identical to its parent prefix region's) are dropped, matching
// merger.rs's redundant-state elimination.
func (m *Merger[V]) Regions() []Region[V] {
	var out []Region[V]
	for host, entries := range m.hosts {
		out = append(out, flattenEntries(host, entries)...)
	}
	out = append(out, flattenEntries("", m.fallback)...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

// flattenEntries walks entries (one host's or the fallback's hinges, sorted
// by path) and folds each hinge's own pushed values together with every
// enclosing prefix ancestor's values, nearest ancestor first — steps 1 and 3
// of merger.rs's partitioning: a new hinge inherits the rules of the nearest
// ancestor already present, and every matching rule along the path folds
// into the final value. A prefix hinge whose folded value is identical to
// its nearest surviving ancestor's contributes nothing new and is dropped
// (step 4, redundant-state elimination); it still stays on the ancestor
// stack so deeper hinges fold against it correctly.
func flattenEntries[V any](host string, entries []mergerEntry[V]) []Region[V] {
	sorted := make([]mergerEntry[V], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].path.String() < sorted[j].path.String()
	})

	type ancestor struct {
		path   Path
		folded []V
	}
	var stack []ancestor
	regions := make([]Region[V], 0, len(sorted))

	for _, e := range sorted {
		for len(stack) > 0 && !stack[len(stack)-1].path.IsPrefixOf(e.path) {
			stack = stack[:len(stack)-1]
		}

		folded := append([]V(nil), e.values...)
		for i := len(stack) - 1; i >= 0; i-- {
			folded = append(folded, stack[i].folded...)
		}

		if !e.exact {
			redundant := len(stack) > 0 && sameValues(folded, stack[len(stack)-1].folded)
			if !redundant {
				regions = append(regions, Region[V]{Host: host, Path: e.path, Exact: false, Values: folded})
			}
			stack = append(stack, ancestor{path: e.path, folded: folded})
			continue
		}

		regions = append(regions, Region[V]{Host: host, Path: e.path, Exact: true, Values: folded})
	}
	return regions
}

// sameValues reports whether two regions' folded value lists are
// equivalent. reflect.DeepEqual handles every V this package instantiates
// Merger with (plain strings for Cache-Control/CSP directives, the Rule
// struct for custom headers) without requiring V to satisfy comparable.
func sameValues[V any](a, b []V) bool {
	return reflect.DeepEqual(a, b)
}

// MergeInto chains this merger's regions into another merger built over a
// different (but related) rule category, the way merge_into_merger and
// Extend combine two independently-pushed rule sets (e.g. Cache-Control
// overrides and custom header overrides) into one pipeline stage. combine
// always receives W's zero value and this merger's values for a region;
// its result is pushed into dst as a new value, so a region reached from
// several sources carries one value per source rather than one combined
// value.
func MergeInto[V, W any](src *Merger[V], dst *Merger[W], combine func(W, []V) W) {
	for _, region := range src.Regions() {
		m := Matcher{Host: region.Host, Path: region.Path, Prefix: !region.Exact}
		var zero W
		dst.Push(m, combine(zero, region.Values))
	}
}
