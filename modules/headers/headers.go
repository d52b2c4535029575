// Package headers implements the response headers injector: configured
// Cache-Control and Content-Security-Policy directives merge at the
// per-directive level rather than replacing the whole header, and
// arbitrary custom headers can be added or removed per matched
// (host, path) region. Three gatewire.Merger instances (Cache-Control,
// Content-Security-Policy and custom headers) are built independently and
// their regions are inserted into one gatewire.Router, the way pandora's
// headers-module combines Cache-Control and custom-header configuration
// blocks that may each target different, overlapping regions of the site.
package headers

import (
	"context"
	"sort"
	"strings"

	"github.com/nullgate/gatewire"
)

// Rule configures one headers block: which (host, path) region it
// applies to, directives to merge into Cache-Control / CSP, and headers
// to set or remove outright.
type Rule struct {
	Match           string // gatewire.Matcher grammar, e.g. "example.com/static/*"
	CacheControl    []string
	ContentSecurity []string
	Set             map[string]string
	Remove          []string
}

// Injector is the Stage that applies merged header rules in the response
// filter phase.
type Injector struct {
	gatewire.BaseStage

	router *gatewire.Router[mergedRegion]
}

type mergedRegion struct {
	cacheControl []string
	csp          []string
	set          map[string]string
	remove       []string
}

// New builds an Injector from configured rules.
func New(rules []Rule) *Injector {
	ccMerger := gatewire.NewMerger[string](nil)
	cspMerger := gatewire.NewMerger[string](nil)
	customMerger := gatewire.NewMerger[Rule](nil)

	for _, r := range rules {
		m := gatewire.ParseMatcher(r.Match)
		for _, d := range r.CacheControl {
			ccMerger.Push(m, d)
		}
		for _, d := range r.ContentSecurity {
			cspMerger.Push(m, d)
		}
		customMerger.Push(m, r)
	}

	combined := gatewire.NewRouterBuilder[mergedRegion](mergeRegions)

	for _, region := range ccMerger.Regions() {
		combined.Insert(matcherFromRegion(region), mergedRegion{cacheControl: dedupe(region.Values)})
	}
	for _, region := range cspMerger.Regions() {
		combined.Insert(matcherFromRegion(region), mergedRegion{csp: dedupe(region.Values)})
	}
	for _, region := range customMerger.Regions() {
		set := make(map[string]string)
		var remove []string
		// region.Values folds the most specific (this hinge's own) rule
		// first, followed by enclosing ancestors nearest-first; apply
		// ancestors before the hinge's own rule so a descendant's Set
		// always wins over an inherited ancestor's for the same header.
		for i := len(region.Values) - 1; i >= 0; i-- {
			rule := region.Values[i]
			for k, v := range rule.Set {
				set[k] = v
			}
			remove = append(remove, rule.Remove...)
		}
		combined.Insert(matcherFromRegion(region), mergedRegion{set: set, remove: remove})
	}

	return &Injector{router: combined.Build()}
}

func matcherFromRegion[V any](r gatewire.Region[V]) gatewire.Matcher {
	return gatewire.Matcher{Host: r.Host, Path: r.Path, Prefix: !r.Exact}
}

func mergeRegions(existing, incoming mergedRegion) mergedRegion {
	out := existing
	out.cacheControl = append(append([]string(nil), existing.cacheControl...), incoming.cacheControl...)
	out.csp = append(append([]string(nil), existing.csp...), incoming.csp...)
	if out.set == nil {
		out.set = make(map[string]string)
	}
	for k, v := range incoming.set {
		out.set[k] = v
	}
	out.remove = append(append([]string(nil), existing.remove...), incoming.remove...)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (h *Injector) ResponseFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	res := h.router.Lookup(sess.Host(), sess.Request().URL.Path)
	if !res.Found {
		return gatewire.Unhandled, nil
	}

	hdr := sess.Writer().Header()
	if len(res.Value.cacheControl) > 0 {
		hdr.Set("Cache-Control", strings.Join(res.Value.cacheControl, ", "))
	}
	if len(res.Value.csp) > 0 {
		hdr.Set("Content-Security-Policy", strings.Join(res.Value.csp, "; "))
	}
	for k, v := range res.Value.set {
		hdr.Set(k, v)
	}
	for _, k := range res.Value.remove {
		hdr.Del(k)
	}
	return gatewire.Unhandled, nil
}
