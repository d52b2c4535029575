package gatewire

import "testing"

func TestMergerFallbackPropagatesToNewHost(t *testing.T) {
	m := NewMerger[string](nil)
	m.Push(ParseMatcher("*"), "fallback-value")
	m.Push(ParseMatcher("example.com/images/*"), "host-value")

	var found bool
	for _, region := range m.Regions() {
		if region.Host == "example.com" && region.Path.String() == "" {
			found = true
			if len(region.Values) != 1 || region.Values[0] != "fallback-value" {
				t.Errorf("expected inherited fallback value at example.com root, got %v", region.Values)
			}
		}
	}
	if !found {
		t.Fatal("expected a region for example.com root inherited from fallback")
	}
}

func TestMergerAccumulatesMultipleValuesAtSameRegion(t *testing.T) {
	m := NewMerger[string](nil)
	m.Push(ParseMatcher("example.com/static/*"), "no-cache")
	m.Push(ParseMatcher("example.com/static/*"), "public")

	for _, region := range m.Regions() {
		if region.Host == "example.com" && region.Path.String() == "static" {
			if len(region.Values) != 2 {
				t.Fatalf("expected 2 accumulated values, got %v", region.Values)
			}
			return
		}
	}
	t.Fatal("expected region for example.com/static")
}

func TestMergerDescendantInheritsAncestorPrefixValues(t *testing.T) {
	m := NewMerger[string](nil)
	m.Push(ParseMatcher("*"), "public")
	m.Push(ParseMatcher("example.com/subdir/*"), "no-cache")

	for _, region := range m.Regions() {
		if region.Host == "example.com" && region.Path.String() == "subdir" {
			if len(region.Values) != 2 || region.Values[0] != "no-cache" || region.Values[1] != "public" {
				t.Fatalf("expected [no-cache public] folded at example.com/subdir, got %v", region.Values)
			}
			return
		}
	}
	t.Fatal("expected a region for example.com/subdir")
}

func TestSameValuesComparesActualContent(t *testing.T) {
	if !sameValues([]string{"a", "b"}, []string{"a", "b"}) {
		t.Fatal("expected identical value lists to compare equal")
	}
	if sameValues([]string{"a", "b"}, []string{"a", "c"}) {
		t.Fatal("expected differing value lists to compare unequal")
	}
	if sameValues([]string{"a"}, []string{"a", "a"}) {
		t.Fatal("expected value lists of different length to compare unequal")
	}
}

func TestMergeIntoChainsTwoCategories(t *testing.T) {
	cacheControl := NewMerger[string](nil)
	cacheControl.Push(ParseMatcher("example.com/static/*"), "public")

	custom := NewMerger[string](nil)
	custom.Push(ParseMatcher("example.com/*"), "X-Frame-Options:DENY")

	type combined struct {
		cc  []string
		hdr []string
	}
	dst := NewMerger[combined](nil)
	MergeInto(cacheControl, dst, func(acc combined, values []string) combined {
		acc.cc = values
		return acc
	})
	MergeInto(custom, dst, func(acc combined, values []string) combined {
		acc.hdr = values
		return acc
	})

	var sawStatic bool
	for _, region := range dst.Regions() {
		if region.Host == "example.com" && region.Path.String() == "static" {
			sawStatic = true
		}
	}
	if !sawStatic {
		t.Fatal("expected a region for example.com/static after chaining")
	}
}
