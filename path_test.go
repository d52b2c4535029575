package gatewire

import "testing"

func TestNewPathNormalizes(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"/":            "",
		"//":           "",
		"a/b":          "a/b",
		"/a/b/":        "a/b",
		"/a//b":        "a/b",
		"a///b///c///": "a/b/c",
	}
	for in, want := range cases {
		if got := NewPath(in).String(); got != want {
			t.Errorf("NewPath(%q).String() = %q, want %q", in, got, want)
		}
	}
}

func TestPathIsPrefixOf(t *testing.T) {
	cases := []struct {
		prefix, other string
		want          bool
	}{
		{"", "a/b", true},
		{"a", "a/b", true},
		{"a/b", "a/b", true},
		{"a/b", "a/bc", false},
		{"a/bc", "a/b", false},
		{"a/b", "a/b/c", true},
		{"x", "a/b", false},
	}
	for _, c := range cases {
		got := NewPath(c.prefix).IsPrefixOf(NewPath(c.other))
		if got != c.want {
			t.Errorf("IsPrefixOf(%q, %q) = %v, want %v", c.prefix, c.other, got, c.want)
		}
	}
}

func TestRemovePrefixFrom(t *testing.T) {
	cases := []struct {
		prefix, path string
		wantRest     string
		wantOK       bool
	}{
		{"images", "/images/cat.png", "/cat.png", true},
		{"images", "/images", "/", true},
		{"images", "/images/", "/", true},
		{"images", "/imagesbogus", "", false},
		{"images/sub", "/images/sub/deep", "/deep", true},
		{"", "/anything", "", false},
	}
	for _, c := range cases {
		rest, ok := NewPath(c.prefix).RemovePrefixFrom(c.path)
		if ok != c.wantOK || rest != c.wantRest {
			t.Errorf("RemovePrefixFrom(%q, %q) = (%q, %v), want (%q, %v)",
				c.prefix, c.path, rest, ok, c.wantRest, c.wantOK)
		}
	}
}
