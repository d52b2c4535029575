package gatewire

import "testing"

func TestRouterHostThenFallback(t *testing.T) {
	b := NewRouterBuilder[string](nil)
	b.Insert(ParseMatcher("*"), "fallback-root")
	b.Insert(ParseMatcher("example.com/*"), "example-root")
	b.Insert(ParseMatcher("example.com/images/*"), "example-images")
	r := b.Build()

	cases := []struct {
		host, path string
		want       string
	}{
		{"example.com", "/images/cat.png", "example-images"},
		{"example.com", "/about", "example-root"},
		{"other.com", "/anything", "fallback-root"},
	}
	for _, c := range cases {
		res := r.Lookup(c.host, c.path)
		if !res.Found || res.Value != c.want {
			t.Errorf("Lookup(%q, %q) = (%v, found=%v), want %q", c.host, c.path, res.Value, res.Found, c.want)
		}
	}
}

func TestRouterExactBeatsPrefix(t *testing.T) {
	b := NewRouterBuilder[string](nil)
	b.Insert(ParseMatcher("example.com/robots.txt"), "robots-exact")
	b.Insert(ParseMatcher("example.com/*"), "root-prefix")
	r := b.Build()

	res := r.Lookup("example.com", "/robots.txt")
	if !res.Found || !res.Exact || res.Value != "robots-exact" {
		t.Errorf("expected exact match robots-exact, got %+v", res)
	}
}

func TestParseMatcherGrammar(t *testing.T) {
	cases := []struct {
		in         string
		host, path string
		prefix     bool
	}{
		{"*", "", "", true},
		{"example.com/robots.txt", "example.com", "robots.txt", false},
		{"example.com/images/*", "example.com", "images", true},
		{"/images/*", "", "images", true},
		{"example.com", "example.com", "", true},
	}
	for _, c := range cases {
		m := ParseMatcher(c.in)
		if m.Host != c.host || m.Path.String() != c.path || m.Prefix != c.prefix {
			t.Errorf("ParseMatcher(%q) = %+v, want host=%q path=%q prefix=%v",
				c.in, m, c.host, c.path, c.prefix)
		}
	}
}
