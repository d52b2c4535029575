// Package rewrite implements URL rewriting: each rule matches the request
// path against a regular expression and either substitutes capture groups
// into a replacement path (an internal rewrite, pipeline continues) or
// responds immediately with an HTTP redirect to the substituted location,
// following the match-then-interpolate-then-(redirect|continue) shape of
// the original rewrite-module's handler.
package rewrite

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nullgate/gatewire"
)

// Rule is one rewrite or redirect rule.
type Rule struct {
	// Match is a regular expression tested against the request path
	// (without query string). Capture groups are available to Replace as
	// $1, $2, ... via regexp.ReplaceAll semantics.
	Match string
	// Replace is the substitution template for the new path.
	Replace string
	// Redirect, if non-zero, makes this rule issue an HTTP redirect with
	// this status code instead of rewriting internally (e.g. 301, 302,
	// 308).
	Redirect int

	re *regexp.Regexp
}

// Rewriter is the request_filter Stage applying the first matching rule.
type Rewriter struct {
	gatewire.BaseStage
	rules []Rule
}

// New compiles rules in order; the first rule whose Match matches the
// request path wins.
func New(rules []Rule) (*Rewriter, error) {
	compiled := make([]Rule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return nil, fmt.Errorf("rewrite: invalid pattern %q: %w", r.Match, err)
		}
		r.re = re
		compiled[i] = r
	}
	return &Rewriter{rules: compiled}, nil
}

func (rw *Rewriter) RequestFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	path := sess.Request().URL.Path

	for _, r := range rw.rules {
		loc := r.re.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}
		dst := string(r.re.ExpandString(nil, r.Replace, path, loc))

		if r.Redirect != 0 {
			sess.Writer().Header().Set("Location", dst)
			sess.Writer().WriteHeader(r.Redirect)
			sess.MarkResponded()
			return gatewire.ResponseSent, nil
		}

		query := sess.Request().URL.RawQuery
		if i := indexByte(dst, '?'); i >= 0 {
			query = dst[i+1:]
			dst = dst[:i]
		}
		sess.SetURI(dst, query)
		return gatewire.Unhandled, nil
	}

	return gatewire.Unhandled, nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
