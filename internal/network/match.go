package network

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultMatches are the activation patterns used when none are configured.
var DefaultMatches = []string{"http://*", "https://*"}

// Rules decides which page URLs the automatic scan runs on.
type Rules struct {
	patterns []string
	globs    []glob.Glob
}

// CompileRules compiles glob patterns such as "https://*.example.com/*".
// An empty list falls back to DefaultMatches.
func CompileRules(patterns []string) (*Rules, error) {
	if len(patterns) == 0 {
		patterns = DefaultMatches
	}

	r := &Rules{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, p)
		r.globs = append(r.globs, g)
	}

	if len(r.globs) == 0 {
		return nil, fmt.Errorf("no usable match patterns in %v", patterns)
	}

	return r, nil
}

// Allows reports whether the page at rawURL should be scanned.
func (r *Rules) Allows(rawURL string) bool {
	candidate := strings.TrimSpace(rawURL)
	if candidate == "" {
		return false
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Scheme == "" {
		return false
	}

	for _, g := range r.globs {
		if g.Match(candidate) {
			return true
		}
	}
	return false
}

// Patterns returns the compiled patterns.
func (r *Rules) Patterns() []string {
	return append([]string(nil), r.patterns...)
}
