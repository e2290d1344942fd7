package network

import "testing"

func TestRulesAllows(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		url      string
		want     bool
	}{
		{
			name: "default https",
			url:  "https://example.com/login",
			want: true,
		},
		{
			name: "default http",
			url:  "http://example.com/",
			want: true,
		},
		{
			name: "browser internal page",
			url:  "chrome://newtab/",
			want: false,
		},
		{
			name: "blank page",
			url:  "about:blank",
			want: false,
		},
		{
			name: "empty url",
			url:  "   ",
			want: false,
		},
		{
			name:     "custom host pattern",
			patterns: []string{"https://*.example.com/*"},
			url:      "https://login.example.com/auth",
			want:     true,
		},
		{
			name:     "custom host pattern miss",
			patterns: []string{"https://*.example.com/*"},
			url:      "https://example.org/auth",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := CompileRules(tt.patterns)
			if err != nil {
				t.Fatalf("CompileRules returned error: %v", err)
			}

			if got := rules.Allows(tt.url); got != tt.want {
				t.Fatalf("Allows(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestCompileRulesErrors(t *testing.T) {
	if _, err := CompileRules([]string{"https://[unterminated"}); err == nil {
		t.Fatalf("expected invalid pattern error")
	}

	if _, err := CompileRules([]string{" ", ""}); err == nil {
		t.Fatalf("expected error when every pattern is blank")
	}
}

func TestRulesDefaultPatterns(t *testing.T) {
	rules, err := CompileRules(nil)
	if err != nil {
		t.Fatalf("CompileRules returned error: %v", err)
	}

	got := rules.Patterns()
	if len(got) != len(DefaultMatches) {
		t.Fatalf("expected %d default patterns, got %v", len(DefaultMatches), got)
	}
}
