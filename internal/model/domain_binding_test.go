package model

import "testing"

func TestDomainBindingMatches(t *testing.T) {
	cases := []struct {
		pattern string
		host    string
		want    bool
	}{
		{"meute6a.app", "meute6a.app", true},
		{"meute6a.app", "www.meute6a.app", false},
		{"*.scouthub.org", "meute.scouthub.org", true},
		{"*.scouthub.org", "scouthub.org", false},
		{"*.scouthub.org", "a.b.scouthub.org", false}, // wildcard matches one label only
		{"*.meute.scouthub.org", "web.meute.scouthub.org", true},
		{"*.scouthub.org", "meute.scouthub.net", false},
	}
	for _, tc := range cases {
		b := DomainBinding{Pattern: tc.pattern}
		if got := b.Matches(tc.host); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.pattern, tc.host, got, tc.want)
		}
	}
}

func TestDomainBindingIsWildcard(t *testing.T) {
	if (&DomainBinding{Pattern: "meute6a.app"}).IsWildcard() {
		t.Fatalf("exact pattern reported as wildcard")
	}
	if !(&DomainBinding{Pattern: "*.scouthub.org"}).IsWildcard() {
		t.Fatalf("wildcard pattern not detected")
	}
}
