package alerr

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"repos", "repo", 1},
		{"slug", "slgu", 1},
		{"nmae", "name", 1},
		{"ca", "abc", 3},
		{"éclair", "eclair", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := editDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := editDistance(tt.b, tt.a); got != tt.want {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestFindClosestMatch(t *testing.T) {
	members := []string{"id", "slug", "name", "description", "org", "org_id", "repos", "issues"}

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"slgu", "slug", true},
		{"nmae", "name", true},
		{"repo", "repos", true},
		{"Repos", "repos", true},
		{"descripton", "description", true},
		{"ix", "id", true},
		{"zz", "", false},
		{"xyzzyx", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := FindClosestMatch(tt.input, members)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("FindClosestMatch(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}

	if _, ok := FindClosestMatch("test", nil); ok {
		t.Error("expected no match without options")
	}
}

func TestSuggestSimilar(t *testing.T) {
	if got := SuggestSimilar("nmae", []string{"name", "slug"}); got != `did you mean "name"?` {
		t.Errorf("SuggestSimilar() = %q", got)
	}
	if got := SuggestSimilar("qqqqqq", []string{"name", "slug"}); got != "" {
		t.Errorf("SuggestSimilar() = %q, want empty", got)
	}
}
