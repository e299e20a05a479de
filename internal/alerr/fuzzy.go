package alerr

import (
	"fmt"
	"strings"
)

// editDistance is the optimal string alignment distance between a and b:
// insertions, deletions, substitutions and adjacent transpositions each cost
// one. "slgu" is one edit away from "slug".
func editDistance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	// Three rolling rows: two back for transpositions.
	prev2 := make([]int, len(t)+1)
	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && s[i-1] == t[j-2] && s[i-2] == t[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1)
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[len(t)]
}

// FindClosestMatch returns the option nearest to input, ignoring case. The
// allowed distance is 3, or half the input length for short names so that
// "id" does not match every two-letter member. Ties go to the earlier option.
func FindClosestMatch(input string, options []string) (string, bool) {
	limit := min(3, max(len([]rune(input))/2, 1))
	lower := strings.ToLower(input)

	best, bestDist := "", limit+1
	for _, opt := range options {
		if d := editDistance(lower, strings.ToLower(opt)); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best, bestDist <= limit
}

// SuggestSimilar returns `did you mean "X"?` for the closest option, or ""
// when nothing is close. The result is meant for WithHelp, which ignores "".
func SuggestSimilar(input string, options []string) string {
	if match, ok := FindClosestMatch(input, options); ok {
		return fmt.Sprintf("did you mean %q?", match)
	}
	return ""
}
