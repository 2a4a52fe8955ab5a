package diag

import (
	"slices"
	"strings"
)

// maxSuggestions caps the list returned by CloseMatches. A longer list is
// truncated and terminated with "...".
const maxSuggestions = 5

// CloseMatches returns the candidates a mistyped name most likely meant.
// Prefix matches win since shell completion tends to leave a word
// unfinished; otherwise candidates within an edit distance of 3 are used.
// The result is sorted.
func CloseMatches(name string, candidates []string) []string {
	name = strings.ToLower(name)

	var matches []string
	for _, c := range candidates {
		if name != "" && strings.HasPrefix(c, name) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		for _, c := range candidates {
			if levenshtein(name, c) <= 3 {
				matches = append(matches, c)
			}
		}
	}

	slices.Sort(matches)
	if len(matches) > maxSuggestions {
		matches = append(matches[:maxSuggestions-1:maxSuggestions-1], "...")
	}
	return matches
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}

	return previous[len(b)]
}
