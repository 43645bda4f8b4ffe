package arasaka

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// defaultMatchCutoff is the minimum similarity for a fuzzy username match.
const defaultMatchCutoff = 0.6

// similarity returns the Ratcliff/Obershelp ratio of a and b, compared
// character by character.
func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

type scoredMatch struct {
	candidate string
	score     float64
}

// closeMatches returns up to n candidates scoring at least cutoff against
// word, best first. Equal scores are ordered by candidate, descending.
// Comparison ignores case.
func closeMatches(word string, candidates []string, n int, cutoff float64) []string {
	if n <= 0 {
		return nil
	}
	word = strings.ToLower(word)
	var scored []scoredMatch
	for _, c := range candidates {
		if c == "" {
			continue
		}
		s := similarity(strings.ToLower(c), word)
		if s >= cutoff {
			scored = append(scored, scoredMatch{candidate: c, score: s})
		}
	}
	sort.Slice(
		scored, func(i, j int) bool {
			if scored[i].score != scored[j].score {
				return scored[i].score > scored[j].score
			}
			return scored[i].candidate > scored[j].candidate
		},
	)
	if len(scored) > n {
		scored = scored[:n]
	}
	matches := make([]string, 0, len(scored))
	for _, m := range scored {
		matches = append(matches, m.candidate)
	}
	return matches
}
