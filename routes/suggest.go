package routes

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultLimit     = 3
	DefaultThreshold = 0.5
)

// Ratio returns the longest-matching-blocks similarity of a and b in [0, 1],
// compared character by character.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(chars(a), chars(b))
	return m.Ratio()
}

// Suggest returns up to limit candidates whose similarity to requested is at
// least threshold, best first. Ties keep candidate order.
func Suggest(requested string, candidates []string, limit int, threshold float64) []string {
	if limit <= 0 {
		return nil
	}

	type scored struct {
		path  string
		score float64
	}
	var hits []scored
	for _, c := range candidates {
		if s := Ratio(requested, c); s >= threshold {
			hits = append(hits, scored{c, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.path
	}
	return out
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
