package extract

import "sort"

// Dedupe merges candidate lists into a set keyed by exact URL and returns it
// sorted, so an unchanged page always yields the same order. Empty strings
// are dropped.
func Dedupe(sources ...[]string) []string {
	seen := make(map[string]struct{})
	for _, source := range sources {
		for _, u := range source {
			if u == "" {
				continue
			}
			seen[u] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
