package names

import "github.com/agnivade/levenshtein"

// Jaccard is |A∩B| / |A∪B|, and 0 when either set is empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if large.Contains(t) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// EditRatio is 1 - levenshtein/maxLen over the sorted, space-joined tokens.
// It is a diagnostic for near misses Jaccard cannot see ("oak" vs "oaks").
func EditRatio(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sa, sb := a.String(), b.String()
	longest := max(len([]rune(sa)), len([]rune(sb)))
	d := levenshtein.ComputeDistance(sa, sb)
	return 1 - float64(d)/float64(longest)
}
