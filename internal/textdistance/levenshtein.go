// Package textdistance measures how far apart two strings are.
package textdistance

// Levenshtein returns the minimum number of single rune insertions, deletions
// and substitutions needed to turn a into b. The comparison is case-sensitive
// and performs no normalization.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	source, target := []rune(a), []rune(b)

	// Keep the rows as short as the shorter input.
	if len(target) > len(source) {
		source, target = target, source
	}

	if len(target) == 0 {
		return len(source)
	}

	prev := make([]int, len(target)+1)
	cur := make([]int, len(target)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(source); i++ {
		cur[0] = i

		for j := 1; j <= len(target); j++ {
			cost := 1
			if source[i-1] == target[j-1] {
				cost = 0
			}

			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}

		prev, cur = cur, prev
	}

	return prev[len(target)]
}
