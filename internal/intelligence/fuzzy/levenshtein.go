package fuzzy

import "unicode/utf8"

// Distance returns the unweighted Levenshtein distance between a and b,
// counted in runes. When max is non-negative the computation stops as soon as
// the distance is known to exceed max and -1 is returned.
func Distance(a, b string, max int) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	// Keep the shorter string in the columns.
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if max >= 0 && len(rb)-len(ra) > max {
		return -1
	}
	if len(ra) == 0 {
		return within(len(rb), max)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if rb[i-1] == ra[j-1] {
				cost = 0
			}
			v := prev[j-1] + cost
			if d := prev[j] + 1; d < v {
				v = d
			}
			if ins := curr[j-1] + 1; ins < v {
				v = ins
			}
			curr[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if max >= 0 && rowMin > max {
			return -1
		}
		prev, curr = curr, prev
	}
	return within(prev[len(ra)], max)
}

// PrefixDistance compares prefix against the first n runes of candidate,
// with the same max semantics as Distance. Candidates shorter than n are
// compared whole.
func PrefixDistance(prefix, candidate string, n, max int) int {
	return Distance(prefix, firstRunes(candidate, n), max)
}

func within(d, max int) int {
	if max >= 0 && d > max {
		return -1
	}
	return d
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
