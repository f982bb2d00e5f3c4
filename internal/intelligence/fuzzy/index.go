// Package fuzzy implements an approximate string dictionary based on
// precomputed deletion variants.
//
// Every entry contributes all strings reachable by deleting up to
// MaxDistance runes from its first PrefixLength runes. A lookup generates
// the deletion variants of the query the same way, gathers the entries that
// share a variant and verifies each candidate with a bounded Levenshtein
// distance. Only that small candidate set is ever compared, so lookups stay
// cheap on corpora of tens of thousands of names.
//
// An Index is built with Add and is read-only afterwards; concurrent Lookup
// calls are safe once construction is finished.
package fuzzy

import (
	"unicode/utf8"
)

// DefaultPrefixLength is the number of leading runes used to generate
// deletion variants.
const DefaultPrefixLength = 7

// Match is the best dictionary entry found for a query.
type Match struct {
	// Term is the dictionary entry as it was added.
	Term string `json:"term"`
	// Distance is the Levenshtein distance between query and Term.
	Distance int `json:"distance"`
	// Position is the insertion order of Term, used to break ties.
	Position int `json:"position"`
}

// Index is a deletion-variant dictionary.
type Index struct {
	maxDistance  int
	prefixLength int

	entries   []string
	positions map[string]int
	variants  map[string][]int
}

// NewIndex creates an empty index able to answer lookups with a tolerance of
// up to maxDistance edits. A non-positive prefixLength selects
// DefaultPrefixLength.
func NewIndex(maxDistance, prefixLength int) *Index {
	if maxDistance < 0 {
		maxDistance = 0
	}
	if prefixLength <= 0 {
		prefixLength = DefaultPrefixLength
	}
	if prefixLength < maxDistance {
		prefixLength = maxDistance
	}
	return &Index{
		maxDistance:  maxDistance,
		prefixLength: prefixLength,
		positions:    make(map[string]int),
		variants:     make(map[string][]int),
	}
}

// MaxDistance returns the largest tolerance the index was built for.
func (x *Index) MaxDistance() int { return x.maxDistance }

// Add inserts name and reports whether it was new. Empty names and names
// already present are ignored.
func (x *Index) Add(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := x.positions[name]; ok {
		return false
	}
	pos := len(x.entries)
	x.entries = append(x.entries, name)
	x.positions[name] = pos

	for v := range deletes(firstRunes(name, x.prefixLength), x.maxDistance) {
		x.variants[v] = append(x.variants[v], pos)
	}
	return true
}

// AddAll inserts every name and returns how many were new.
func (x *Index) AddAll(names []string) int {
	n := 0
	for _, name := range names {
		if x.Add(name) {
			n++
		}
	}
	return n
}

// Contains reports whether name is an entry of the index.
func (x *Index) Contains(name string) bool {
	_, ok := x.positions[name]
	return ok
}

// Len returns the number of distinct entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns the entries in insertion order.
func (x *Index) Entries() []string {
	out := make([]string, len(x.entries))
	copy(out, x.entries)
	return out
}

// Lookup returns the entry closest to text within maxDistance edits. Ties on
// distance go to the entry inserted first. maxDistance is capped at the
// tolerance the index was built with.
func (x *Index) Lookup(text string, maxDistance int) (Match, bool) {
	if maxDistance < 0 || len(x.entries) == 0 {
		return Match{}, false
	}
	if maxDistance > x.maxDistance {
		maxDistance = x.maxDistance
	}
	if pos, ok := x.positions[text]; ok {
		return Match{Term: text, Distance: 0, Position: pos}, true
	}

	textLen := utf8.RuneCountInString(text)
	best := Match{Distance: -1, Position: -1}
	seen := make(map[int]struct{})

	for v := range deletes(firstRunes(text, x.prefixLength), maxDistance) {
		for _, pos := range x.variants[v] {
			if _, done := seen[pos]; done {
				continue
			}
			seen[pos] = struct{}{}

			term := x.entries[pos]
			if abs(utf8.RuneCountInString(term)-textLen) > maxDistance {
				continue
			}
			d := Distance(text, term, maxDistance)
			if d < 0 {
				continue
			}
			if best.Distance < 0 || d < best.Distance || (d == best.Distance && pos < best.Position) {
				best = Match{Term: term, Distance: d, Position: pos}
			}
		}
	}
	if best.Distance < 0 {
		return Match{}, false
	}
	return best, true
}

// deletes returns word together with every string obtained by removing up to
// maxDistance runes from it.
func deletes(word string, maxDistance int) map[string]struct{} {
	out := map[string]struct{}{word: {}}
	frontier := []string{word}
	for d := 0; d < maxDistance && len(frontier) > 0; d++ {
		var next []string
		for _, w := range frontier {
			rs := []rune(w)
			for i := range rs {
				v := string(rs[:i]) + string(rs[i+1:])
				if _, ok := out[v]; ok {
					continue
				}
				out[v] = struct{}{}
				next = append(next, v)
			}
		}
		frontier = next
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// LookupPrefix compares prefix against the same-length prefix of every entry
// and returns the closest one whose distance is strictly below threshold.
// Ties go to the entry inserted first. This is a linear scan; it serves the
// rare fragments whose tail was cut off.
func (x *Index) LookupPrefix(prefix string, threshold int) (Match, bool) {
	n := utf8.RuneCountInString(prefix)
	if n == 0 || threshold <= 0 {
		return Match{}, false
	}
	best := Match{Position: -1}
	limit := threshold
	for pos, term := range x.entries {
		d := PrefixDistance(prefix, term, n, limit-1)
		if d < 0 || d >= limit {
			continue
		}
		best = Match{Term: term, Distance: d, Position: pos}
		limit = d
		if d == 0 {
			break
		}
	}
	if best.Position < 0 {
		return Match{}, false
	}
	return best, true
}
