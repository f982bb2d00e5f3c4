package corpus

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clean NFC-normalizes and trims names, then drops empties and duplicates.
// First occurrence order is kept.
func Clean(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(norm.NFC.String(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
