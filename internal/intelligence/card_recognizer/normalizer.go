package card_recognizer

import (
	"strings"
	"unicode/utf8"
)

// Normalize drops every character that cannot appear in a card name (ASCII
// letters, apostrophe, comma, period and space are kept) and trims trailing
// spaces.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if allowed(c) {
			sb.WriteByte(c)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// Non-ASCII runes are multi-byte and never pass this check, so walking bytes
// is enough.
func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '\'', c == ',', c == '.', c == ' ':
		return true
	}
	return false
}

// stripPeriods removes periods left over from truncation marks before a
// whole-string lookup.
func stripPeriods(text string) string {
	return strings.TrimRight(strings.ReplaceAll(text, ".", ""), " ")
}

// marker is a parsed quantity marker such as "x4" or "4x".
type marker struct {
	count     int
	heuristic MarkerHeuristic
}

// parseMarker recognizes two-rune quantity markers on raw OCR text. The
// normalizer would erase the digit, so markers are read before it runs.
func parseMarker(raw string) (marker, bool) {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) != 2 {
		return marker{}, false
	}
	rs := []rune(text)
	switch {
	case isTimes(rs[0]) && isDigit(rs[1]):
		return marker{count: int(rs[1] - '0'), heuristic: HeuristicDirectional}, true
	case isDigit(rs[0]) && isTimes(rs[1]):
		return marker{count: int(rs[0] - '0'), heuristic: HeuristicNearest}, true
	}
	return marker{}, false
}

func isTimes(r rune) bool { return r == '×' || r == 'x' || r == 'X' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
