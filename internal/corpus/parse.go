package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/turtacn/deckscan/pkg/errors"
)

// Corpus file formats.
const (
	FormatAuto     = "auto"
	FormatLines    = "lines"
	FormatAtomic   = "mtgjson-atomic"
	FormatKeywords = "mtgjson-keywords"
)

// EnglishLanguage selects the card's own name in an atomic file; any other
// language selects matching foreignData entries.
const EnglishLanguage = "English"

// ParseLines reads one name per line. Blank lines and lines starting with '#'
// are skipped and a trailing "$<count>" frequency suffix is dropped.
func ParseLines(data []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, count, ok := cutLast(line, "$"); ok && isDigits(count) {
			line = strings.TrimSpace(name)
		}
		if line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusParseFailed, "failed to read name list")
	}
	return names, nil
}

type atomicFile struct {
	Data map[string][]struct {
		ForeignData []struct {
			Language string `json:"language"`
			Name     string `json:"name"`
		} `json:"foreignData"`
	} `json:"data"`
}

// ParseAtomic reads an mtgjson AtomicCards/VintageAtomic document. Names of
// split and double-faced cards are cut at " //".
func ParseAtomic(data []byte, languages []string) ([]string, error) {
	var doc atomicFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusParseFailed, "invalid mtgjson atomic document")
	}
	if doc.Data == nil {
		return nil, errors.New(errors.ErrCodeCorpusParseFailed, "mtgjson atomic document has no data object")
	}

	wanted := make(map[string]bool, len(languages))
	for _, l := range languages {
		wanted[l] = true
	}

	keys := make([]string, 0, len(doc.Data))
	for k := range doc.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var names []string
	for _, key := range keys {
		if wanted[EnglishLanguage] {
			names = append(names, cutFace(key))
		}
		faces := doc.Data[key]
		if len(faces) == 0 {
			continue
		}
		for _, fd := range faces[0].ForeignData {
			if wanted[fd.Language] && fd.Name != "" {
				names = append(names, cutFace(fd.Name))
			}
		}
	}
	return names, nil
}

// ParseKeywords flattens the lists of an mtgjson Keywords document.
func ParseKeywords(data []byte) ([]string, error) {
	var doc struct {
		Data map[string][]string `json:"data"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusParseFailed, "invalid mtgjson keywords document")
	}
	if doc.Data == nil {
		return nil, errors.New(errors.ErrCodeCorpusParseFailed, "mtgjson keywords document has no data object")
	}

	groups := make([]string, 0, len(doc.Data))
	for g := range doc.Data {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var names []string
	for _, g := range groups {
		names = append(names, doc.Data[g]...)
	}
	return names, nil
}

// Parse decodes data in format. FormatAuto picks the JSON format matching
// kind when the document starts with '{' and plain lines otherwise.
func Parse(data []byte, format string, kind Kind, languages []string) ([]string, error) {
	if format == "" || format == FormatAuto {
		format = FormatLines
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatAtomic
			if kind == KindKeywords {
				format = FormatKeywords
			}
		}
	}

	switch format {
	case FormatLines:
		return ParseLines(data)
	case FormatAtomic:
		return ParseAtomic(data, languages)
	case FormatKeywords:
		return ParseKeywords(data)
	}
	return nil, errors.New(errors.ErrCodeCorpusUnsupported, "unknown corpus format").WithDetail(format)
}

func cutFace(name string) string {
	if i := strings.Index(name, " //"); i != -1 {
		return name[:i]
	}
	return name
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
