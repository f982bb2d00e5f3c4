package scan

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/deckscan/pkg/errors"
)

// PileEntry is one line of a pile.
type PileEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Pile maps entity names to positive counts and remembers the order in which
// names were first added.
type Pile struct {
	counts map[string]int
	order  []string
}

// NewPile returns an empty pile.
func NewPile() *Pile {
	return &Pile{counts: make(map[string]int)}
}

// Add merges n copies of name into the pile. Non-positive counts never create
// an entry.
func (p *Pile) Add(name string, n int) {
	if n <= 0 {
		return
	}
	if p.counts == nil {
		p.counts = make(map[string]int)
	}
	if _, ok := p.counts[name]; !ok {
		p.order = append(p.order, name)
	}
	p.counts[name] += n
}

// Count returns the number of copies of name.
func (p *Pile) Count(name string) int {
	if p == nil {
		return 0
	}
	return p.counts[name]
}

// Total returns the sum of all counts.
func (p *Pile) Total() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, n := range p.counts {
		total += n
	}
	return total
}

// Len returns the number of distinct names.
func (p *Pile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// Names returns the names in first-insertion order.
func (p *Pile) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Entries returns the pile as a list in first-insertion order.
func (p *Pile) Entries() []PileEntry {
	if p == nil {
		return nil
	}
	out := make([]PileEntry, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, PileEntry{Name: name, Count: p.counts[name]})
	}
	return out
}

// String renders one "<count> <name>" line per entry.
func (p *Pile) String() string {
	var sb strings.Builder
	for _, e := range p.Entries() {
		fmt.Fprintf(&sb, "%d %s\n", e.Count, e.Name)
	}
	return sb.String()
}

// MarshalJSON encodes the pile as an ordered list of entries.
func (p *Pile) MarshalJSON() ([]byte, error) {
	entries := p.Entries()
	if entries == nil {
		entries = []PileEntry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes a list of entries.
func (p *Pile) UnmarshalJSON(data []byte) error {
	var entries []PileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*p = Pile{counts: make(map[string]int)}
	for _, e := range entries {
		p.Add(e.Name, e.Count)
	}
	return nil
}

// Deck is the result of a scan: the primary list and the overflow list.
type Deck struct {
	Main      *Pile `json:"main"`
	Sideboard *Pile `json:"sideboard"`
}

// NewDeck returns a deck with two empty piles.
func NewDeck() *Deck {
	return &Deck{Main: NewPile(), Sideboard: NewPile()}
}

// String renders the main list, a blank line, then the sideboard.
func (d *Deck) String() string {
	return d.Main.String() + "\n" + d.Sideboard.String()
}

// Total returns the number of cards across both piles.
func (d *Deck) Total() int {
	return d.Main.Total() + d.Sideboard.Total()
}

// Diff counts the copies that differ between two decks, pile by pile.
func (d *Deck) Diff(other *Deck) int {
	return pileDiff(d.Main, other.Main) + pileDiff(d.Sideboard, other.Sideboard)
}

func pileDiff(a, b *Pile) int {
	names := make(map[string]struct{})
	for _, n := range a.Names() {
		names[n] = struct{}{}
	}
	for _, n := range b.Names() {
		names[n] = struct{}{}
	}
	diff := 0
	for n := range names {
		d := a.Count(n) - b.Count(n)
		if d < 0 {
			d = -d
		}
		diff += d
	}
	return diff
}

// ParseDeck reads the text format produced by Deck.String. A blank line (or a
// "Sideboard" header) after the first main entry switches to the sideboard.
func ParseDeck(r io.Reader) (*Deck, error) {
	deck := NewDeck()
	current := deck.Main
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.EqualFold(line, "sideboard") || strings.EqualFold(line, "sideboard:") {
			if deck.Main.Len() > 0 {
				current = deck.Sideboard
			}
			continue
		}
		count, name, ok := strings.Cut(line, " ")
		n, err := strconv.Atoi(count)
		if !ok || err != nil || n <= 0 || strings.TrimSpace(name) == "" {
			return nil, errors.New(errors.ErrCodeDeckParseFailed, "malformed deck line").
				WithDetail(fmt.Sprintf("line %d: %q", lineNo, line))
		}
		current.Add(strings.TrimSpace(name), n)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDeckParseFailed, "failed to read deck list")
	}
	return deck, nil
}

// SortedNames returns the names of a pile sorted alphabetically.
func SortedNames(p *Pile) []string {
	names := p.Names()
	sort.Strings(names)
	return names
}
