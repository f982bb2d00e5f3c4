package fuzzy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		max  int
		want int
	}{
		{"", "", -1, 0},
		{"Forest", "Forest", -1, 0},
		{"Forest", "Forrest", -1, 1},
		{"kitten", "sitting", -1, 3},
		{"", "abc", -1, 3},
		{"abc", "", 2, -1},
		{"kitten", "sitting", 2, -1},
		{"kitten", "sitting", 3, 3},
		{"Lightnng Bolt", "Lightning Bolt", 6, 1},
		{"Æther Vial", "Aether Vial", -1, 2},
		{"flaw", "lawn", -1, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s/%d", tt.a, tt.b, tt.max), func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b, tt.max))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a, tt.max), "distance must be symmetric")
		})
	}
}

func TestPrefixDistance(t *testing.T) {
	assert.Equal(t, 0, PrefixDistance("Black L", "Black Lotus", 7, -1))
	assert.Equal(t, 1, PrefixDistance("Black L", "Black Knight", 7, -1))
	assert.Equal(t, 2, PrefixDistance("Black L", "Black", 7, -1))
	assert.Equal(t, -1, PrefixDistance("Black L", "Black", 7, 1))
	assert.Equal(t, 0, PrefixDistance("", "anything", 0, 0))
}

func TestIndex_LookupPrefix(t *testing.T) {
	idx := NewIndex(6, 7)
	idx.AddAll([]string{"Black Knight", "Black Lotus", "Blacker Lotus", "Island"})

	m, ok := idx.LookupPrefix("Black L", 3)
	require.True(t, ok)
	assert.Equal(t, "Black Lotus", m.Term)
	assert.Equal(t, 0, m.Distance)

	// "Black K" and "Black L" both sit at distance one from "Black M";
	// the first inserted wins.
	m, ok = idx.LookupPrefix("Black M", 3)
	require.True(t, ok)
	assert.Equal(t, "Black Knight", m.Term)
	assert.Equal(t, 1, m.Distance)

	// The threshold is exclusive.
	_, ok = idx.LookupPrefix("Black M", 1)
	assert.False(t, ok)

	_, ok = idx.LookupPrefix("", 3)
	assert.False(t, ok)
}

func TestIndex_AddIgnoresEmptyAndDuplicates(t *testing.T) {
	idx := NewIndex(3, 7)

	assert.True(t, idx.Add("Island"))
	assert.False(t, idx.Add("Island"))
	assert.False(t, idx.Add(""))
	assert.True(t, idx.Add("Forest"))

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"Island", "Forest"}, idx.Entries())
	assert.True(t, idx.Contains("Island"))
	assert.False(t, idx.Contains("island"))
}

func TestIndex_DuplicateInsertDoesNotChangeLookup(t *testing.T) {
	once := NewIndex(6, 7)
	twice := NewIndex(6, 7)
	names := []string{"Forest", "Island", "Lightning Bolt"}
	once.AddAll(names)
	twice.AddAll(append(names, names...))

	for _, q := range []string{"Forrest", "Islnd", "Lightnng Bolt", "Swamp"} {
		m1, ok1 := once.Lookup(q, 3)
		m2, ok2 := twice.Lookup(q, 3)
		assert.Equal(t, ok1, ok2, q)
		assert.Equal(t, m1, m2, q)
	}
}

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex(6, 7)
	idx.AddAll([]string{"Island", "Lightning Bolt", "Forest", "Black Lotus", "Lightning Helix"})

	tests := []struct {
		name     string
		query    string
		max      int
		wantTerm string
		wantDist int
		wantOK   bool
	}{
		{"exact", "Island", 0, "Island", 0, true},
		{"one substitution", "Islanb", 1, "Island", 1, true},
		{"one insertion", "Forrest", 3, "Forest", 1, true},
		{"deletion inside prefix", "Lightnng Bolt", 6, "Lightning Bolt", 1, true},
		{"edit after prefix", "Lightning Boltt", 6, "Lightning Bolt", 1, true},
		{"edit at start", "xBlack Lotus", 6, "Black Lotus", 1, true},
		{"too far", "Islxxx", 2, "", 0, false},
		{"zero tolerance misses", "Islanb", 0, "", 0, false},
		{"negative tolerance", "Island", -1, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := idx.Lookup(tt.query, tt.max)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantTerm, m.Term)
				assert.Equal(t, tt.wantDist, m.Distance)
			}
		})
	}
}

func TestIndex_TiesGoToFirstInserted(t *testing.T) {
	idx := NewIndex(3, 7)
	idx.AddAll([]string{"Cart", "Card", "Care"})

	m, ok := idx.Lookup("Carx", 1)
	require.True(t, ok)
	assert.Equal(t, "Cart", m.Term)
	assert.Equal(t, 0, m.Position)

	reversed := NewIndex(3, 7)
	reversed.AddAll([]string{"Care", "Card", "Cart"})
	m, ok = reversed.Lookup("Carx", 1)
	require.True(t, ok)
	assert.Equal(t, "Care", m.Term)
}

func TestIndex_PrefersLowerDistanceOverOrder(t *testing.T) {
	idx := NewIndex(3, 7)
	idx.AddAll([]string{"Plainz", "Plains"})

	m, ok := idx.Lookup("Plains", 2)
	require.True(t, ok)
	assert.Equal(t, "Plains", m.Term)
	assert.Equal(t, 0, m.Distance)

	m, ok = idx.Lookup("Plainss", 2)
	require.True(t, ok)
	assert.Equal(t, "Plains", m.Term)
	assert.Equal(t, 1, m.Distance)
}

func TestIndex_ToleranceCappedAtBuildDistance(t *testing.T) {
	idx := NewIndex(1, 7)
	idx.Add("Forest")

	_, ok := idx.Lookup("Frst", 6)
	assert.False(t, ok, "two edits exceed the index tolerance of one")
	assert.Equal(t, 1, idx.MaxDistance())
}

func TestIndex_AgreesWithExhaustiveScan(t *testing.T) {
	names := []string{
		"Ancestral Recall", "Time Walk", "Timetwister", "Mox Pearl", "Mox Sapphire",
		"Mox Jet", "Mox Ruby", "Mox Emerald", "Sol Ring", "Black Lotus", "Brainstorm",
		"Force of Will", "Mana Drain", "Demonic Tutor", "Vampiric Tutor", "Mystical Tutor",
	}
	idx := NewIndex(6, 7)
	idx.AddAll(names)

	queries := []string{
		"Mox Perl", "Tme Walk", "Timetwistr", "Sol Rng", "Force o Will", "Demonc Tutr",
		"Vampiric Tutro", "Brainstrom", "Mana Drian", "Ancestral Recal", "Mox Jett", "Zzzz",
	}
	for _, q := range queries {
		for max := 0; max <= 4; max++ {
			want, wantOK := exhaustive(names, q, max)
			got, ok := idx.Lookup(q, max)
			require.Equal(t, wantOK, ok, "%q max=%d", q, max)
			if ok {
				assert.Equal(t, want, got, "%q max=%d", q, max)
			}
		}
	}
}

func exhaustive(names []string, q string, max int) (Match, bool) {
	best := Match{Distance: -1}
	for i, n := range names {
		d := Distance(q, n, max)
		if d < 0 {
			continue
		}
		if best.Distance < 0 || d < best.Distance {
			best = Match{Term: n, Distance: d, Position: i}
		}
	}
	return best, best.Distance >= 0
}

func BenchmarkIndex_Lookup(b *testing.B) {
	idx := NewIndex(6, 7)
	for i := 0; i < 5000; i++ {
		idx.Add(fmt.Sprintf("Card Name %05d", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Lookup("Crd Name 02500", 6)
	}
}
