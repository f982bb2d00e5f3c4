package card_recognizer

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

func TestNewRecognizer_EmptyCorpus(t *testing.T) {
	for _, entities := range [][]string{nil, {}, {"", ""}} {
		r, err := NewRecognizer(entities, []string{"Land"}, nil, DefaultConfig(), nil)
		require.Error(t, err)
		assert.Nil(t, r)
		assert.True(t, errors.IsConfigurationError(err))
	}
}

func TestNewRecognizer_ExtraNamesAreMerged(t *testing.T) {
	r, err := NewRecognizer(nil, nil, []string{"Giver of Runes", "Mother of Runes"}, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entities: 2, Keywords: 0}, r.Stats())

	res := r.Resolve("Giver of Rune")
	assert.Equal(t, "Giver of Runes", res.Entity)
}

func TestNewRecognizer_DuplicatesTolerated(t *testing.T) {
	r, err := NewRecognizer([]string{"Island", "Island", ""}, []string{"Land", "Land"}, []string{"Island"}, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entities: 1, Keywords: 1}, r.Stats())
}

func TestNewRecognizer_InvalidConfig(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.EntityRatio = 0 },
		func(c *Config) { c.EntityRatio = 1.5 },
		func(c *Config) { c.KeywordRatio = -0.1 },
		func(c *Config) { c.MaxEntityDistance = -1 },
		func(c *Config) { c.MaxKeywordDistance = -1 },
		func(c *Config) { c.MinTextLength = 10; c.MaxTextLength = 5 },
		func(c *Config) { c.LengthSlack = -1 },
		func(c *Config) { c.PrefixLength = 0 },
		func(c *Config) { c.Capacity.MinPrimary = -1 },
	}
	for i, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := NewRecognizer([]string{"Island"}, nil, nil, cfg, nil)
		require.Error(t, err, "mutation %d", i)
		assert.True(t, errors.IsConfigurationError(err), "mutation %d", i)
	}
}

func TestRecognize_InputError(t *testing.T) {
	r := newTestRecognizer(t, []string{"Island"}, nil)

	_, _, err := r.Recognize([]scan.Fragment{{Box: scan.BoundingBox{1, 2, 3}, Text: "Island"}})
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))

	_, err = r.Scan([]scan.Fragment{{Box: nil, Text: "Island"}})
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
}

func TestRecognize_ReadingOrder(t *testing.T) {
	r := newTestRecognizer(t, []string{"Island", "Forest", "Swamp"}, nil)

	cards, resolutions, err := r.Recognize([]scan.Fragment{
		{Box: scan.BoundingBox{0, 200}, Text: "Swamp"},
		{Box: scan.BoundingBox{300, 0}, Text: "Forest"},
		{Box: scan.BoundingBox{0, 0}, Text: "Island"},
		{Box: scan.BoundingBox{0, 100}, Text: "??"},
	})
	require.NoError(t, err)
	require.Len(t, resolutions, 4)
	assert.Equal(t, []string{"Island", "Forest", "Swamp"}, []string{cards[0].Name, cards[1].Name, cards[2].Name})
	assert.Equal(t, OutcomeUnmatched, resolutions[2].Outcome)
	assert.Equal(t, scan.BoundingBox{0, 100}, resolutions[2].Box)
	for _, c := range cards {
		assert.Equal(t, 1, c.Multiplier)
	}
}

func TestScan_LightningBoltScenario(t *testing.T) {
	r := newTestRecognizer(t, []string{"Island", "Lightning Bolt"}, []string{"Land"})

	fragments := []scan.Fragment{
		{Box: scan.BoundingBox{10, 10, 200, 10, 200, 30, 10, 30}, Text: "Lightnng Bolt"},
		{Box: scan.BoundingBox{210, 40, 230, 40, 230, 55, 210, 55}, Text: "x4"},
		{Box: scan.BoundingBox{10, 400, 60, 400, 60, 420, 10, 420}, Text: "Land"},
	}
	report, err := r.ScanReport(fragments)
	require.NoError(t, err)

	assert.Equal(t, []scan.PileEntry{{Name: "Lightning Bolt", Count: 4}}, report.Deck.Main.Entries())
	assert.Equal(t, 0, report.Deck.Sideboard.Len())

	require.Len(t, report.Resolutions, 3)
	assert.Equal(t, OutcomeEntity, report.Resolutions[0].Outcome)
	assert.Equal(t, OutcomeUnmatched, report.Resolutions[1].Outcome)
	assert.Equal(t, OutcomeRejected, report.Resolutions[2].Outcome)

	require.Len(t, report.Assignments, 1)
	assert.Equal(t, HeuristicDirectional, report.Assignments[0].Heuristic)
	assert.Equal(t, "Lightning Bolt", report.Assignments[0].Card)
}

func TestScan_ForestScenario(t *testing.T) {
	r := newTestRecognizer(t, []string{"Forest"}, nil)

	deck, err := r.Scan([]scan.Fragment{{Box: scan.BoundingBox{0, 0}, Text: "Forrest"}})
	require.NoError(t, err)
	assert.Equal(t, 1, deck.Main.Count("Forest"))
}

func TestScan_BlackLotusScenario(t *testing.T) {
	r := newTestRecognizer(t, []string{"Black Lotus"}, nil)

	report, err := r.ScanReport([]scan.Fragment{{Box: scan.BoundingBox{0, 0}, Text: "Black L.."}})
	require.NoError(t, err)
	require.Len(t, report.Resolutions, 1)
	assert.Equal(t, MethodTruncatedPrefix, report.Resolutions[0].Method)
	assert.Equal(t, 1, report.Deck.Main.Count("Black Lotus"))
}

func TestScan_SeventyFiveCardScenario(t *testing.T) {
	lands := []string{"Island", "Forest", "Swamp", "Mountain", "Plains", "Tundra"}
	r := newTestRecognizer(t, append(lands, "Lightning Bolt"), nil)

	// Six stacks of nine land and one loose Island: 55 units before the
	// twenty Bolts that come last in reading order.
	var fragments []scan.Fragment
	y := 0
	stack := func(name, marker string) {
		fragments = append(fragments, scan.Fragment{Box: scan.BoundingBox{0, y}, Text: name})
		if marker != "" {
			fragments = append(fragments, scan.Fragment{Box: scan.BoundingBox{100, y + 5}, Text: marker})
		}
		y += 50
	}
	for _, n := range lands {
		stack(n, "x9")
	}
	stack("Island", "")
	for _, m := range []string{"x9", "x9", "x2"} {
		stack("Lightning Bolt", m)
	}

	deck, err := r.Scan(fragments)
	require.NoError(t, err)

	// 75 units, capacity max(60, 75-15) = 60: five Bolts fit.
	assert.Equal(t, 75, deck.Total())
	assert.Equal(t, 60, deck.Main.Total())
	assert.Equal(t, 5, deck.Main.Count("Lightning Bolt"))
	assert.Equal(t, 15, deck.Sideboard.Count("Lightning Bolt"))
	assert.Equal(t, 10, deck.Main.Count("Island"))
	assert.Equal(t, []string{"Lightning Bolt"}, deck.Sideboard.Names())
}

func TestScanReport_JSON(t *testing.T) {
	r := newTestRecognizer(t, []string{"Forest"}, nil)
	report, err := r.ScanReport([]scan.Fragment{
		{Box: scan.BoundingBox{0, 0}, Text: "Forest"},
		{Box: scan.BoundingBox{50, 5}, Text: "x3"},
	})
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"heuristic":"directional"`)
	assert.Contains(t, string(data), `"main":[{"name":"Forest","count":3}]`)
	assert.Contains(t, string(data), `"method":"exact"`)
}

func TestRecognizer_ConcurrentScans(t *testing.T) {
	r := newTestRecognizer(t, vintageCube, []string{"Land"})
	fragments := []scan.Fragment{
		{Box: scan.BoundingBox{0, 0}, Text: "Brainstrom"},
		{Box: scan.BoundingBox{100, 10}, Text: "x4"},
		{Box: scan.BoundingBox{0, 50}, Text: "Mox Perl"},
		{Box: scan.BoundingBox{0, 100}, Text: "Time W.."},
	}
	want, err := r.Scan(fragments)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Scan(fragments)
			assert.NoError(t, err)
			assert.Equal(t, want.String(), got.String())
		}()
	}
	wg.Wait()
	assert.Equal(t, "4 Brainstorm\n1 Mox Pearl\n1 Time Walk\n\n", want.String())
}

func TestMarkerHeuristic_TextRoundTrip(t *testing.T) {
	for _, h := range []MarkerHeuristic{HeuristicDirectional, HeuristicNearest} {
		text, err := h.MarshalText()
		require.NoError(t, err)
		var got MarkerHeuristic
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, h, got)
	}
	var h MarkerHeuristic
	err := h.UnmarshalText([]byte("diagonal"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	var a QuantityAssignment
	require.NoError(t, json.Unmarshal([]byte(`{"heuristic":"nearest","multiplier":3}`), &a))
	assert.Equal(t, HeuristicNearest, a.Heuristic)
	assert.Equal(t, 3, a.Multiplier)
}
