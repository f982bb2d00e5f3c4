package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/pkg/errors"
)

const atomicDoc = `{
  "meta": {"version": "5.2.2"},
  "data": {
    "Fire // Ice": [{"foreignData": [{"language": "French", "name": "Feu // Glace"}]}],
    "Lightning Bolt": [{"foreignData": [
      {"language": "German", "name": "Blitzschlag"},
      {"language": "French", "name": "Foudre"}
    ]}],
    "Island": [{"foreignData": []}],
    "Empty": []
  }
}`

func TestParseLines(t *testing.T) {
	data := []byte("Lightning Bolt$1\n\n# comment\n  Island  \nMox Pearl$12\nCost $ Money\n")
	names, err := ParseLines(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lightning Bolt", "Island", "Mox Pearl", "Cost $ Money"}, names)
}

func TestParseAtomic(t *testing.T) {
	tests := []struct {
		name      string
		languages []string
		want      []string
	}{
		{"english only", []string{"English"}, []string{"Empty", "Fire", "Island", "Lightning Bolt"}},
		{"french only", []string{"French"}, []string{"Feu", "Foudre"}},
		{"english and german", []string{"English", "German"}, []string{"Empty", "Fire", "Island", "Lightning Bolt", "Blitzschlag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := ParseAtomic([]byte(atomicDoc), tt.languages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParseAtomic_Invalid(t *testing.T) {
	_, err := ParseAtomic([]byte(`{"meta":{}}`), []string{"English"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusParseFailed))

	_, err = ParseAtomic([]byte(`not json`), []string{"English"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusParseFailed))
}

func TestParseKeywords(t *testing.T) {
	doc := `{"data": {"keywordActions": ["Scry", "Mill"], "abilityWords": ["Landfall"], "keywordAbilities": ["Flying"]}}`
	names, err := ParseKeywords([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Landfall", "Flying", "Scry", "Mill"}, names)
}

func TestParse_AutoDetect(t *testing.T) {
	names, err := Parse([]byte(atomicDoc), FormatAuto, KindEntities, []string{"English"})
	require.NoError(t, err)
	assert.Contains(t, names, "Lightning Bolt")

	names, err = Parse([]byte(`{"data":{"a":["Flying"]}}`), "", KindKeywords, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Flying"}, names)

	names, err = Parse([]byte("Island\nForest\n"), FormatAuto, KindEntities, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Island", "Forest"}, names)

	_, err = Parse([]byte("x"), "xml", KindEntities, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusUnsupported))
}

func TestClean(t *testing.T) {
	// "Lórien" with a combining acute accent and with the precomposed rune.
	decomposed := "Lo\u0301rien Revealed"
	composed := "L\u00f3rien Revealed"

	got := Clean([]string{" Island ", "", composed, decomposed, "Island", "Forest"})
	assert.Equal(t, []string{"Island", composed, "Forest"}, got)
}
