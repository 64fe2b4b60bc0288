package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `# XP Calculation

| Tag | Kategorie | Basis_XP |
| :--- | :--- | ---: |
| #study | Intellektuell | 3.0 |
| #workout | Physisch | 2 |
| #social | Sozial | abc |
| #garden | Garten | 1,5 |
| #study | Sozial | 9.0 |
| #broken | Allgemein |
not a row | #x | y | 1 |
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)
	assert.True(t, table.Loaded())

	got := table.Rules()
	require.Len(t, got, 4)
	assert.Equal(t, Rule{Tag: "#study", Category: "Intellektuell", BaseXP: 3.0}, got[0])
	assert.Equal(t, Rule{Tag: "#workout", Category: "Physisch", BaseXP: 2.0}, got[1])
	assert.Equal(t, FallbackBaseXP, got[2].BaseXP, "malformed base XP falls back")
	assert.Equal(t, 1.5, got[3].BaseXP, "comma decimal is accepted")
}

func TestParseDuplicateTagFirstWins(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)

	r, ok := table.Resolve("something #study")
	require.True(t, ok)
	assert.Equal(t, "Intellektuell", r.Category)
	assert.Equal(t, 3.0, r.BaseXP)
}

func TestCategoriesIncludeBuiltinsAndDiscovered(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)

	cats := table.Categories()
	assert.Equal(t, BuiltinCategories, cats[:len(BuiltinCategories)])
	assert.Contains(t, cats, "Garten")
	assert.NotContains(t, cats, "Unbekannt")
}

func TestLoadMissingFile(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "nope.md"))
	require.NoError(t, err)
	assert.False(t, table.Loaded())
	assert.Empty(t, table.Rules())
	assert.Equal(t, BuiltinCategories, table.Categories())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "XP_Calculation.md")
	require.NoError(t, os.WriteFile(path, []byte("| #study | Intellektuell | 3.0 |\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.True(t, table.Loaded())
	assert.Len(t, table.Rules(), 1)
}

func TestCategoryTieBreakIsTableOrder(t *testing.T) {
	table := New([]Rule{
		{Tag: "#a", Category: "CatA", BaseXP: 1},
		{Tag: "#b", Category: "CatB", BaseXP: 2},
	})
	assert.Equal(t, "CatA", table.Category("do #b and #a"))
	assert.Equal(t, "CatB", table.Category("only #B here"))
	assert.Equal(t, DefaultCategory, table.Category("untagged"))
}

func TestZeroMapIsTotal(t *testing.T) {
	table := New([]Rule{{Tag: "#x", Category: "Extra", BaseXP: 1}})
	m := table.ZeroMap()
	for _, c := range table.Categories() {
		v, ok := m[c]
		assert.True(t, ok, c)
		assert.Zero(t, v)
	}

	filled := table.Fill(map[string]float64{"Extra": 2})
	assert.Equal(t, 2.0, filled["Extra"])
	assert.Len(t, filled, len(table.Categories()))
}
