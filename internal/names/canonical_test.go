package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T) *Canonicalizer {
	t.Helper()
	c, err := New(DefaultRules())
	require.NoError(t, err)
	return c
}

func TestCanonicalize(t *testing.T) {
	c := newDefault(t)

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"unit prefix and incident suffix", "CA-SCU-Lightning Complex Fire-N22A", []string{"complex", "lightning"}},
		{"highway abbreviation", "Hwy 20 Fire", []string{"20", "highway"}},
		{"prescribed qualifier", "Prescribed Burn - Unit 007", []string{"7", "rx", "unit"}},
		{"letter digit split", "Fire1", []string{"1"}},
		{"parentheses and accents", "Peñasquitos (Canyon) Fire", []string{"canyon", "penasquitos"}},
		{"duplicates collapse", "Oak Oak oak", []string{"oak"}},
		{"leading zeros keep zero", "Zone 000", []string{"0", "zone"}},
		{"generic word only", "FIRE", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Canonicalize(tt.raw)
			assert.Equal(t, tt.want, got.Sorted())
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	c := newDefault(t)

	for _, raw := range []string{
		"CA-SCU-Lightning Complex Fire-N22A",
		"Hwy 20 Fire",
		"Prescribed Burn - Unit 007",
		"Mtn View Rd (Zone 12B)",
		"Fire1",
	} {
		once := c.Canonicalize(raw)
		twice := c.Canonicalize(once.String())
		assert.Equal(t, once.Sorted(), twice.Sorted(), raw)
	}
}

func TestNew_CustomRules(t *testing.T) {
	c, err := New(Rules{
		PrefixPatterns: []string{`^zone\s+`},
		GenericWords:   []string{"evac", "area"},
		Abbreviations:  map[string]string{"N": "north"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fire", "north", "ridge"}, c.Canonicalize("Zone N Ridge Evac Area Fire").Sorted())
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New(Rules{PrefixPatterns: []string{"("}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix pattern")

	_, err = New(Rules{Qualifiers: []Qualifier{{Pattern: "[", Tag: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qualifier pattern")
}
