package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b TokenSet
		want float64
	}{
		{"identical", NewTokenSet("lightning", "complex"), NewTokenSet("complex", "lightning"), 1},
		{"partial", NewTokenSet("oak", "ridge"), NewTokenSet("oak", "valley"), 1.0 / 3.0},
		{"disjoint", NewTokenSet("oak"), NewTokenSet("pine"), 0},
		{"both empty", NewTokenSet(), NewTokenSet(), 0},
		{"one empty", NewTokenSet("oak"), NewTokenSet(), 0},
		{"nil sets", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-12)
			assert.InDelta(t, Jaccard(tt.a, tt.b), Jaccard(tt.b, tt.a), 1e-12, "jaccard must be symmetric")
		})
	}
}

func TestJaccard_SelfIsOne(t *testing.T) {
	for _, s := range []TokenSet{NewTokenSet("a"), NewTokenSet("a", "b", "c")} {
		assert.Equal(t, 1.0, Jaccard(s, s))
	}
}

func TestEditRatio(t *testing.T) {
	assert.Equal(t, 1.0, EditRatio(NewTokenSet("oak"), NewTokenSet("oak")))
	assert.InDelta(t, 0.75, EditRatio(NewTokenSet("oak"), NewTokenSet("oaks")), 1e-12)
	assert.Zero(t, EditRatio(NewTokenSet(), NewTokenSet("oak")))
}

func TestTokenSet_IgnoresEmpty(t *testing.T) {
	s := NewTokenSet("", "a", "a")
	assert.Len(t, s, 1)
	assert.Equal(t, "a", s.String())
}
