// File: internal/pattern/matcher_test.go
package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

func defaultMatcher() *Matcher {
	return NewMatcher(config.MatcherConfig{
		SyntacticWeight:  0.3,
		SemanticWeight:   0.3,
		StructuralWeight: 0.2,
		ContextualWeight: 0.2,
	})
}

func TestStringSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		a, b  string
		want  float64
		delta float64
	}{
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "left empty", a: "", b: "x", want: 0.0},
		{name: "right empty", a: "x", b: "", want: 0.0},
		{name: "identical", a: "VAR = NUM", b: "VAR = NUM", want: 1.0},
		// levenshtein("kitten","sitting") = 3, max len 7.
		{name: "classic distance", a: "kitten", b: "sitting", want: 1.0 - 3.0/7.0, delta: 0.01},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0, delta: 0.01},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := stringSimilarity(tc.a, tc.b)
			if tc.delta > 0 {
				assert.InDelta(t, tc.want, got, tc.delta)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestStructuralOverlap(t *testing.T) {
	t.Parallel()

	m := defaultMatcher()
	feats := func(kinds ...string) []schemas.StructuralFeature {
		out := make([]schemas.StructuralFeature, len(kinds))
		for i, k := range kinds {
			out[i] = schemas.StructuralFeature{Kind: k, Position: i}
		}
		return out
	}

	tests := []struct {
		name string
		a, b []schemas.StructuralFeature
		want float64
	}{
		{name: "both empty", want: 1.0},
		{name: "one empty", a: feats("module"), want: 0.0},
		{name: "identical", a: feats("expr", "func", "module"), b: feats("expr", "func", "module"), want: 1.0},
		{name: "half overlap", a: feats("expr", "func"), b: feats("expr", "class"), want: 0.5},
		{name: "size mismatch divides by larger", a: feats("expr"), b: feats("expr", "func"), want: 0.5},
		{
			name: "same kind wrong position does not match",
			a:    []schemas.StructuralFeature{{Kind: "expr", Position: 0}},
			b:    []schemas.StructuralFeature{{Kind: "expr", Position: 1}},
			want: 0.0,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := m.StructuralOverlap(
				schemas.CodePattern{Structural: tc.a},
				schemas.CodePattern{Structural: tc.b},
			)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestContextualOverlap(t *testing.T) {
	t.Parallel()

	m := defaultMatcher()
	scopes := func(values ...string) []schemas.ContextFeature {
		out := make([]schemas.ContextFeature, len(values))
		for i, v := range values {
			out[i] = schemas.ContextFeature{Kind: "scope", Value: v, Relevance: 0.8}
		}
		return out
	}

	tests := []struct {
		name string
		a, b []schemas.ContextFeature
		want float64
	}{
		{name: "both empty", want: 1.0},
		{name: "one empty", b: scopes("module"), want: 0.0},
		{name: "identical", a: scopes("module", "function:main"), b: scopes("module", "function:main"), want: 1.0},
		{name: "partial", a: scopes("module", "function:main"), b: scopes("module", "function:other"), want: 0.5},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := m.ContextualOverlap(
				schemas.CodePattern{Contextual: tc.a},
				schemas.CodePattern{Contextual: tc.b},
			)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	pattern := schemas.CodePattern{
		Syntactic: "VAR = NUM",
		Semantic:  "syntax:invalid syntax",
		Structural: []schemas.StructuralFeature{
			{Kind: "assignment", Position: 0},
			{Kind: "module", Position: 1},
		},
		Contextual: []schemas.ContextFeature{{Kind: "scope", Value: "module", Relevance: 0.8}},
	}

	t.Run("identical patterns score one", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 1.0, defaultMatcher().Similarity(pattern, pattern), 1e-6)
	})

	t.Run("empty probe against rich pattern stays low", func(t *testing.T) {
		t.Parallel()
		got := defaultMatcher().Similarity(schemas.CodePattern{}, pattern)
		assert.Less(t, got, 0.5)
	})

	t.Run("score is clamped when weights exceed one", func(t *testing.T) {
		t.Parallel()
		heavy := NewMatcher(config.MatcherConfig{
			SyntacticWeight:  1.0,
			SemanticWeight:   1.0,
			StructuralWeight: 1.0,
			ContextualWeight: 1.0,
		})
		assert.Equal(t, 1.0, heavy.Similarity(pattern, pattern))
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		other := schemas.CodePattern{Syntactic: "VAR = STR", Semantic: "syntax:invalid syntax"}
		m := defaultMatcher()
		assert.InDelta(t, m.Similarity(pattern, other), m.Similarity(other, pattern), 1e-6)
	})
}
