// File: internal/pattern/matcher.go
package pattern

import (
	"github.com/hbollon/go-edlib"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

// Matcher scores the similarity of two CodePatterns across four
// independently weighted dimensions.
type Matcher struct {
	cfg config.MatcherConfig
}

// NewMatcher builds a matcher with the given weights. Weights must already be
// validated non-negative; they need not sum to 1.
func NewMatcher(cfg config.MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Similarity combines the four sub-scores into a confidence in [0, 1].
func (m *Matcher) Similarity(a, b schemas.CodePattern) float64 {
	score := m.cfg.SyntacticWeight*stringSimilarity(a.Syntactic, b.Syntactic) +
		m.cfg.SemanticWeight*stringSimilarity(a.Semantic, b.Semantic) +
		m.cfg.StructuralWeight*m.StructuralOverlap(a, b) +
		m.cfg.ContextualWeight*m.ContextualOverlap(a, b)
	return clamp01(score)
}

// StructuralOverlap is the fraction of structural features that match on
// (kind, position), relative to the larger feature list.
func (m *Matcher) StructuralOverlap(a, b schemas.CodePattern) float64 {
	if len(a.Structural) == 0 && len(b.Structural) == 0 {
		return 1.0
	}
	if len(a.Structural) == 0 || len(b.Structural) == 0 {
		return 0.0
	}

	type key struct {
		kind     string
		position int
	}
	seen := make(map[key]bool, len(b.Structural))
	for _, f := range b.Structural {
		seen[key{f.Kind, f.Position}] = true
	}

	matching := 0
	for _, f := range a.Structural {
		if seen[key{f.Kind, f.Position}] {
			matching++
		}
	}
	return float64(matching) / float64(max(len(a.Structural), len(b.Structural)))
}

// ContextualOverlap is the fraction of context features that match on
// (kind, value), relative to the larger feature list.
func (m *Matcher) ContextualOverlap(a, b schemas.CodePattern) float64 {
	if len(a.Contextual) == 0 && len(b.Contextual) == 0 {
		return 1.0
	}
	if len(a.Contextual) == 0 || len(b.Contextual) == 0 {
		return 0.0
	}

	type key struct {
		kind  string
		value string
	}
	seen := make(map[key]bool, len(b.Contextual))
	for _, f := range b.Contextual {
		seen[key{f.Kind, f.Value}] = true
	}

	matching := 0
	for _, f := range a.Contextual {
		if seen[key{f.Kind, f.Value}] {
			matching++
		}
	}
	return float64(matching) / float64(max(len(a.Contextual), len(b.Contextual)))
}

// stringSimilarity is normalized edit distance:
// 1 - levenshtein(a, b)/max(len(a), len(b)), and 1.0 when both are empty.
func stringSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		// Levenshtein is always supported; keep a safe floor anyway.
		return 0.0
	}
	return float64(sim)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
