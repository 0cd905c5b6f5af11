// File: internal/analysis/mapper_test.go
package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
)

func mapDefect(t *testing.T, source string, defect schemas.Defect) []schemas.TransformationCandidate {
	t.Helper()
	m := NewHeuristicMapper(zap.NewNop())
	candidates, err := m.Map(context.Background(), defect, &schemas.CodeContext{Source: source})
	require.NoError(t, err)
	return candidates
}

func syntaxDefectAt(line int) schemas.Defect {
	return schemas.Defect{
		Kind:     schemas.DefectSyntax,
		Message:  "invalid syntax",
		Location: schemas.SourceLocation{Line: line},
		Severity: schemas.SeverityError,
	}
}

func TestMap_MissingColon(t *testing.T) {
	t.Parallel()

	candidates := mapDefect(t, "def main()\n    pass\n", syntaxDefectAt(1))

	require.NotEmpty(t, candidates)
	assert.Equal(t, "add-colon", candidates[0].Tag)
	require.Len(t, candidates[0].Transformation.Edits, 1)
	assert.Equal(t, "def main():", candidates[0].Transformation.Edits[0].Content)
	assert.InDelta(t, 0.85, candidates[0].Confidence, 1e-9)
}

func TestMap_UnbalancedBrackets(t *testing.T) {
	t.Parallel()

	candidates := mapDefect(t, "x = (1 + [2\n", syntaxDefectAt(1))

	require.NotEmpty(t, candidates)
	found := false
	for _, c := range candidates {
		if c.Tag == "balance-brackets" {
			found = true
			require.Len(t, c.Transformation.Edits, 1)
			assert.Equal(t, "x = (1 + [2])", c.Transformation.Edits[0].Content)
		}
	}
	assert.True(t, found)
}

func TestMap_BracketsInsideStringsIgnored(t *testing.T) {
	t.Parallel()

	candidates := mapDefect(t, "x = '(unclosed'\n", syntaxDefectAt(1))
	for _, c := range candidates {
		assert.NotEqual(t, "balance-brackets", c.Tag)
	}
}

func TestMap_NonSyntaxKindsYieldNothing(t *testing.T) {
	t.Parallel()

	candidates := mapDefect(t, "print(ghost)\n", schemas.Defect{
		Kind:     schemas.DefectNameResolution,
		Message:  "name 'ghost' is not defined",
		Location: schemas.SourceLocation{Line: 1},
	})
	assert.Empty(t, candidates)
}

func TestMap_NoContext(t *testing.T) {
	t.Parallel()

	m := NewHeuristicMapper(zap.NewNop())
	candidates, err := m.Map(context.Background(), syntaxDefectAt(1), nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
