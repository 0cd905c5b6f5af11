// File: internal/pattern/extractor_test.go
package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/remend/api/schemas"
)

// fakeNode is an arena-free test tree node. Parents are plain back pointers,
// which is fine for test fixtures that never outlive the test.
type fakeNode struct {
	kind       string
	start, end int
	parent     *fakeNode
	children   []*fakeNode
}

func (n *fakeNode) Kind() string   { return n.kind }
func (n *fakeNode) StartLine() int { return n.start }
func (n *fakeNode) EndLine() int   { return n.end }
func (n *fakeNode) ChildCount() int {
	return len(n.children)
}
func (n *fakeNode) Child(i int) schemas.Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}
func (n *fakeNode) Parent() schemas.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// buildTree wires parent pointers for a literal tree value.
func buildTree(root *fakeNode) *fakeNode {
	var wire func(n *fakeNode)
	wire = func(n *fakeNode) {
		for _, c := range n.children {
			c.parent = n
			wire(c)
		}
	}
	wire(root)
	return root
}

// pythonFixtureTree models:
//
//	1: import os
//	2: def main():
//	3:     x = 10
//	4:     print(nam)
func pythonFixtureTree() *fakeNode {
	return buildTree(&fakeNode{
		kind: "module", start: 1, end: 4,
		children: []*fakeNode{
			{kind: "import_statement", start: 1, end: 1},
			{kind: "function_definition", start: 2, end: 4, children: []*fakeNode{
				{kind: "assignment", start: 3, end: 3},
				{kind: "expression_statement", start: 4, end: 4},
			}},
		},
	})
}

func nameDefect(line int) schemas.Defect {
	return schemas.Defect{
		Kind:     schemas.DefectNameResolution,
		Message:  "name 'nam' is not defined",
		Location: schemas.SourceLocation{Line: line, Column: 11},
		Severity: schemas.SeverityError,
	}
}

func TestExtractor_SyntacticNormalization(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	ctx := &schemas.CodeContext{
		Source: "x = 10\nname = \"bob\"\nprint(nam)",
	}
	defect := schemas.Defect{
		Kind:     schemas.DefectNameResolution,
		Message:  "name 'nam' is not defined",
		Location: schemas.SourceLocation{Line: 3},
	}

	got := e.Extract(defect, ctx)
	assert.Equal(t, "VAR = NUM\nVAR = STR\nVAR(VAR)", got.Syntactic)
}

func TestExtractor_SyntacticWindowEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		line   int
		want   string
	}{
		{name: "empty source", source: "", line: 1, want: ""},
		{name: "line zero", source: "a = 1", line: 0, want: ""},
		{name: "line past end", source: "a = 1", line: 99, want: ""},
		{name: "single line", source: "a = 1", line: 1, want: "VAR = NUM"},
	}

	e := NewExtractor()
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := e.Extract(
				schemas.Defect{Kind: schemas.DefectSyntax, Location: schemas.SourceLocation{Line: tc.line}},
				&schemas.CodeContext{Source: tc.source},
			)
			assert.Equal(t, tc.want, got.Syntactic)
		})
	}
}

func TestExtractor_SemanticPatternAbstractsQuotedName(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	a := e.Extract(schemas.Defect{
		Kind:    schemas.DefectNameResolution,
		Message: "name 'foo' is not defined",
	}, nil)
	b := e.Extract(schemas.Defect{
		Kind:    schemas.DefectNameResolution,
		Message: "name 'barbaz' is not defined",
	}, nil)

	assert.Equal(t, "name-resolution:name 'VAR' is not defined", a.Semantic)
	assert.Equal(t, a.Semantic, b.Semantic,
		"defects differing only in the quoted name must share a semantic pattern")
}

func TestExtractor_StructuralFeatures(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	ctx := &schemas.CodeContext{Root: pythonFixtureTree()}

	got := e.Extract(nameDefect(4), ctx)

	require.Len(t, got.Structural, 3)
	assert.Equal(t, schemas.StructuralFeature{Kind: "expression_statement", Depth: 2, Position: 0}, got.Structural[0])
	assert.Equal(t, schemas.StructuralFeature{Kind: "function_definition", Depth: 1, Position: 1}, got.Structural[1])
	assert.Equal(t, schemas.StructuralFeature{Kind: "module", Depth: 0, Position: 2}, got.Structural[2])
}

func TestExtractor_ContextFeatures(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	ctx := &schemas.CodeContext{ScopeChain: []string{"module", "function:main"}}

	got := e.Extract(nameDefect(4), ctx)

	require.Len(t, got.Contextual, 2)
	for _, f := range got.Contextual {
		assert.Equal(t, "scope", f.Kind)
		assert.InDelta(t, 0.8, f.Relevance, 1e-9)
	}
	assert.Equal(t, "module", got.Contextual[0].Value)
	assert.Equal(t, "function:main", got.Contextual[1].Value)
}

func TestExtractor_SignatureAndComplexity(t *testing.T) {
	t.Parallel()

	e := NewExtractor()

	t.Run("without tree", func(t *testing.T) {
		t.Parallel()
		got := e.Extract(nameDefect(4), nil)
		assert.Equal(t, "name-resolution", got.Signature)
		assert.Equal(t, 1, got.Complexity)
	})

	t.Run("with tree", func(t *testing.T) {
		t.Parallel()
		got := e.Extract(nameDefect(4), &schemas.CodeContext{Root: pythonFixtureTree()})
		// Deepest node at line 4 is the leaf expression statement.
		assert.Equal(t, "expression_statement", got.Signature)
		// 1 + two ancestors + zero children.
		assert.Equal(t, 3, got.Complexity)
	})

	t.Run("root signature recurses", func(t *testing.T) {
		t.Parallel()
		sig := nodeSignature(pythonFixtureTree())
		assert.Equal(t, "module(import_statement,function_definition(assignment,expression_statement))", sig)
	})
}

func TestExtractor_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	ctx := &schemas.CodeContext{
		Source:     "def main():\n    print(nam)",
		Root:       pythonFixtureTree(),
		ScopeChain: []string{"module", "function:main"},
	}
	defect := nameDefect(4)

	first := e.Extract(defect, ctx)
	second := e.Extract(defect, ctx)
	assert.Equal(t, first, second, "extraction must be pure")
}

func TestDeepestNodeAt(t *testing.T) {
	t.Parallel()

	root := pythonFixtureTree()

	tests := []struct {
		name string
		line int
		want string
	}{
		{name: "leaf", line: 4, want: "expression_statement"},
		{name: "import line", line: 1, want: "import_statement"},
		{name: "function header", line: 2, want: "function_definition"},
		{name: "outside all children stays at root", line: 0, want: ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			node := deepestNodeAt(root, tc.line)
			if tc.want == "" {
				assert.Nil(t, node)
				return
			}
			require.NotNil(t, node)
			assert.Equal(t, tc.want, node.Kind())
		})
	}
}
