// File: internal/analysis/tree.go
// Description: An arena-backed view over a parsed tree-sitter tree. Parent
// edges are stored as indices into the arena, never as pointers, so upward
// traversal can not form reference cycles and the sitter tree can be closed
// after conversion.
package analysis

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/remend/api/schemas"
)

type nodeData struct {
	kind      string
	startLine int
	endLine   int
	parent    int
	children  []int
}

// Tree owns the arena of converted nodes.
type Tree struct {
	nodes []nodeData
}

// Node is a lightweight handle into the arena implementing schemas.Node.
type Node struct {
	tree *Tree
	idx  int
}

// NewTree converts a sitter tree into an arena. Only named nodes are kept;
// punctuation and other anonymous tokens carry no structural signal.
func NewTree(root *sitter.Node) *Tree {
	t := &Tree{}
	if root != nil {
		t.convert(root, -1)
	}
	return t
}

func (t *Tree) convert(n *sitter.Node, parent int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, nodeData{
		kind:      n.Type(),
		startLine: int(n.StartPoint().Row) + 1,
		endLine:   int(n.EndPoint().Row) + 1,
		parent:    parent,
	})
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := t.convert(n.NamedChild(i), idx)
		t.nodes[idx].children = append(t.nodes[idx].children, child)
	}
	return idx
}

// Root returns the arena's root node, or nil for an empty tree.
func (t *Tree) Root() schemas.Node {
	if len(t.nodes) == 0 {
		return nil
	}
	return Node{tree: t, idx: 0}
}

func (n Node) Kind() string { return n.tree.nodes[n.idx].kind }

func (n Node) Parent() schemas.Node {
	p := n.tree.nodes[n.idx].parent
	if p < 0 {
		return nil
	}
	return Node{tree: n.tree, idx: p}
}

func (n Node) ChildCount() int { return len(n.tree.nodes[n.idx].children) }

func (n Node) Child(i int) schemas.Node {
	children := n.tree.nodes[n.idx].children
	if i < 0 || i >= len(children) {
		return nil
	}
	return Node{tree: n.tree, idx: children[i]}
}

func (n Node) StartLine() int { return n.tree.nodes[n.idx].startLine }
func (n Node) EndLine() int   { return n.tree.nodes[n.idx].endLine }
