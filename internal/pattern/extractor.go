// File: internal/pattern/extractor.go
// Description: Turns a (defect, code context) pair into a normalized,
// comparable CodePattern. Extraction is deterministic and pure; it never
// fails, it just degrades to emptier features when the tree is missing.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/remend/api/schemas"
)

const (
	// linesBefore/linesAfter bound the syntactic window around the defect.
	linesBefore = 2
	linesAfter  = 3

	// scopeRelevance is the fixed weight assigned to scope-chain features.
	scopeRelevance = 0.8

	// catchAllKind absorbs node types the extractor does not recognize.
	catchAllKind = "node"
)

var (
	stringLiteralRe = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	numberLiteralRe = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	identifierRe    = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)
	quotedTokenRe   = regexp.MustCompile(`'[^']*'|"[^"]*"`)
)

// Extractor produces CodePatterns. It is stateless; the zero value is not
// usable, construct with NewExtractor.
type Extractor struct{}

// NewExtractor returns a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the full fingerprint for a defect in its context.
func (e *Extractor) Extract(defect schemas.Defect, codeCtx *schemas.CodeContext) schemas.CodePattern {
	var (
		source     string
		root       schemas.Node
		scopeChain []string
	)
	if codeCtx != nil {
		source = codeCtx.Source
		root = codeCtx.Root
		scopeChain = codeCtx.ScopeChain
	}

	enclosing := deepestNodeAt(root, defect.Location.Line)

	return schemas.CodePattern{
		Syntactic:  e.syntacticPattern(source, defect.Location.Line),
		Semantic:   e.semanticPattern(defect),
		Structural: e.structuralFeatures(enclosing),
		Contextual: e.contextFeatures(scopeChain),
		Signature:  e.signature(defect, enclosing),
		Complexity: e.complexity(enclosing),
	}
}

// syntacticPattern normalizes the window of lines around the defect:
// quoted literals become STR, numbers become NUM, identifiers become VAR.
func (e *Extractor) syntacticPattern(source string, line int) string {
	if source == "" || line <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	start := line - 1 - linesBefore
	if start < 0 {
		start = 0
	}
	end := line + linesAfter
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}

	window := strings.Join(lines[start:end], "\n")
	window = stringLiteralRe.ReplaceAllString(window, "STR")
	window = numberLiteralRe.ReplaceAllString(window, "NUM")
	window = identifierRe.ReplaceAllStringFunc(window, func(tok string) string {
		// The placeholders themselves must survive normalization.
		switch tok {
		case "STR", "NUM", "VAR":
			return tok
		}
		return "VAR"
	})
	return window
}

// semanticPattern is "<kind>:<message>" with the first quoted token in the
// message replaced by VAR, so messages about different names compare equal.
func (e *Extractor) semanticPattern(defect schemas.Defect) string {
	msg := defect.Message
	if loc := quotedTokenRe.FindStringIndex(msg); loc != nil {
		msg = msg[:loc[0]] + "'VAR'" + msg[loc[1]:]
	}
	return fmt.Sprintf("%s:%s", defect.Kind, msg)
}

// structuralFeatures walks the enclosing node upward through its ancestors.
// Position counts steps away from the defect; depth is the node's distance
// from the root.
func (e *Extractor) structuralFeatures(enclosing schemas.Node) []schemas.StructuralFeature {
	if enclosing == nil {
		return nil
	}

	chain := ancestorChain(enclosing)
	total := len(chain)

	features := make([]schemas.StructuralFeature, 0, total)
	for pos, node := range chain {
		kind := node.Kind()
		if kind == "" {
			kind = catchAllKind
		}
		features = append(features, schemas.StructuralFeature{
			Kind:     kind,
			Depth:    total - 1 - pos,
			Position: pos,
		})
	}
	return features
}

// contextFeatures projects the scope chain, one feature per entry, all with
// the same fixed relevance.
func (e *Extractor) contextFeatures(scopeChain []string) []schemas.ContextFeature {
	if len(scopeChain) == 0 {
		return nil
	}
	features := make([]schemas.ContextFeature, 0, len(scopeChain))
	for _, scope := range scopeChain {
		features = append(features, schemas.ContextFeature{
			Kind:      "scope",
			Value:     scope,
			Relevance: scopeRelevance,
		})
	}
	return features
}

// signature is the stable recursive "kind(children...)" encoding of the
// enclosing node. Without a tree it falls back to the defect kind so two
// treeless defects of the same kind still share a signature.
func (e *Extractor) signature(defect schemas.Defect, enclosing schemas.Node) string {
	if enclosing == nil {
		return string(defect.Kind)
	}
	return nodeSignature(enclosing)
}

// complexity is 1 + ancestor depth + direct child count.
func (e *Extractor) complexity(enclosing schemas.Node) int {
	if enclosing == nil {
		return 1
	}
	return 1 + (len(ancestorChain(enclosing)) - 1) + enclosing.ChildCount()
}

// -- Tree helpers --

// deepestNodeAt returns the deepest node whose line span covers the given
// line, or nil when there is no tree.
func deepestNodeAt(root schemas.Node, line int) schemas.Node {
	if root == nil || line <= 0 {
		return nil
	}
	node := root
	for {
		descended := false
		for i := 0; i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if child.StartLine() <= line && line <= child.EndLine() {
				node = child
				descended = true
				break
			}
		}
		if !descended {
			return node
		}
	}
}

// ancestorChain returns the node followed by its ancestors up to the root.
// Parent edges are traversal-only back references, so this walk terminates.
func ancestorChain(node schemas.Node) []schemas.Node {
	var chain []schemas.Node
	for n := node; n != nil; n = n.Parent() {
		chain = append(chain, n)
	}
	return chain
}

// nodeSignature recursively concatenates child signatures.
func nodeSignature(node schemas.Node) string {
	kind := node.Kind()
	if kind == "" {
		kind = catchAllKind
	}
	if node.ChildCount() == 0 {
		return kind
	}
	parts := make([]string, 0, node.ChildCount())
	for i := 0; i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			parts = append(parts, nodeSignature(child))
		}
	}
	return kind + "(" + strings.Join(parts, ",") + ")"
}
