// File: internal/analysis/validator.go
// Description: The reference semantic validator for Python sources. Parses
// with tree-sitter, reports syntax defects from ERROR/MISSING nodes and
// name-resolution defects from an undefined-reference scan, and hands the
// parsed tree to the caller so nothing downstream re-parses.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
)

// pythonBuiltins are names that resolve without any definition in the file.
var pythonBuiltins = map[string]bool{
	"print": true, "len": true, "range": true, "int": true, "str": true,
	"float": true, "list": true, "dict": true, "set": true, "tuple": true,
	"bool": true, "type": true, "isinstance": true, "issubclass": true,
	"enumerate": true, "zip": true, "map": true, "filter": true, "sum": true,
	"min": true, "max": true, "abs": true, "round": true, "sorted": true,
	"reversed": true, "open": true, "input": true, "repr": true, "hash": true,
	"id": true, "iter": true, "next": true, "super": true, "object": true,
	"getattr": true, "setattr": true, "hasattr": true, "callable": true,
	"Exception": true, "ValueError": true, "TypeError": true, "KeyError": true,
	"IndexError": true, "RuntimeError": true, "StopIteration": true,
	"NotImplementedError": true, "None": true, "True": true, "False": true,
	"self": true, "cls": true, "__name__": true, "__file__": true,
}

// PythonValidator implements schemas.SemanticValidator over tree-sitter.
type PythonValidator struct {
	logger *zap.Logger
}

// NewPythonValidator builds the reference validator.
func NewPythonValidator(logger *zap.Logger) *PythonValidator {
	return &PythonValidator{logger: logger.Named("validator")}
}

// Validate parses the source and reports every defect it can find. The
// returned report always carries a usable CodeContext, even on failure.
func (v *PythonValidator) Validate(ctx context.Context, source string) (*schemas.ValidationReport, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	sourceBytes := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, sourceBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()

	var defects []schemas.Defect
	defects = append(defects, syntaxDefects(root)...)
	defects = append(defects, v.nameDefects(root, sourceBytes)...)

	sort.SliceStable(defects, func(i, j int) bool {
		if defects[i].Location.Line != defects[j].Location.Line {
			return defects[i].Location.Line < defects[j].Location.Line
		}
		return defects[i].Location.Column < defects[j].Location.Column
	})
	for i := range defects {
		defects[i].ContextLines = trimmedLines(source, defects[i].Location.Line, 2)
	}

	arena := NewTree(root)
	report := &schemas.ValidationReport{
		Success: len(defects) == 0,
		Defects: defects,
		Context: &schemas.CodeContext{
			Source:     source,
			Root:       arena.Root(),
			ScopeChain: scopeChainAt(root, sourceBytes, firstDefectLine(defects)),
		},
	}

	v.logger.Debug("Validated source",
		zap.Int("defects", len(defects)),
		zap.Bool("success", report.Success))
	return report, nil
}

func firstDefectLine(defects []schemas.Defect) int {
	if len(defects) == 0 {
		return 1
	}
	return defects[0].Location.Line
}

// syntaxDefects walks the tree for ERROR and MISSING nodes.
func syntaxDefects(root *sitter.Node) []schemas.Defect {
	var defects []schemas.Defect
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.IsNull() {
			return
		}
		if n.IsError() || n.IsMissing() {
			msg := "invalid syntax"
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %s", n.Type())
			}
			defects = append(defects, schemas.Defect{
				Kind:     schemas.DefectSyntax,
				Message:  msg,
				Location: pointLocation(n),
				Severity: schemas.SeverityError,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return defects
}

// nameDefects reports identifiers used without any visible definition. The
// scan is file-local and deliberately conservative: attribute names, keyword
// arguments, and import targets are never usage sites.
func (v *PythonValidator) nameDefects(root *sitter.Node, source []byte) []schemas.Defect {
	defined := collectDefinitions(root, source)

	seen := make(map[string]bool)
	var defects []schemas.Defect
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.IsNull() {
			return
		}
		if n.Type() == "identifier" && isUsageSite(n) {
			name := n.Content(source)
			if !defined[name] && !pythonBuiltins[name] && !seen[name] {
				seen[name] = true
				defects = append(defects, schemas.Defect{
					Kind:     schemas.DefectNameResolution,
					Message:  fmt.Sprintf("name '%s' is not defined", name),
					Location: pointLocation(n),
					Severity: schemas.SeverityError,
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return defects
}

// collectDefinitions gathers every name the file itself binds: assignments,
// function and class definitions, parameters, loop targets, imports, with
// and except aliases, and global declarations.
func collectDefinitions(root *sitter.Node, source []byte) map[string]bool {
	defined := make(map[string]bool)
	bind := func(n *sitter.Node) {
		if n != nil && n.Type() == "identifier" {
			defined[n.Content(source)] = true
		}
	}
	bindAllIdentifiers := func(n *sitter.Node) {
		if n == nil {
			return
		}
		var walk func(m *sitter.Node)
		walk = func(m *sitter.Node) {
			if m == nil || m.IsNull() {
				return
			}
			bind(m)
			for i := 0; i < int(m.NamedChildCount()); i++ {
				walk(m.NamedChild(i))
			}
		}
		walk(n)
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.IsNull() {
			return
		}
		switch n.Type() {
		case "assignment", "augmented_assignment", "named_expression":
			bindAllIdentifiers(n.ChildByFieldName("left"))
			bind(n.ChildByFieldName("name"))
		case "function_definition", "class_definition":
			bind(n.ChildByFieldName("name"))
			bindAllIdentifiers(n.ChildByFieldName("parameters"))
		case "lambda":
			bindAllIdentifiers(n.ChildByFieldName("parameters"))
		case "for_statement", "for_in_clause":
			bindAllIdentifiers(n.ChildByFieldName("left"))
		case "import_statement", "import_from_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					// "import a.b" binds "a".
					bind(child.NamedChild(0))
				case "aliased_import":
					bind(child.ChildByFieldName("alias"))
				}
			}
		case "as_pattern_target":
			bindAllIdentifiers(n)
		case "global_statement", "nonlocal_statement":
			bindAllIdentifiers(n)
		case "except_clause":
			// The alias in "except E as e".
			if int(n.NamedChildCount()) >= 2 {
				bind(n.NamedChild(1))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return defined
}

// isUsageSite reports whether an identifier node reads a name, as opposed to
// binding one or naming an attribute.
func isUsageSite(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "attribute":
		// Only the object side of "obj.attr" is a usage.
		return sameSpan(parent.ChildByFieldName("object"), n)
	case "keyword_argument":
		return !sameSpan(parent.ChildByFieldName("name"), n)
	case "assignment", "augmented_assignment", "named_expression":
		return !sameSpan(parent.ChildByFieldName("left"), n)
	case "function_definition", "class_definition":
		return false
	case "parameters", "lambda_parameters", "default_parameter", "typed_parameter",
		"typed_default_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		return false
	case "dotted_name", "aliased_import", "import_statement", "import_from_statement",
		"global_statement", "nonlocal_statement", "as_pattern_target":
		return false
	case "for_statement", "for_in_clause":
		return !sameSpan(parent.ChildByFieldName("left"), n)
	case "pattern_list", "tuple_pattern":
		// Unpacking targets bind.
		return false
	}
	return true
}

// sameSpan reports whether two handles refer to the same source span. The
// binding exposes no stable node identity, so byte offsets stand in for one.
func sameSpan(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// scopeChainAt computes the ordered scope identifiers enclosing a line,
// outermost first, for feature extraction.
func scopeChainAt(root *sitter.Node, source []byte, line int) []string {
	chain := []string{"module"}
	node := deepestSitterNodeAt(root, line)
	var scopes []string
	for n := node; n != nil; n = n.Parent() {
		switch n.Type() {
		case "function_definition":
			scopes = append(scopes, "function:"+fieldName(n, source))
		case "class_definition":
			scopes = append(scopes, "class:"+fieldName(n, source))
		}
	}
	// Collected innermost first; the chain reads outermost first.
	for i := len(scopes) - 1; i >= 0; i-- {
		chain = append(chain, scopes[i])
	}
	return chain
}

func fieldName(n *sitter.Node, source []byte) string {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "anonymous"
	}
	return name.Content(source)
}

func deepestSitterNodeAt(root *sitter.Node, line int) *sitter.Node {
	if root == nil || line <= 0 {
		return nil
	}
	row := uint32(line - 1)
	node := root
	for {
		descended := false
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.StartPoint().Row <= row && row <= child.EndPoint().Row {
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

func pointLocation(n *sitter.Node) schemas.SourceLocation {
	return schemas.SourceLocation{
		Line:   int(n.StartPoint().Row) + 1,
		Column: int(n.StartPoint().Column) + 1,
	}
}

// trimmedLines returns the defect's surrounding lines for reporting.
func trimmedLines(source string, line, radius int) []string {
	lines := strings.Split(source, "\n")
	start := line - 1 - radius
	if start < 0 {
		start = 0
	}
	end := line + radius
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return nil
	}
	return lines[start:end]
}
