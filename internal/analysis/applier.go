// File: internal/analysis/applier.go
// Description: The reference transformation applier. Transformations carry
// line-level edits; the applier rewrites the text and re-parses so callers
// get a fresh tree alongside the generated code.
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

// LineApplier implements schemas.TransformationApplier over line edits.
type LineApplier struct {
	logger *zap.Logger
}

// NewLineApplier builds the reference applier.
func NewLineApplier(logger *zap.Logger) *LineApplier {
	return &LineApplier{logger: logger.Named("applier")}
}

// Apply rewrites the source through every transformation in order and
// re-parses the result. A malformed edit fails the whole call; the caller
// treats that as the candidate's failure.
func (a *LineApplier) Apply(ctx context.Context, source string, transformations []schemas.Transformation) (*schemas.ApplyResult, error) {
	current := source
	for _, tr := range transformations {
		next, err := applyTransformation(current, tr)
		if err != nil {
			return nil, fmt.Errorf("applying transformation %q: %w", tr.Tag, err)
		}
		current = next
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, []byte(current))
	if err != nil {
		return nil, fmt.Errorf("re-parsing generated code: %w", err)
	}
	defer tree.Close()

	a.logger.Debug("Applied transformations",
		zap.Int("count", len(transformations)),
		zap.Int("generated_bytes", len(current)))
	return &schemas.ApplyResult{
		GeneratedCode: current,
		Root:          NewTree(tree.RootNode()).Root(),
	}, nil
}

// applyTransformation applies one transformation's edits, highest line
// first, so earlier edits can not shift the location of later ones.
func applyTransformation(source string, tr schemas.Transformation) (string, error) {
	if len(tr.Edits) == 0 {
		return source, nil
	}

	edits := append([]schemas.Edit(nil), tr.Edits...)
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Line > edits[j].Line })

	lines := strings.Split(source, "\n")
	for _, e := range edits {
		idx := e.Line - 1
		switch e.Kind {
		case schemas.EditReplaceLine:
			if idx < 0 || idx >= len(lines) {
				return "", fmt.Errorf("replace targets line %d of %d", e.Line, len(lines))
			}
			lines[idx] = e.Content
		case schemas.EditInsertLine:
			// Inserting before the given line; one past the end appends.
			if idx < 0 || idx > len(lines) {
				return "", fmt.Errorf("insert targets line %d of %d", e.Line, len(lines))
			}
			lines = append(lines[:idx], append([]string{e.Content}, lines[idx:]...)...)
		case schemas.EditDeleteLine:
			if idx < 0 || idx >= len(lines) {
				return "", fmt.Errorf("delete targets line %d of %d", e.Line, len(lines))
			}
			lines = append(lines[:idx], lines[idx+1:]...)
		default:
			return "", fmt.Errorf("unknown edit kind %q", e.Kind)
		}
	}
	return strings.Join(lines, "\n"), nil
}
