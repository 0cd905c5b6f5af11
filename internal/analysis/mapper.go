// File: internal/analysis/mapper.go
// Description: The reference transformation mapper. Proposes concrete line
// edits for the defect kinds the tree gives us enough signal on; anything
// else yields an empty candidate list, which the generator's fallback
// covers.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
)

// HeuristicMapper implements schemas.TransformationMapper with small,
// syntax-directed repairs.
type HeuristicMapper struct {
	logger *zap.Logger
}

// NewHeuristicMapper builds the reference mapper.
func NewHeuristicMapper(logger *zap.Logger) *HeuristicMapper {
	return &HeuristicMapper{logger: logger.Named("mapper")}
}

// Map proposes ranked candidates for the defect. An empty result is a valid
// answer.
func (m *HeuristicMapper) Map(_ context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) ([]schemas.TransformationCandidate, error) {
	if codeCtx == nil || codeCtx.Source == "" {
		return nil, nil
	}

	var candidates []schemas.TransformationCandidate
	switch defect.Kind {
	case schemas.DefectSyntax:
		candidates = m.syntaxCandidates(defect, codeCtx)
	}

	m.logger.Debug("Mapped defect to candidates",
		zap.String("kind", string(defect.Kind)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// syntaxCandidates repairs the common Python slip-ups visible from a single
// line: a missing block colon and unbalanced brackets.
func (m *HeuristicMapper) syntaxCandidates(defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.TransformationCandidate {
	line := defect.Location.Line
	text := lineAt(codeCtx.Source, line)
	if text == "" {
		return nil
	}

	var candidates []schemas.TransformationCandidate

	if missingColon(text) {
		candidates = append(candidates, schemas.TransformationCandidate{
			Description: "Add the missing ':' closing the block header",
			Confidence:  0.85,
			Tag:         "add-colon",
			Transformation: schemas.Transformation{
				Tag: "add-colon",
				Edits: []schemas.Edit{{
					Kind:    schemas.EditReplaceLine,
					Line:    line,
					Content: strings.TrimRight(text, " \t") + ":",
				}},
			},
		})
	}

	if missing := unbalancedClosers(text); missing != "" {
		candidates = append(candidates, schemas.TransformationCandidate{
			Description: fmt.Sprintf("Close the unbalanced brackets with %q", missing),
			Confidence:  0.75,
			Tag:         "balance-brackets",
			Transformation: schemas.Transformation{
				Tag: "balance-brackets",
				Edits: []schemas.Edit{{
					Kind:    schemas.EditReplaceLine,
					Line:    line,
					Content: strings.TrimRight(text, " \t") + missing,
				}},
			},
		})
	}

	return candidates
}

var blockKeywords = []string{"def ", "class ", "if ", "elif ", "else", "for ", "while ", "try", "except", "finally", "with "}

// missingColon reports whether the line opens a block but lacks its colon.
func missingColon(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasSuffix(trimmed, ":") {
		return false
	}
	for _, kw := range blockKeywords {
		if trimmed == strings.TrimSpace(kw) || strings.HasPrefix(trimmed, kw) {
			return unbalancedClosers(text) == ""
		}
	}
	return false
}

// unbalancedClosers returns the closing brackets the line still owes, inner
// first.
func unbalancedClosers(text string) string {
	var stack []byte
	inString := byte(0)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inString = c
		case '#':
			return closersFor(stack)
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return closersFor(stack)
}

func closersFor(stack []byte) string {
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '(':
			b.WriteByte(')')
		case '[':
			b.WriteByte(']')
		case '{':
			b.WriteByte('}')
		}
	}
	return b.String()
}

func lineAt(source string, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	return lines[line-1]
}
