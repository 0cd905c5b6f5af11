// File: internal/generator/strategies.go
// Description: The rule-based strategy table. Entries are pure functions
// keyed by defect kind; each either proposes one concrete solution or
// declines with nil. The table backs both the alternative-approach fallback
// and the contextual import/declaration heuristics.
package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/remend/api/schemas"
)

// ruleFunc is the uniform strategy signature: propose one solution for the
// defect or return nil. The solution's ID and validation fields are filled
// in later by the generator.
type ruleFunc func(defect schemas.Defect, codeCtx *schemas.CodeContext, knownModules []string) *schemas.CorrectionSolution

// ruleTable maps defect kinds to their ordered strategy functions.
var ruleTable = map[schemas.DefectKind][]ruleFunc{
	schemas.DefectNameResolution: {renameSuggestion, importAddition, nullDeclaration},
	schemas.DefectImport:         {importAddition},
	schemas.DefectSyntax:         {syntaxRepair, alternativePhrasing},
}

// quotedNameRe pulls the offending identifier out of messages like
// "name 'foo' is not defined".
var quotedNameRe = regexp.MustCompile(`'([A-Za-z_]\w*)'`)

// undefinedName extracts the unresolved identifier from a defect message,
// or "" when the message carries none.
func undefinedName(defect schemas.Defect) string {
	m := quotedNameRe.FindStringSubmatch(defect.Message)
	if m == nil {
		return ""
	}
	return m[1]
}

// tableSolutions runs every table entry for the defect's kind and keeps the
// proposals whose type is in the wanted set.
func tableSolutions(defect schemas.Defect, codeCtx *schemas.CodeContext, knownModules []string, wanted ...schemas.SolutionType) []schemas.CorrectionSolution {
	var out []schemas.CorrectionSolution
	for _, fn := range ruleTable[defect.Kind] {
		sol := fn(defect, codeCtx, knownModules)
		if sol == nil {
			continue
		}
		for _, w := range wanted {
			if sol.Type == w {
				out = append(out, *sol)
				break
			}
		}
	}
	return out
}

// renameSuggestion proposes correcting a misspelled reference by renaming it
// to the closest name visible in the surrounding source. Without a concrete
// nearest name it still proposes a placeholder rename for a human to finish.
func renameSuggestion(defect schemas.Defect, codeCtx *schemas.CodeContext, _ []string) *schemas.CorrectionSolution {
	name := undefinedName(defect)
	if name == "" {
		return nil
	}

	replacement := nearestIdentifier(name, codeCtx)
	desc := fmt.Sprintf("Rename '%s' to a similar name in scope", name)
	content := ""
	if replacement != "" {
		desc = fmt.Sprintf("Rename '%s' to '%s'", name, replacement)
		content = renameOnLine(codeCtx, defect.Location.Line, name, replacement)
	}

	edits := []schemas.Edit{}
	if content != "" {
		edits = append(edits, schemas.Edit{Kind: schemas.EditReplaceLine, Line: defect.Location.Line, Content: content})
	}
	return &schemas.CorrectionSolution{
		Description: desc,
		Type:        schemas.SolutionAlternativeApproach,
		Confidence:  0.6,
		Priority:    schemas.PriorityFor(schemas.SolutionAlternativeApproach),
		Transformation: schemas.Transformation{
			Tag:   "rename-reference",
			Edits: edits,
		},
		Impact: schemas.ImpactAnalysis{
			LinesAffected:     len(edits),
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactNeutral,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "rule:rename"},
	}
}

// importAddition proposes importing the unresolved name when it is on the
// known-module allowlist.
func importAddition(defect schemas.Defect, _ *schemas.CodeContext, knownModules []string) *schemas.CorrectionSolution {
	name := undefinedName(defect)
	if name == "" {
		return nil
	}
	allowed := false
	for _, mod := range knownModules {
		if mod == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil
	}

	stmt := fmt.Sprintf("import %s", name)
	return &schemas.CorrectionSolution{
		Description: fmt.Sprintf("Add missing %s at the top of the file", stmt),
		Type:        schemas.SolutionImportAddition,
		Confidence:  0.8,
		Priority:    schemas.PriorityFor(schemas.SolutionImportAddition),
		Transformation: schemas.Transformation{
			Tag:   "add-import",
			Edits: []schemas.Edit{{Kind: schemas.EditInsertLine, Line: 1, Content: stmt}},
		},
		Impact: schemas.ImpactAnalysis{
			LinesAffected:     1,
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactNeutral,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "rule:import-addition"},
	}
}

// nullDeclaration proposes declaring the unresolved name with a null initial
// value just above its first use.
func nullDeclaration(defect schemas.Defect, codeCtx *schemas.CodeContext, knownModules []string) *schemas.CorrectionSolution {
	name := undefinedName(defect)
	if name == "" {
		return nil
	}
	for _, mod := range knownModules {
		if mod == name {
			// The import strategy owns allowlisted names.
			return nil
		}
	}

	decl := fmt.Sprintf("%s%s = None", lineIndent(codeCtx, defect.Location.Line), name)
	return &schemas.CorrectionSolution{
		Description: fmt.Sprintf("Declare '%s = None' before first use", name),
		Type:        schemas.SolutionVariableDeclaration,
		Confidence:  0.7,
		Priority:    schemas.PriorityFor(schemas.SolutionVariableDeclaration),
		Transformation: schemas.Transformation{
			Tag:   "declare-variable",
			Edits: []schemas.Edit{{Kind: schemas.EditInsertLine, Line: defect.Location.Line, Content: decl}},
		},
		Impact: schemas.ImpactAnalysis{
			LinesAffected:     1,
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactNeutral,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "rule:null-declaration"},
	}
}

// syntaxRepair proposes rewriting the offending line, trimming trailing
// garbage that commonly causes parse failures.
func syntaxRepair(defect schemas.Defect, codeCtx *schemas.CodeContext, _ []string) *schemas.CorrectionSolution {
	line := sourceLine(codeCtx, defect.Location.Line)
	if line == "" {
		return nil
	}
	repaired := strings.TrimRight(line, " \t\\")
	return &schemas.CorrectionSolution{
		Description: "Repair the malformed statement in place",
		Type:        schemas.SolutionDirectFix,
		Confidence:  0.6,
		Priority:    schemas.PriorityFor(schemas.SolutionDirectFix),
		Transformation: schemas.Transformation{
			Tag:   "repair-line",
			Edits: []schemas.Edit{{Kind: schemas.EditReplaceLine, Line: defect.Location.Line, Content: repaired}},
		},
		Impact: schemas.ImpactAnalysis{
			LinesAffected:     1,
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactNeutral,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "rule:syntax-repair"},
	}
}

// alternativePhrasing proposes commenting the broken statement out so the
// rest of the file parses, as a last-resort alternative.
func alternativePhrasing(defect schemas.Defect, codeCtx *schemas.CodeContext, _ []string) *schemas.CorrectionSolution {
	line := sourceLine(codeCtx, defect.Location.Line)
	if line == "" {
		return nil
	}
	return &schemas.CorrectionSolution{
		Description: "Rephrase the statement, neutralizing the unparsable fragment",
		Type:        schemas.SolutionAlternativeApproach,
		Confidence:  0.5,
		Priority:    schemas.PriorityFor(schemas.SolutionAlternativeApproach),
		Transformation: schemas.Transformation{
			Tag:   "neutralize-line",
			Edits: []schemas.Edit{{Kind: schemas.EditReplaceLine, Line: defect.Location.Line, Content: lineIndent(codeCtx, defect.Location.Line) + "pass"}},
		},
		Impact: schemas.ImpactAnalysis{
			LinesAffected:        1,
			PotentialSideEffects: []string{"removes original statement behavior"},
			PerformanceImpact:    schemas.ImpactNeutral,
			ReadabilityImpact:    schemas.ImpactDegraded,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "rule:alternative-phrasing"},
	}
}

// -- small source helpers --

func sourceLine(codeCtx *schemas.CodeContext, line int) string {
	if codeCtx == nil || line <= 0 {
		return ""
	}
	lines := strings.Split(codeCtx.Source, "\n")
	if line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func lineIndent(codeCtx *schemas.CodeContext, line int) string {
	src := sourceLine(codeCtx, line)
	return src[:len(src)-len(strings.TrimLeft(src, " \t"))]
}

func renameOnLine(codeCtx *schemas.CodeContext, line int, from, to string) string {
	src := sourceLine(codeCtx, line)
	if src == "" {
		return ""
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`)
	return re.ReplaceAllString(src, to)
}

// nearestIdentifier scans the source for the identifier closest to name by
// simple shared-prefix length. Deliberately cheap; the semantic validator is
// the arbiter of whether the rename actually resolves anything.
func nearestIdentifier(name string, codeCtx *schemas.CodeContext) string {
	if codeCtx == nil || codeCtx.Source == "" {
		return ""
	}
	best := ""
	bestScore := 0
	for _, tok := range identifierTokens(codeCtx.Source) {
		if tok == name {
			continue
		}
		score := commonPrefixLen(tok, name)
		if score > bestScore || (score == bestScore && best != "" && tok < best) {
			best, bestScore = tok, score
		}
	}
	// Require a meaningful prefix, not a coincidental first letter.
	if bestScore < 2 || bestScore*2 < len(name) {
		return ""
	}
	return best
}

var identTokenRe = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)

func identifierTokens(source string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range identTokenRe.FindAllString(source, -1) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
