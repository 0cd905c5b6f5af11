// File: internal/generator/llm.go
// Description: The LLM-assisted alternative-approach strategy. Best effort
// only; any call or parse failure falls back to the rule table.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/llmutil"
)

const alternativeSystemPrompt = `You are a code correction assistant. Given a defect in a piece of source code, propose between 3 and 5 alternative fixes.
Respond ONLY with a JSON array. Each element must be an object with exactly these keys:
"description" (string), "approach" (string), "codeChange" (string, the full replacement for the defective line), "confidence" (number between 0 and 1), "reasoning" (string).`

// llmAlternative mirrors one element of the model's JSON answer.
type llmAlternative struct {
	Description string  `json:"description"`
	Approach    string  `json:"approach"`
	CodeChange  string  `json:"codeChange"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// llmAlternatives asks the model for structured alternatives and maps them to
// candidate solutions. Returns an error on any call or parse failure; the
// caller substitutes the rule table.
func (g *Generator) llmAlternatives(ctx context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) ([]schemas.CorrectionSolution, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("no llm client configured")
	}

	raw, err := g.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: alternativeSystemPrompt,
		UserPrompt:   buildAlternativePrompt(defect, codeCtx),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.4,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm generation: %w", err)
	}

	parsed, err := llmutil.ParseJSONResponse[[]llmAlternative](raw)
	if err != nil {
		return nil, fmt.Errorf("parsing llm alternatives: %w", err)
	}

	var out []schemas.CorrectionSolution
	for _, alt := range *parsed {
		if strings.TrimSpace(alt.CodeChange) == "" {
			continue
		}
		desc := alt.Description
		if desc == "" {
			desc = alt.Approach
		}
		out = append(out, schemas.CorrectionSolution{
			Description: desc,
			Type:        schemas.SolutionAlternativeApproach,
			Confidence:  clampConfidence(alt.Confidence),
			Priority:    schemas.PriorityFor(schemas.SolutionAlternativeApproach),
			Transformation: schemas.Transformation{
				Tag: "llm-alternative",
				Edits: []schemas.Edit{{
					Kind:    schemas.EditReplaceLine,
					Line:    defect.Location.Line,
					Content: llmutil.CleanCodeOutput(alt.CodeChange),
				}},
			},
			Impact: schemas.ImpactAnalysis{
				LinesAffected:     1,
				PerformanceImpact: schemas.ImpactNeutral,
				ReadabilityImpact: schemas.ImpactNeutral,
			},
			Metadata: schemas.SolutionMetadata{Strategy: "llm:alternative"},
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("llm returned no usable alternatives")
	}
	return out, nil
}

// buildAlternativePrompt renders the defect and its surroundings for the
// model. The snippet is bounded so a pathological file can not blow up the
// request.
func buildAlternativePrompt(defect schemas.Defect, codeCtx *schemas.CodeContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Defect kind: %s\n", defect.Kind)
	fmt.Fprintf(&b, "Message: %s\n", defect.Message)
	fmt.Fprintf(&b, "Location: line %d, column %d\n", defect.Location.Line, defect.Location.Column)

	if line := sourceLine(codeCtx, defect.Location.Line); line != "" {
		fmt.Fprintf(&b, "Defective line: %s\n", line)
	}
	if codeCtx != nil {
		if len(codeCtx.ScopeChain) > 0 {
			fmt.Fprintf(&b, "Enclosing scopes: %s\n", strings.Join(codeCtx.ScopeChain, " > "))
		}
		if codeCtx.Source != "" {
			fmt.Fprintf(&b, "Source:\n%s\n", llmutil.Truncate(codeCtx.Source, 4000))
		}
	}
	return b.String()
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
