// File: api/schemas/interfaces.go
package schemas

import "context"

// -- External collaborator contracts --
//
// The correction core consumes these four services but owns none of them.
// Reference implementations live under internal/analysis and
// internal/llmclient; tests substitute mocks.

// TransformationCandidate is one ranked fix proposal from the mapper.
type TransformationCandidate struct {
	Description    string         `json:"description"`
	Confidence     float64        `json:"confidence"`
	Tag            string         `json:"tag"`
	Transformation Transformation `json:"transformation"`
}

// TransformationMapper proposes concrete tree transformations for a defect,
// ranked by confidence. An empty result is a valid answer.
type TransformationMapper interface {
	Map(ctx context.Context, defect Defect, codeCtx *CodeContext) ([]TransformationCandidate, error)
}

// ValidationReport is the validator's verdict on one source snapshot. The
// Context carries the parsed tree so downstream feature extraction never
// re-parses.
type ValidationReport struct {
	Success  bool
	Defects  []Defect
	Warnings []Warning
	Context  *CodeContext
}

// SemanticValidator parses and validates source text, reporting every defect
// it can find.
type SemanticValidator interface {
	Validate(ctx context.Context, source string) (*ValidationReport, error)
}

// ApplyResult is the applier's output: the regenerated source plus its
// re-parsed tree.
type ApplyResult struct {
	GeneratedCode string
	Root          Node
}

// TransformationApplier rewrites source text according to a set of
// transformations. It may fail on malformed input; callers must treat a
// failure as that candidate's problem, never as a fatal error.
type TransformationApplier interface {
	Apply(ctx context.Context, source string, transformations []Transformation) (*ApplyResult, error)
}

// -- LLM client --

// ModelTier selects a model by a speed/capability preference rather than by
// name, so callers stay provider-agnostic.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes a single completion request.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float32 `json:"top_p,omitempty"`
	TopK            int     `json:"top_k,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
}

// GenerationRequest is a complete prompt for the LLM collaborator.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the completion service used by the alternative-approach
// strategy. It is best effort: rate limiting and retries live behind this
// interface, not in the decision core.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
