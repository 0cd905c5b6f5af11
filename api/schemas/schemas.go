// File: api/schemas/schemas.go
// Description: Shared data model for the correction core. Every package in the
// pipeline speaks these types; nothing here carries behavior beyond small
// derived-value helpers.
package schemas

import (
	"encoding/json"
	"time"
)

// -- Defects --

// DefectKind categorizes a detected code problem. The generator's strategy
// table is keyed by this enum.
type DefectKind string

const (
	DefectSyntax         DefectKind = "syntax"
	DefectNameResolution DefectKind = "name-resolution"
	DefectType           DefectKind = "type"
	DefectImport         DefectKind = "import"
	DefectSemantic       DefectKind = "semantic"
	DefectControlFlow    DefectKind = "control-flow"
	DefectUnknown        DefectKind = "unknown"
)

// Severity indicates how serious a defect is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SourceLocation is a 1-based position in the source text.
type SourceLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Defect is a structured description of one detected code problem. It is
// reported by the semantic validator and never mutated afterwards.
type Defect struct {
	Kind         DefectKind     `json:"kind"`
	Message      string         `json:"message"`
	Location     SourceLocation `json:"location"`
	Severity     Severity       `json:"severity"`
	ContextLines []string       `json:"context_lines,omitempty"`
}

// Warning is a non-blocking diagnostic from the validator.
type Warning struct {
	Message  string         `json:"message"`
	Location SourceLocation `json:"location"`
}

// -- Parsed code context --

// Node is a minimal navigable view over a parsed syntax tree. Implementations
// must expose parents as traversal-only back references (an index or id
// lookup, never an owning pointer), so walking upward can not create cycles.
type Node interface {
	// Kind returns the node type name (e.g. "function_definition").
	Kind() string
	// Parent returns the enclosing node, or nil at the root.
	Parent() Node
	// ChildCount returns the number of named children.
	ChildCount() int
	// Child returns the i-th named child, or nil if out of range.
	Child(i int) Node
	// StartLine and EndLine bound the node's source span, 1-based inclusive.
	StartLine() int
	EndLine() int
}

// CodeContext bundles everything the correction core knows about the source
// surrounding a defect. The Analysis map carries analyzer-specific state
// (type environment, control-flow facts) that this core treats as opaque.
type CodeContext struct {
	Source     string
	Root       Node
	ScopeChain []string
	Analysis   map[string]json.RawMessage
}

// -- Code patterns --

// StructuralFeature describes one ancestor of the defect node: its type, its
// depth in the tree, and its position relative to the defect (0 = the defect's
// own enclosing node, increasing as we walk toward the root).
type StructuralFeature struct {
	Kind     string `json:"kind"`
	Depth    int    `json:"depth"`
	Position int    `json:"position"`
}

// ContextFeature projects one entry of the scope chain into a comparable
// (kind, value) pair with a relevance weight.
type ContextFeature struct {
	Kind      string  `json:"kind"`
	Value     string  `json:"value"`
	Relevance float64 `json:"relevance"`
}

// CodePattern is a normalized, comparable fingerprint of the code around a
// defect. It is produced fresh per extraction and never mutated.
type CodePattern struct {
	Syntactic  string              `json:"syntactic"`
	Semantic   string              `json:"semantic"`
	Structural []StructuralFeature `json:"structural"`
	Contextual []ContextFeature    `json:"contextual"`
	Signature  string              `json:"signature"`
	Complexity int                 `json:"complexity"`
}

// -- Correction solutions --

// SolutionType identifies the shape of a candidate fix.
type SolutionType string

const (
	SolutionDirectFix           SolutionType = "DIRECT_FIX"
	SolutionAlternativeApproach SolutionType = "ALTERNATIVE_APPROACH"
	SolutionRefactoring         SolutionType = "REFACTORING"
	SolutionImportAddition      SolutionType = "IMPORT_ADDITION"
	SolutionVariableDeclaration SolutionType = "VARIABLE_DECLARATION"
	SolutionFunctionExtraction  SolutionType = "FUNCTION_EXTRACTION"
	SolutionContextAdjustment   SolutionType = "CONTEXT_ADJUSTMENT"
)

// PriorityFor returns the authoritative priority for a solution type
// (1 = highest). Strategies must not invent their own numbers; this table is
// the single source of truth.
func PriorityFor(t SolutionType) int {
	switch t {
	case SolutionDirectFix:
		return 1
	case SolutionAlternativeApproach, SolutionImportAddition:
		return 2
	case SolutionVariableDeclaration, SolutionRefactoring, SolutionFunctionExtraction:
		return 3
	case SolutionContextAdjustment:
		return 4
	default:
		return 5
	}
}

// EditKind names a primitive source mutation understood by the applier.
type EditKind string

const (
	EditReplaceLine EditKind = "replace-line"
	EditInsertLine  EditKind = "insert-line"
	EditDeleteLine  EditKind = "delete-line"
)

// Edit is one primitive mutation. Line is 1-based; for inserts the content is
// placed before the given line.
type Edit struct {
	Kind    EditKind `json:"kind"`
	Line    int      `json:"line"`
	Content string   `json:"content,omitempty"`
}

// Transformation is the payload a solution hands to the transformation
// applier. The decision core never interprets it beyond ordering edits by
// line; Extra carries mapper-specific data opaque to everyone else.
type Transformation struct {
	Tag   string          `json:"tag"`
	Edits []Edit          `json:"edits"`
	Extra json.RawMessage `json:"extra,omitempty"`
}

// TopLine returns the smallest line touched by the transformation, or 0 when
// it carries no edits. The orchestrator applies solutions in descending
// TopLine order so earlier edits can not invalidate later locations.
func (t Transformation) TopLine() int {
	top := 0
	for _, e := range t.Edits {
		if top == 0 || e.Line < top {
			top = e.Line
		}
	}
	return top
}

// ImpactRating is a tri-state assessment of a side effect dimension.
type ImpactRating string

const (
	ImpactPositive ImpactRating = "positive"
	ImpactNeutral  ImpactRating = "neutral"
	ImpactNegative ImpactRating = "negative"
	ImpactImproved ImpactRating = "improved"
	ImpactDegraded ImpactRating = "degraded"
)

// ImpactAnalysis estimates the blast radius of applying a solution.
type ImpactAnalysis struct {
	LinesAffected        int          `json:"lines_affected"`
	ScopeChanges         []string     `json:"scope_changes,omitempty"`
	PotentialSideEffects []string     `json:"potential_side_effects,omitempty"`
	BreakingChanges      bool         `json:"breaking_changes"`
	PerformanceImpact    ImpactRating `json:"performance_impact"`
	ReadabilityImpact    ImpactRating `json:"readability_impact"`
}

// Score condenses the analysis into a single penalty number; lower is better.
func (ia ImpactAnalysis) Score() int {
	score := ia.LinesAffected + 2*len(ia.ScopeChanges) + 3*len(ia.PotentialSideEffects)
	if ia.BreakingChanges {
		score += 10
	}
	if ia.PerformanceImpact == ImpactNegative || ia.PerformanceImpact == ImpactDegraded {
		score += 5
	}
	if ia.ReadabilityImpact == ImpactNegative || ia.ReadabilityImpact == ImpactDegraded {
		score += 3
	}
	return score
}

// SolutionValidation records what happened when the candidate's
// transformation was applied to a scratch copy and re-validated.
type SolutionValidation struct {
	SyntaxValid        bool `json:"syntax_valid"`
	SemanticsValid     bool `json:"semantics_valid"`
	GrammarCompliant   bool `json:"grammar_compliant"`
	TestsPassing       bool `json:"tests_passing"`
	WarningsIntroduced int  `json:"warnings_introduced"`
	ErrorsResolved     int  `json:"errors_resolved"`
	ErrorsIntroduced   int  `json:"errors_introduced"`
}

// Score condenses validation results into a single number; higher is better.
func (sv SolutionValidation) Score() int {
	score := 0
	if sv.SyntaxValid {
		score += 10
	}
	if sv.SemanticsValid {
		score += 10
	}
	if sv.GrammarCompliant {
		score += 5
	}
	if sv.TestsPassing {
		score += 5
	}
	score += 3 * sv.ErrorsResolved
	score -= 5 * sv.ErrorsIntroduced
	score -= sv.WarningsIntroduced
	return score
}

// SolutionMetadata captures provenance and timing for a candidate.
type SolutionMetadata struct {
	Strategy      string        `json:"strategy"`
	GenerationDur time.Duration `json:"generation_dur"`
	ValidationDur time.Duration `json:"validation_dur"`
	FallbackLevel int           `json:"fallback_level"`
}

// CorrectionSolution is one candidate fix. It is created by the generator,
// validated once, and then read-only until discarded after selection.
type CorrectionSolution struct {
	ID             string             `json:"id"`
	Description    string             `json:"description"`
	Type           SolutionType       `json:"type"`
	Confidence     float64            `json:"confidence"`
	Priority       int                `json:"priority"`
	Transformation Transformation     `json:"transformation"`
	Impact         ImpactAnalysis     `json:"impact"`
	Validation     SolutionValidation `json:"validation"`
	Metadata       SolutionMetadata   `json:"metadata"`
}

// -- Learned patterns --

// SolutionPattern aggregates how one solution type has performed against a
// particular error pattern. SuccessRate and AverageConfidence are exponential
// moving averages aged by the learner.
type SolutionPattern struct {
	Type                SolutionType `json:"type"`
	TransformationTag   string       `json:"transformation_tag,omitempty"`
	SuccessRate         float64      `json:"success_rate"`
	AverageConfidence   float64      `json:"average_confidence"`
	ContextRequirements []string     `json:"context_requirements,omitempty"`
	SideEffects         []string     `json:"side_effects,omitempty"`
	PerformanceImpact   float64      `json:"performance_impact"`
}

// CorrectionOutcome is the feedback signal closing the learning loop: what
// happened after a solution was applied.
type CorrectionOutcome struct {
	Timestamp        time.Time     `json:"timestamp"`
	Success          bool          `json:"success"`
	UserSatisfaction int           `json:"user_satisfaction,omitempty"`
	TimeToFix        time.Duration `json:"time_to_fix,omitempty"`
	SubsequentErrors int           `json:"subsequent_errors,omitempty"`
	Feedback         string        `json:"feedback,omitempty"`
}

// ErrorPattern is a learned, persistent record linking a defect fingerprint
// to the solution types that have (and have not) fixed it historically. It is
// owned exclusively by the pattern store; nobody else mutates one.
type ErrorPattern struct {
	ID                  string              `json:"id"`
	Kind                DefectKind          `json:"kind"`
	ContextPattern      CodePattern         `json:"context_pattern"`
	Frequency           int                 `json:"frequency"`
	Confidence          float64             `json:"confidence"`
	LastSeen            time.Time           `json:"last_seen"`
	SuccessfulSolutions []SolutionPattern   `json:"successful_solutions,omitempty"`
	FailedSolutions     []SolutionPattern   `json:"failed_solutions,omitempty"`
	Outcomes            []CorrectionOutcome `json:"outcomes,omitempty"`
}

// -- Persistence snapshot --

// SnapshotEntry pairs a pattern id with its pattern, preserving a stable
// export order.
type SnapshotEntry struct {
	ID      string       `json:"id"`
	Pattern ErrorPattern `json:"pattern"`
}

// StoreMetrics summarizes the learner's lifetime activity.
type StoreMetrics struct {
	TotalCorrections      int `json:"total_corrections"`
	SuccessfulCorrections int `json:"successful_corrections"`
	PatternsCreated       int `json:"patterns_created"`
	PatternsPruned        int `json:"patterns_pruned"`
}

// Snapshot is the one persistence contract of the core: a single
// JSON-serializable document with no schema version beyond structural
// compatibility.
type Snapshot struct {
	Patterns       []SnapshotEntry     `json:"patterns"`
	Config         LearningConfig      `json:"config"`
	Metrics        StoreMetrics        `json:"metrics"`
	RecentOutcomes []CorrectionOutcome `json:"recent_outcomes,omitempty"`
}

// LearningConfig is embedded in snapshots so an imported store behaves like
// the one that exported it.
type LearningConfig struct {
	LearningRate               float64 `json:"learning_rate"`
	DecayRate                  float64 `json:"decay_rate"`
	MinimumOccurrences         int     `json:"minimum_occurrences"`
	MaxPatternsPerErrorType    int     `json:"max_patterns_per_error_type"`
	PatternExtractionThreshold float64 `json:"pattern_extraction_threshold"`
	NoMatchDampening           float64 `json:"no_match_dampening"`
}

// -- Correction run results --

// RunState names the terminal state of a correction run.
type RunState string

const (
	StateClean        RunState = "clean"
	StateStalled      RunState = "stalled"
	StateTimedOut     RunState = "timed-out"
	StateIterationCap RunState = "iteration-cap"
)

// AppliedSolution records one solution the orchestrator applied, the defect
// that prompted it, and whether that defect disappeared on re-validation.
type AppliedSolution struct {
	Solution  CorrectionSolution `json:"solution"`
	Defect    Defect             `json:"defect"`
	Iteration int                `json:"iteration"`
	Resolved  bool               `json:"resolved"`
}

// RunMetrics captures per-run accounting for reporting.
type RunMetrics struct {
	RunID           string        `json:"run_id"`
	Iterations      int           `json:"iterations"`
	Duration        time.Duration `json:"duration"`
	TerminalState   RunState      `json:"terminal_state"`
	DefectsAtStart  int           `json:"defects_at_start"`
	DefectsResolved int           `json:"defects_resolved"`
}

// CorrectionResult is the top-level answer of the pipeline. Success means the
// final code validated with zero remaining defects.
type CorrectionResult struct {
	Success          bool              `json:"success"`
	FinalCode        string            `json:"final_code"`
	AppliedSolutions []AppliedSolution `json:"applied_solutions"`
	RemainingDefects []Defect          `json:"remaining_defects"`
	Metrics          RunMetrics        `json:"metrics"`
}

// -- Trend analysis --

// SolutionTypeTrend reports the learned performance of one solution type.
type SolutionTypeTrend struct {
	Type              SolutionType `json:"type"`
	SuccessRate       float64      `json:"success_rate"`
	AverageConfidence float64      `json:"average_confidence"`
	Observations      int          `json:"observations"`
}

// TrendReport summarizes the current learned state of the pattern store.
type TrendReport struct {
	TotalPatterns      int                `json:"total_patterns"`
	PatternsByKind     map[DefectKind]int `json:"patterns_by_kind"`
	RecentSuccessRatio float64            `json:"recent_success_ratio"`
	TopSolutionTypes   []SolutionTypeTrend `json:"top_solution_types"`
	Metrics            StoreMetrics       `json:"metrics"`
}
