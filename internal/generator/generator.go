// File: internal/generator/generator.go
// Description: The candidate generator. Runs four independent strategies per
// defect, validates every candidate against a scratch application, and ranks
// the survivors. One failing strategy never blocks the others, and the
// result is never empty.
package generator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

// Generator produces validated, ranked candidate solutions for one defect.
type Generator struct {
	cfg       config.GeneratorConfig
	logger    *zap.Logger
	mapper    schemas.TransformationMapper
	applier   schemas.TransformationApplier
	validator schemas.SemanticValidator
	llm       schemas.LLMClient

	idSeq atomic.Uint64
}

// New builds a generator. The llm client may be nil, which disables the
// LLM-assisted strategy in favor of the rule table.
func New(cfg config.GeneratorConfig, mapper schemas.TransformationMapper, applier schemas.TransformationApplier, validator schemas.SemanticValidator, llm schemas.LLMClient, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:       cfg,
		logger:    logger.Named("generator"),
		mapper:    mapper,
		applier:   applier,
		validator: validator,
		llm:       llm,
	}
}

// GenerateSolutions runs every strategy for the defect and returns the
// validated, filtered, ranked candidate list. The first element is the
// preferred candidate. The list is never empty: when everything else fails a
// generic fallback fix survives.
func (g *Generator) GenerateSolutions(ctx context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution {
	baseline := g.baselineReport(ctx, codeCtx)

	var candidates []schemas.CorrectionSolution
	strategies := []struct {
		name string
		run  func(context.Context) []schemas.CorrectionSolution
	}{
		{"direct-fix", func(c context.Context) []schemas.CorrectionSolution { return g.directFix(c, defect, codeCtx) }},
		{"alternative", func(c context.Context) []schemas.CorrectionSolution { return g.alternatives(c, defect, codeCtx) }},
		{"refactoring", func(c context.Context) []schemas.CorrectionSolution { return g.refactoring(defect, codeCtx) }},
		{"contextual", func(c context.Context) []schemas.CorrectionSolution { return g.contextual(defect, codeCtx) }},
	}

	for _, strat := range strategies {
		sols := g.runStrategy(ctx, strat.name, strat.run)
		candidates = append(candidates, sols...)
	}

	for i := range candidates {
		g.assignID(&candidates[i])
		g.validateCandidate(ctx, codeCtx, baseline, &candidates[i])
	}

	ranked := g.rank(g.filter(candidates))
	if len(ranked) > g.cfg.MaxSolutionsPerError {
		ranked = ranked[:g.cfg.MaxSolutionsPerError]
	}
	if len(ranked) == 0 {
		fallback := g.fallbackSolution(defect)
		g.assignID(&fallback)
		g.validateCandidate(ctx, codeCtx, baseline, &fallback)
		ranked = []schemas.CorrectionSolution{fallback}
	}

	g.logger.Debug("Generated solutions",
		zap.String("defect_kind", string(defect.Kind)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)))
	return ranked
}

// runStrategy wraps one strategy with its own timeout and panic guard. A
// failing strategy contributes nothing; it never takes the others down.
func (g *Generator) runStrategy(ctx context.Context, name string, run func(context.Context) []schemas.CorrectionSolution) (out []schemas.CorrectionSolution) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("Strategy panicked; contributing no candidates",
				zap.String("strategy", name), zap.Any("panic", r))
			out = nil
		}
	}()

	var (
		sctx   = ctx
		cancel context.CancelFunc
	)
	if g.cfg.TimeoutPerSolution > 0 {
		sctx, cancel = context.WithTimeout(ctx, g.cfg.TimeoutPerSolution)
		defer cancel()
	}

	start := time.Now()
	out = run(sctx)
	for i := range out {
		out[i].Confidence = clampConfidence(out[i].Confidence)
		out[i].Metadata.GenerationDur = time.Since(start)
	}
	return out
}

// directFix delegates to the transformation mapper; when the mapper offers
// nothing, it synthesizes the guaranteed generic fallback.
func (g *Generator) directFix(ctx context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution {
	mapped, err := g.mapper.Map(ctx, defect, codeCtx)
	if err != nil {
		g.logger.Warn("Transformation mapper failed", zap.Error(err))
	}
	if len(mapped) == 0 {
		return []schemas.CorrectionSolution{g.fallbackSolution(defect)}
	}

	out := make([]schemas.CorrectionSolution, 0, len(mapped))
	for _, cand := range mapped {
		out = append(out, schemas.CorrectionSolution{
			Description:    cand.Description,
			Type:           schemas.SolutionDirectFix,
			Confidence:     cand.Confidence,
			Priority:       schemas.PriorityFor(schemas.SolutionDirectFix),
			Transformation: cand.Transformation,
			Impact: schemas.ImpactAnalysis{
				LinesAffected:     len(cand.Transformation.Edits),
				PerformanceImpact: schemas.ImpactNeutral,
				ReadabilityImpact: schemas.ImpactNeutral,
			},
			Metadata: schemas.SolutionMetadata{Strategy: "mapper:direct-fix"},
		})
	}
	return out
}

// alternatives prefers the LLM strategy when enabled and falls back to the
// rule table on any failure.
func (g *Generator) alternatives(ctx context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution {
	if g.cfg.UseLLM && g.llm != nil {
		sols, err := g.llmAlternatives(ctx, defect, codeCtx)
		if err == nil {
			return sols
		}
		g.logger.Warn("LLM alternatives unavailable; using rule table", zap.Error(err))
	}
	return tableSolutions(defect, codeCtx, g.cfg.KnownModules, schemas.SolutionAlternativeApproach)
}

// refactoring detects extraction opportunities: a defect buried inside a
// nested scope suggests the surrounding block has grown past its usefulness.
func (g *Generator) refactoring(defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution {
	if codeCtx == nil || len(codeCtx.ScopeChain) < 2 {
		return nil
	}
	if defect.Kind != schemas.DefectNameResolution && defect.Kind != schemas.DefectSemantic {
		return nil
	}

	scope := codeCtx.ScopeChain[len(codeCtx.ScopeChain)-1]
	return []schemas.CorrectionSolution{{
		Description: fmt.Sprintf("Extract the block around line %d out of %s into its own function", defect.Location.Line, scope),
		Type:        schemas.SolutionFunctionExtraction,
		Confidence:  0.6,
		Priority:    schemas.PriorityFor(schemas.SolutionFunctionExtraction),
		Transformation: schemas.Transformation{
			Tag: "extract-function",
		},
		Impact: schemas.ImpactAnalysis{
			ScopeChanges:      []string{scope},
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactImproved,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "heuristic:extract-function"},
	}}
}

// contextual runs the import-addition and variable-declaration entries of
// the rule table.
func (g *Generator) contextual(defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution {
	return tableSolutions(defect, codeCtx, g.cfg.KnownModules,
		schemas.SolutionImportAddition, schemas.SolutionVariableDeclaration)
}

// fallbackSolution is the guaranteed last-resort candidate: a generic direct
// fix describing the correction a human would attempt for the defect kind.
func (g *Generator) fallbackSolution(defect schemas.Defect) schemas.CorrectionSolution {
	return schemas.CorrectionSolution{
		Description: fmt.Sprintf("Apply a generic correction for the %s defect at line %d: %s", defect.Kind, defect.Location.Line, defect.Message),
		Type:        schemas.SolutionDirectFix,
		Confidence:  0.6,
		Priority:    schemas.PriorityFor(schemas.SolutionDirectFix),
		Transformation: schemas.Transformation{
			Tag: "generic-fix",
		},
		Impact: schemas.ImpactAnalysis{
			PerformanceImpact: schemas.ImpactNeutral,
			ReadabilityImpact: schemas.ImpactNeutral,
		},
		Metadata: schemas.SolutionMetadata{Strategy: "fallback:generic", FallbackLevel: 1},
	}
}

// baselineReport validates the untouched source once so candidate validation
// can diff error sets before and after.
func (g *Generator) baselineReport(ctx context.Context, codeCtx *schemas.CodeContext) *schemas.ValidationReport {
	if codeCtx == nil {
		return &schemas.ValidationReport{Success: true}
	}
	report, err := g.validator.Validate(ctx, codeCtx.Source)
	if err != nil || report == nil {
		g.logger.Warn("Baseline validation failed", zap.Error(err))
		return &schemas.ValidationReport{Success: false}
	}
	return report
}

// validateCandidate applies the candidate's transformation to a scratch copy
// of the source and fills in its validation verdict. Apply or validate
// failures are this candidate's problem only.
func (g *Generator) validateCandidate(ctx context.Context, codeCtx *schemas.CodeContext, baseline *schemas.ValidationReport, sol *schemas.CorrectionSolution) {
	start := time.Now()
	defer func() {
		sol.Metadata.ValidationDur = time.Since(start)
	}()

	source := ""
	if codeCtx != nil {
		source = codeCtx.Source
	}

	vctx := ctx
	if g.cfg.TimeoutPerSolution > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, g.cfg.TimeoutPerSolution)
		defer cancel()
	}

	applied, err := g.applier.Apply(vctx, source, []schemas.Transformation{sol.Transformation})
	if err != nil {
		sol.Validation = schemas.SolutionValidation{SyntaxValid: false}
		return
	}
	sol.Validation.SyntaxValid = true

	report, err := g.validator.Validate(vctx, applied.GeneratedCode)
	if err != nil || report == nil {
		sol.Validation.SemanticsValid = false
		return
	}

	sol.Validation.SemanticsValid = report.Success
	sol.Validation.GrammarCompliant = !hasSyntaxDefect(report.Defects)
	resolved, introduced := diffDefects(baseline.Defects, report.Defects)
	sol.Validation.ErrorsResolved = resolved
	sol.Validation.ErrorsIntroduced = introduced
	if extra := len(report.Warnings) - len(baseline.Warnings); extra > 0 {
		sol.Validation.WarningsIntroduced = extra
	}
}

// filter keeps candidates at or above the confidence threshold.
func (g *Generator) filter(candidates []schemas.CorrectionSolution) []schemas.CorrectionSolution {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= g.cfg.ConfidenceThreshold {
			out = append(out, c)
		}
	}
	return out
}

// rank sorts candidates by the four-level comparison: confidence descending
// with a tie band, then priority, then validation score, then impact.
func (g *Generator) rank(candidates []schemas.CorrectionSolution) []schemas.CorrectionSolution {
	band := g.cfg.ConfidenceTieBand
	sort.SliceStable(candidates, func(i, j int) bool {
		return solutionLess(&candidates[i], &candidates[j], band)
	})
	return candidates
}

// solutionLess is the authoritative candidate ordering. Confidences within
// the tie band are treated as equal, deferring to priority.
func solutionLess(a, b *schemas.CorrectionSolution, tieBand float64) bool {
	if math.Abs(a.Confidence-b.Confidence) > tieBand {
		return a.Confidence > b.Confidence
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if va, vb := a.Validation.Score(), b.Validation.Score(); va != vb {
		return va > vb
	}
	if ia, ib := a.Impact.Score(), b.Impact.Score(); ia != ib {
		return ia < ib
	}
	return a.ID < b.ID
}

// assignID stamps the next monotonic solution id.
func (g *Generator) assignID(sol *schemas.CorrectionSolution) {
	sol.ID = fmt.Sprintf("sol-%06d", g.idSeq.Add(1))
}

func hasSyntaxDefect(defects []schemas.Defect) bool {
	for _, d := range defects {
		if d.Kind == schemas.DefectSyntax {
			return true
		}
	}
	return false
}

// diffDefects compares error sets by (kind, message, line) identity.
func diffDefects(before, after []schemas.Defect) (resolved, introduced int) {
	type key struct {
		kind schemas.DefectKind
		msg  string
		line int
	}
	id := func(d schemas.Defect) key { return key{d.Kind, d.Message, d.Location.Line} }

	beforeSet := make(map[key]int, len(before))
	for _, d := range before {
		beforeSet[id(d)]++
	}
	afterSet := make(map[key]int, len(after))
	for _, d := range after {
		afterSet[id(d)]++
	}

	for k, n := range beforeSet {
		if m := afterSet[k]; m < n {
			resolved += n - m
		}
	}
	for k, n := range afterSet {
		if m := beforeSet[k]; m < n {
			introduced += n - m
		}
	}
	return resolved, introduced
}
