// File: internal/orchestrator/orchestrator.go
// Description: The fixed-point correction loop: validate, generate, select,
// apply, re-validate, learn, repeat. Bounded by iteration count and a
// wall-clock deadline. Never returns an error to the caller; the worst
// outcome is an unsuccessful result carrying the remaining defects.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
	"github.com/xkilldash9x/remend/internal/selector"
)

// SolutionGenerator produces ranked candidate solutions for one defect.
type SolutionGenerator interface {
	GenerateSolutions(ctx context.Context, defect schemas.Defect, codeCtx *schemas.CodeContext) []schemas.CorrectionSolution
}

// SolutionSelector picks one candidate, or the no-selection sentinel.
type SolutionSelector interface {
	SelectBestSolution(candidates []schemas.CorrectionSolution, defect schemas.Defect, codeCtx *schemas.CodeContext) selector.Selection
}

// Learner closes the feedback loop after each application.
type Learner interface {
	LearnFromCorrection(defect schemas.Defect, codeCtx *schemas.CodeContext, applied schemas.CorrectionSolution, outcome schemas.CorrectionOutcome)
}

// Orchestrator drives a full correction run.
type Orchestrator struct {
	cfg       config.CorrectionConfig
	logger    *zap.Logger
	validator schemas.SemanticValidator
	applier   schemas.TransformationApplier
	generator SolutionGenerator
	selector  SolutionSelector
	learner   Learner
	now       func() time.Time
}

// New wires the orchestrator to its collaborators.
func New(cfg config.CorrectionConfig, validator schemas.SemanticValidator, applier schemas.TransformationApplier, gen SolutionGenerator, sel SolutionSelector, learner Learner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		validator: validator,
		applier:   applier,
		generator: gen,
		selector:  sel,
		learner:   learner,
		now:       time.Now,
	}
}

// pick pairs one defect with the solution selected for it.
type pick struct {
	defect   schemas.Defect
	solution schemas.CorrectionSolution
}

// Correct runs the loop to a terminal state and reports what happened.
func (o *Orchestrator) Correct(ctx context.Context, source string) *schemas.CorrectionResult {
	runID := uuid.NewString()
	start := o.now()
	logger := o.logger.With(zap.String("run_id", runID))

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	current := source
	state := schemas.StateClean
	defectsAtStart := -1
	var applied []schemas.AppliedSolution
	var report *schemas.ValidationReport
	iterations := 0

	for iteration := 1; ; iteration++ {
		if iteration > o.cfg.MaxIterations {
			state = schemas.StateIterationCap
			break
		}
		if ctx.Err() != nil {
			state = schemas.StateTimedOut
			break
		}
		iterations = iteration

		// Reuse the post-apply report from the previous iteration when we
		// have one; otherwise validate fresh.
		if report == nil {
			report = o.validate(ctx, current)
		}
		if defectsAtStart < 0 {
			defectsAtStart = len(report.Defects)
		}
		if len(report.Defects) == 0 {
			state = schemas.StateClean
			break
		}

		codeCtx := o.snapshotContext(current, report)
		picks := o.generateAndSelect(ctx, logger, report.Defects, codeCtx)
		if len(picks) == 0 {
			state = schemas.StateStalled
			break
		}
		if ctx.Err() != nil {
			state = schemas.StateTimedOut
			break
		}

		var appliedPicks []pick
		current, appliedPicks = o.applyPicks(ctx, logger, current, picks)

		after := o.validate(ctx, current)
		for _, p := range appliedPicks {
			resolved := !defectStillPresent(after.Defects, p.defect)
			applied = append(applied, schemas.AppliedSolution{
				Solution:  p.solution,
				Defect:    p.defect,
				Iteration: iteration,
				Resolved:  resolved,
			})
			o.learner.LearnFromCorrection(p.defect, codeCtx, p.solution, schemas.CorrectionOutcome{
				Timestamp: o.now(),
				Success:   resolved,
			})
		}
		report = after
	}

	if report == nil {
		report = o.validate(ctx, current)
	}
	if defectsAtStart < 0 {
		defectsAtStart = len(report.Defects)
	}

	resolvedCount := defectsAtStart - len(report.Defects)
	if resolvedCount < 0 {
		resolvedCount = 0
	}

	result := &schemas.CorrectionResult{
		Success:          len(report.Defects) == 0,
		FinalCode:        current,
		AppliedSolutions: applied,
		RemainingDefects: report.Defects,
		Metrics: schemas.RunMetrics{
			RunID:           runID,
			Iterations:      iterations,
			Duration:        o.now().Sub(start),
			TerminalState:   state,
			DefectsAtStart:  defectsAtStart,
			DefectsResolved: resolvedCount,
		},
	}

	logger.Info("Correction run finished",
		zap.String("state", string(state)),
		zap.Int("iterations", iterations),
		zap.Int("remaining_defects", len(report.Defects)),
		zap.Bool("success", result.Success))
	return result
}

// generateAndSelect fans out candidate generation across the iteration's
// defects. Every defect works on the same immutable pre-iteration snapshot,
// so the workers share nothing mutable.
func (o *Orchestrator) generateAndSelect(ctx context.Context, logger *zap.Logger, defects []schemas.Defect, codeCtx *schemas.CodeContext) []pick {
	selections := make([]selector.Selection, len(defects))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.GenerationParallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, defect := range defects {
		i, defect := i, defect
		g.Go(func() error {
			candidates := o.generator.GenerateSolutions(gctx, defect, codeCtx)
			selections[i] = o.selector.SelectBestSolution(candidates, defect, codeCtx)
			return nil
		})
	}
	// Workers never return errors; failures surface as empty selections.
	_ = g.Wait()

	var picks []pick
	for i, sel := range selections {
		if sel.Selected == nil {
			logger.Debug("No selection for defect",
				zap.String("kind", string(defects[i].Kind)),
				zap.Int("line", defects[i].Location.Line))
			continue
		}
		picks = append(picks, pick{defect: defects[i], solution: *sel.Selected})
	}
	return picks
}

// applyPicks applies the iteration's selections in one pass, ordered by
// descending top line so earlier edits can not invalidate later locations.
// Individual application failures are skipped, never fatal.
func (o *Orchestrator) applyPicks(ctx context.Context, logger *zap.Logger, source string, picks []pick) (string, []pick) {
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].solution.Transformation.TopLine() > picks[j].solution.Transformation.TopLine()
	})

	current := source
	var appliedPicks []pick
	for _, p := range picks {
		res, err := o.applier.Apply(ctx, current, []schemas.Transformation{p.solution.Transformation})
		if err != nil {
			logger.Warn("Application failed; skipping solution",
				zap.String("solution_id", p.solution.ID),
				zap.Error(err))
			continue
		}
		current = res.GeneratedCode
		appliedPicks = append(appliedPicks, p)
	}
	return current, appliedPicks
}

// validate never fails: a validator error degrades to a report carrying one
// unknown-kind defect so the loop terminates through its normal states.
func (o *Orchestrator) validate(ctx context.Context, source string) *schemas.ValidationReport {
	report, err := o.validator.Validate(ctx, source)
	if err != nil || report == nil {
		o.logger.Warn("Validation unavailable", zap.Error(err))
		return &schemas.ValidationReport{
			Success: false,
			Defects: []schemas.Defect{{
				Kind:     schemas.DefectUnknown,
				Message:  "validation unavailable",
				Severity: schemas.SeverityError,
			}},
		}
	}
	return report
}

// snapshotContext freezes the pre-iteration code context the workers share.
func (o *Orchestrator) snapshotContext(source string, report *schemas.ValidationReport) *schemas.CodeContext {
	if report.Context != nil {
		ctx := *report.Context
		ctx.Source = source
		return &ctx
	}
	return &schemas.CodeContext{Source: source}
}

// defectStillPresent matches on kind and message, not line: applied edits
// shift locations, but a surviving defect keeps its identity.
func defectStillPresent(defects []schemas.Defect, target schemas.Defect) bool {
	for _, d := range defects {
		if d.Kind == target.Kind && d.Message == target.Message {
			return true
		}
	}
	return false
}
