// File: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
	"github.com/xkilldash9x/remend/internal/selector"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- fakes --

// fakeValidator answers from a fixed source-to-report script; unscripted
// sources validate clean.
type fakeValidator struct {
	reports map[string]*schemas.ValidationReport
}

func (v *fakeValidator) Validate(_ context.Context, source string) (*schemas.ValidationReport, error) {
	if r, ok := v.reports[source]; ok {
		return r, nil
	}
	return &schemas.ValidationReport{Success: true}, nil
}

// fakeApplier rewrites sources through a scripted function and records every
// transformation it saw, in order.
type fakeApplier struct {
	mu    sync.Mutex
	calls []schemas.Transformation
	apply func(source string, tr schemas.Transformation) (string, error)
}

func (a *fakeApplier) Apply(_ context.Context, source string, trs []schemas.Transformation) (*schemas.ApplyResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, trs...)
	a.mu.Unlock()

	current := source
	for _, tr := range trs {
		next, err := a.apply(current, tr)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return &schemas.ApplyResult{GeneratedCode: current}, nil
}

type fakeGenerator struct {
	generate func(defect schemas.Defect) []schemas.CorrectionSolution
}

func (g *fakeGenerator) GenerateSolutions(_ context.Context, defect schemas.Defect, _ *schemas.CodeContext) []schemas.CorrectionSolution {
	return g.generate(defect)
}

// firstPickSelector picks the first candidate, mirroring the real selector's
// contract for an already-ranked list.
type firstPickSelector struct{}

func (firstPickSelector) SelectBestSolution(candidates []schemas.CorrectionSolution, _ schemas.Defect, _ *schemas.CodeContext) selector.Selection {
	if len(candidates) == 0 {
		return selector.Selection{Rationale: "no candidates available"}
	}
	return selector.Selection{Selected: &candidates[0]}
}

type recordedOutcome struct {
	defect  schemas.Defect
	outcome schemas.CorrectionOutcome
}

type fakeLearner struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (l *fakeLearner) LearnFromCorrection(defect schemas.Defect, _ *schemas.CodeContext, _ schemas.CorrectionSolution, outcome schemas.CorrectionOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, recordedOutcome{defect: defect, outcome: outcome})
}

func (l *fakeLearner) recorded() []recordedOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedOutcome(nil), l.outcomes...)
}

// -- fixtures --

func testCorrectionConfig() config.CorrectionConfig {
	return config.CorrectionConfig{
		MaxIterations:      5,
		Timeout:            time.Minute,
		GenerationParallel: 2,
	}
}

func defectAt(kind schemas.DefectKind, msg string, line int) schemas.Defect {
	return schemas.Defect{
		Kind:     kind,
		Message:  msg,
		Location: schemas.SourceLocation{Line: line},
		Severity: schemas.SeverityError,
	}
}

func fixSolution(id, tag string, line int) schemas.CorrectionSolution {
	return schemas.CorrectionSolution{
		ID:         id,
		Type:       schemas.SolutionDirectFix,
		Confidence: 0.8,
		Priority:   1,
		Transformation: schemas.Transformation{
			Tag:   tag,
			Edits: []schemas.Edit{{Kind: schemas.EditReplaceLine, Line: line, Content: "fixed"}},
		},
	}
}

func passthroughApplier() *fakeApplier {
	return &fakeApplier{apply: func(source string, _ schemas.Transformation) (string, error) {
		return source, nil
	}}
}

func newOrchestrator(cfg config.CorrectionConfig, v *fakeValidator, a *fakeApplier, g *fakeGenerator, l *fakeLearner) *Orchestrator {
	return New(cfg, v, a, g, firstPickSelector{}, l, zap.NewNop())
}

// -- tests --

func TestCorrect_CleanSourceTerminatesImmediately(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(testCorrectionConfig(),
		&fakeValidator{},
		passthroughApplier(),
		&fakeGenerator{generate: func(schemas.Defect) []schemas.CorrectionSolution {
			t.Error("generator must not run on clean code")
			return nil
		}},
		&fakeLearner{})

	result := o.Correct(context.Background(), "print('hello')")

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, schemas.StateClean, result.Metrics.TerminalState)
	assert.Equal(t, 1, result.Metrics.Iterations)
	assert.Empty(t, result.AppliedSolutions)
	assert.Empty(t, result.RemainingDefects)
	assert.NotEmpty(t, result.Metrics.RunID)
}

func TestCorrect_FixesDefectInOneIteration(t *testing.T) {
	t.Parallel()

	defect := defectAt(schemas.DefectNameResolution, "name 'foo' is not defined", 2)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"broken": {Success: false, Defects: []schemas.Defect{defect}},
	}}
	applier := &fakeApplier{apply: func(string, schemas.Transformation) (string, error) {
		return "repaired", nil
	}}
	gen := &fakeGenerator{generate: func(d schemas.Defect) []schemas.CorrectionSolution {
		return []schemas.CorrectionSolution{fixSolution("sol-000001", "declare", d.Location.Line)}
	}}
	learner := &fakeLearner{}

	o := newOrchestrator(testCorrectionConfig(), validator, applier, gen, learner)
	result := o.Correct(context.Background(), "broken")

	assert.True(t, result.Success)
	assert.Equal(t, schemas.StateClean, result.Metrics.TerminalState)
	assert.Equal(t, "repaired", result.FinalCode)
	assert.Equal(t, 1, result.Metrics.DefectsAtStart)
	assert.Equal(t, 1, result.Metrics.DefectsResolved)

	require.Len(t, result.AppliedSolutions, 1)
	assert.True(t, result.AppliedSolutions[0].Resolved)
	assert.Equal(t, 1, result.AppliedSolutions[0].Iteration)

	outcomes := learner.recorded()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].outcome.Success)
	assert.Equal(t, defect.Message, outcomes[0].defect.Message)
}

func TestCorrect_StallsWhenNothingSelectable(t *testing.T) {
	t.Parallel()

	defect := defectAt(schemas.DefectUnknown, "mystery", 1)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"stuck": {Success: false, Defects: []schemas.Defect{defect}},
	}}
	o := newOrchestrator(testCorrectionConfig(), validator, passthroughApplier(),
		&fakeGenerator{generate: func(schemas.Defect) []schemas.CorrectionSolution { return nil }},
		&fakeLearner{})

	result := o.Correct(context.Background(), "stuck")

	assert.False(t, result.Success)
	assert.Equal(t, schemas.StateStalled, result.Metrics.TerminalState)
	assert.Equal(t, "stuck", result.FinalCode)
	require.Len(t, result.RemainingDefects, 1)
	assert.Equal(t, "mystery", result.RemainingDefects[0].Message)
}

func TestCorrect_IterationCapStopsUnfixableLoop(t *testing.T) {
	t.Parallel()

	defect := defectAt(schemas.DefectSemantic, "always broken", 1)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"stubborn": {Success: false, Defects: []schemas.Defect{defect}},
	}}
	gen := &fakeGenerator{generate: func(d schemas.Defect) []schemas.CorrectionSolution {
		return []schemas.CorrectionSolution{fixSolution("sol-000001", "noop", d.Location.Line)}
	}}
	learner := &fakeLearner{}

	cfg := testCorrectionConfig()
	cfg.MaxIterations = 2

	// The applier "succeeds" but never changes the code, so every
	// re-validation reports the same defect.
	o := newOrchestrator(cfg, validator, passthroughApplier(), gen, learner)
	result := o.Correct(context.Background(), "stubborn")

	assert.False(t, result.Success)
	assert.Equal(t, schemas.StateIterationCap, result.Metrics.TerminalState)
	assert.Equal(t, 2, result.Metrics.Iterations)
	require.Len(t, result.AppliedSolutions, 2)
	for _, a := range result.AppliedSolutions {
		assert.False(t, a.Resolved)
	}
	for _, rec := range learner.recorded() {
		assert.False(t, rec.outcome.Success)
	}
}

func TestCorrect_TimeoutProducesPartialResult(t *testing.T) {
	t.Parallel()

	defect := defectAt(schemas.DefectSyntax, "invalid syntax", 1)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"slow": {Success: false, Defects: []schemas.Defect{defect}},
	}}

	o := newOrchestrator(testCorrectionConfig(), validator, passthroughApplier(),
		&fakeGenerator{generate: func(schemas.Defect) []schemas.CorrectionSolution { return nil }},
		&fakeLearner{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := o.Correct(ctx, "slow")

	assert.False(t, result.Success)
	assert.Equal(t, schemas.StateTimedOut, result.Metrics.TerminalState)
	assert.Equal(t, "slow", result.FinalCode)
	require.Len(t, result.RemainingDefects, 1)
}

func TestCorrect_AppliesInDescendingLineOrder(t *testing.T) {
	t.Parallel()

	early := defectAt(schemas.DefectNameResolution, "name 'a' is not defined", 2)
	late := defectAt(schemas.DefectNameResolution, "name 'b' is not defined", 9)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"two-defects": {Success: false, Defects: []schemas.Defect{early, late}},
	}}
	applier := &fakeApplier{apply: func(string, schemas.Transformation) (string, error) {
		return "patched", nil
	}}
	gen := &fakeGenerator{generate: func(d schemas.Defect) []schemas.CorrectionSolution {
		return []schemas.CorrectionSolution{
			fixSolution(fmt.Sprintf("sol-%06d", d.Location.Line), "fix", d.Location.Line),
		}
	}}

	o := newOrchestrator(testCorrectionConfig(), validator, applier, gen, &fakeLearner{})
	result := o.Correct(context.Background(), "two-defects")

	assert.True(t, result.Success)
	require.Len(t, applier.calls, 2)
	assert.Equal(t, 9, applier.calls[0].TopLine(), "the highest line must be edited first")
	assert.Equal(t, 2, applier.calls[1].TopLine())
}

func TestCorrect_SkipsFailedApplications(t *testing.T) {
	t.Parallel()

	good := defectAt(schemas.DefectNameResolution, "name 'a' is not defined", 2)
	bad := defectAt(schemas.DefectNameResolution, "name 'b' is not defined", 7)
	validator := &fakeValidator{reports: map[string]*schemas.ValidationReport{
		"mixed": {
			Success: false,
			Defects: []schemas.Defect{good, bad},
		},
		// After the surviving application only the unfixed defect remains.
		"partially-fixed": {
			Success: false,
			Defects: []schemas.Defect{bad},
		},
	}}
	applier := &fakeApplier{apply: func(_ string, tr schemas.Transformation) (string, error) {
		if tr.Tag == "poison" {
			return "", fmt.Errorf("malformed transformation")
		}
		return "partially-fixed", nil
	}}
	gen := &fakeGenerator{generate: func(d schemas.Defect) []schemas.CorrectionSolution {
		tag := "fix"
		if d.Location.Line == 7 {
			tag = "poison"
		}
		return []schemas.CorrectionSolution{
			fixSolution(fmt.Sprintf("sol-%06d", d.Location.Line), tag, d.Location.Line),
		}
	}}
	learner := &fakeLearner{}

	cfg := testCorrectionConfig()
	cfg.MaxIterations = 1

	o := newOrchestrator(cfg, validator, applier, gen, learner)
	result := o.Correct(context.Background(), "mixed")

	assert.False(t, result.Success)
	require.Len(t, result.AppliedSolutions, 1, "the poisoned application must be skipped, not recorded")
	assert.True(t, result.AppliedSolutions[0].Resolved)
	require.Len(t, result.RemainingDefects, 1)
	assert.Equal(t, bad.Message, result.RemainingDefects[0].Message)
	assert.Len(t, learner.recorded(), 1)
}

func TestCorrect_ValidatorOutageDegradesGracefully(t *testing.T) {
	t.Parallel()

	// A validator that always errors funnels into a synthetic unknown
	// defect, which nothing can fix, terminating through Stalled.
	erroring := &erroringValidator{}
	o := New(testCorrectionConfig(), erroring, passthroughApplier(),
		&fakeGenerator{generate: func(schemas.Defect) []schemas.CorrectionSolution { return nil }},
		firstPickSelector{}, &fakeLearner{}, zap.NewNop())

	result := o.Correct(context.Background(), "anything")

	assert.False(t, result.Success)
	assert.Equal(t, schemas.StateStalled, result.Metrics.TerminalState)
	require.Len(t, result.RemainingDefects, 1)
	assert.Equal(t, schemas.DefectUnknown, result.RemainingDefects[0].Kind)
}

type erroringValidator struct{}

func (erroringValidator) Validate(context.Context, string) (*schemas.ValidationReport, error) {
	return nil, fmt.Errorf("parser backend unavailable")
}
