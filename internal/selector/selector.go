// File: internal/selector/selector.go
// Description: Final multi-criteria selection over validated candidates.
// Blends immediate heuristics (confidence, validation, impact) with the
// pattern store's historical prediction, under a configurable mode.
package selector

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

const (
	// validationNorm and impactNorm scale the integer heuristic scores into
	// [0, 1] before weighting. Chosen so a typical clean candidate lands
	// near 1.0 without saturating on the first resolved error.
	validationNorm = 33.0
	impactNorm     = 20.0
)

// Predictor is the slice of the pattern store the selector needs: a
// history-informed score for one candidate.
type Predictor interface {
	ScoreCandidate(defect schemas.Defect, codeCtx *schemas.CodeContext, candidate schemas.CorrectionSolution) float64
}

// Selection is the selector's answer. A nil Selected is the sentinel
// no-selection result; the orchestrator treats it as a stalled iteration.
type Selection struct {
	Selected     *schemas.CorrectionSolution
	Alternatives []schemas.CorrectionSolution
	Rationale    string
}

// Selector ranks candidates and picks one. It never fails; an empty
// candidate list yields the no-selection sentinel.
type Selector struct {
	cfg       config.SelectorConfig
	predictor Predictor
	logger    *zap.Logger
}

// New builds a selector around the given prediction source.
func New(cfg config.SelectorConfig, predictor Predictor, logger *zap.Logger) *Selector {
	return &Selector{
		cfg:       cfg,
		predictor: predictor,
		logger:    logger.Named("selector"),
	}
}

type scored struct {
	solution schemas.CorrectionSolution
	score    float64
}

// SelectBestSolution ranks the candidates and returns the winner plus the
// ordered alternatives. Ranking is deterministic: ties break by lowest
// impact, then by lowest solution id.
func (s *Selector) SelectBestSolution(candidates []schemas.CorrectionSolution, defect schemas.Defect, codeCtx *schemas.CodeContext) Selection {
	if len(candidates) == 0 {
		return Selection{Rationale: "no candidates available"}
	}

	ranked := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, scored{solution: cand, score: s.score(cand, defect, codeCtx)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		ii, ij := ranked[i].solution.Impact.Score(), ranked[j].solution.Impact.Score()
		if ii != ij {
			return ii < ij
		}
		return ranked[i].solution.ID < ranked[j].solution.ID
	})

	selection := Selection{
		Selected: &ranked[0].solution,
		Rationale: fmt.Sprintf("%s selection: %s scored %.3f over %d alternatives",
			s.mode(), ranked[0].solution.ID, ranked[0].score, len(ranked)-1),
	}
	for _, r := range ranked[1:] {
		selection.Alternatives = append(selection.Alternatives, r.solution)
	}

	s.logger.Debug("Selected solution",
		zap.String("id", selection.Selected.ID),
		zap.String("type", string(selection.Selected.Type)),
		zap.Float64("score", ranked[0].score))
	return selection
}

// score dispatches on the configured mode.
func (s *Selector) score(cand schemas.CorrectionSolution, defect schemas.Defect, codeCtx *schemas.CodeContext) float64 {
	switch s.mode() {
	case config.SelectWeighted:
		return s.weightedScore(cand, defect, codeCtx)
	case config.SelectPattern:
		return s.predict(cand, defect, codeCtx)
	default:
		return 0.5*s.weightedScore(cand, defect, codeCtx) + 0.5*s.predict(cand, defect, codeCtx)
	}
}

// weightedScore is the multi-criteria formula: confidence and validation
// reward, impact penalizes, and the learned prediction contributes through
// the context weight.
func (s *Selector) weightedScore(cand schemas.CorrectionSolution, defect schemas.Defect, codeCtx *schemas.CodeContext) float64 {
	validation := clamp01(float64(cand.Validation.Score()) / validationNorm)
	impact := clamp01(float64(cand.Impact.Score()) / impactNorm)

	return s.cfg.ConfidenceWeight*cand.Confidence +
		s.cfg.ValidationWeight*validation -
		s.cfg.ImpactWeight*impact +
		s.cfg.ContextWeight*s.predict(cand, defect, codeCtx)
}

func (s *Selector) predict(cand schemas.CorrectionSolution, defect schemas.Defect, codeCtx *schemas.CodeContext) float64 {
	if s.predictor == nil {
		return 0
	}
	return s.predictor.ScoreCandidate(defect, codeCtx, cand)
}

func (s *Selector) mode() config.SelectionMode {
	if s.cfg.Mode == "" {
		return config.SelectHybrid
	}
	return s.cfg.Mode
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
