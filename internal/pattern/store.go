// File: internal/pattern/store.go
// Description: The learned pattern store. One RWMutex serializes writers
// (LearnFromCorrection, PrunePatterns, ImportSnapshot) against concurrent
// readers (FindMatchingPatterns, PredictBestSolution, trend analysis).
package pattern

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

const (
	// confidenceFloor is the confidence below which a pattern is always
	// prunable, regardless of frequency.
	confidenceFloor = 0.1

	// confidenceWindow is how many recent outcomes feed a pattern's
	// confidence ratio.
	confidenceWindow = 10

	// perPatternOutcomeCap bounds the outcome history kept on each pattern.
	perPatternOutcomeCap = 50

	// recentOutcomeCap bounds the store-wide outcome history kept for export.
	recentOutcomeCap = 100

	// predictionBaseWeight is the share of a candidate's own confidence in
	// its history-informed prediction score.
	predictionBaseWeight = 0.3
)

// Match pairs a stored pattern with how well it fits a probe defect.
type Match struct {
	Pattern          schemas.ErrorPattern
	Confidence       float64
	ContextAlignment float64
}

// Prediction is the store's answer to "which of these candidates does
// history favor".
type Prediction struct {
	Solution  *schemas.CorrectionSolution
	Score     float64
	Reasoning string
}

// Store owns the map of learned error patterns.
type Store struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	cfg       schemas.LearningConfig
	extractor *Extractor
	matcher   *Matcher

	patterns map[string]*schemas.ErrorPattern
	recent   []schemas.CorrectionOutcome
	metrics  schemas.StoreMetrics

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates an empty pattern store.
func NewStore(cfg config.PatternConfig, matcher *Matcher, extractor *Extractor, logger *zap.Logger) *Store {
	return &Store{
		logger: logger.Named("pattern_store"),
		cfg: schemas.LearningConfig{
			LearningRate:               cfg.LearningRate,
			DecayRate:                  cfg.DecayRate,
			MinimumOccurrences:         cfg.MinimumOccurrences,
			MaxPatternsPerErrorType:    cfg.MaxPatternsPerErrorType,
			PatternExtractionThreshold: cfg.PatternExtractionThreshold,
			NoMatchDampening:           cfg.NoMatchDampening,
		},
		extractor: extractor,
		matcher:   matcher,
		patterns:  make(map[string]*schemas.ErrorPattern),
		now:       time.Now,
	}
}

// PatternID derives the deterministic id for a defect kind and its extracted
// pattern. Content-hashed so re-learning the same shape always lands on the
// same record.
func PatternID(kind schemas.DefectKind, p schemas.CodePattern) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(kind))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(p.Signature)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(p.Semantic)
	return fmt.Sprintf("%016x", h.Sum64())
}

// LearnFromCorrection folds one applied solution's outcome into the store.
// It never raises to the caller: learning failures are logged and swallowed
// so they can not block the correction pipeline.
func (s *Store) LearnFromCorrection(defect schemas.Defect, codeCtx *schemas.CodeContext, applied schemas.CorrectionSolution, outcome schemas.CorrectionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Learning failed; outcome dropped", zap.Any("panic", r))
		}
	}()

	probe := s.extractor.Extract(defect, codeCtx)
	id := PatternID(defect.Kind, probe)

	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.patterns[id]
	if !ok {
		ep = &schemas.ErrorPattern{
			ID:             id,
			Kind:           defect.Kind,
			ContextPattern: probe,
		}
		s.patterns[id] = ep
		s.metrics.PatternsCreated++
	}

	ep.Frequency++
	ep.LastSeen = s.timestampFor(outcome)
	ep.Outcomes = appendBounded(ep.Outcomes, outcome, perPatternOutcomeCap)

	s.updateSolutionPattern(ep, codeCtx, applied, outcome.Success)
	ep.Confidence = recentSuccessRatio(ep.Outcomes, confidenceWindow)

	s.metrics.TotalCorrections++
	if outcome.Success {
		s.metrics.SuccessfulCorrections++
	}
	s.recent = appendBounded(s.recent, outcome, recentOutcomeCap)

	// Capacity and confidence pruning runs on every learn; the frequency
	// rule only applies to the explicit PrunePatterns operation, otherwise
	// no new pattern could ever survive its first sighting.
	s.pruneLocked(false)
}

// updateSolutionPattern finds or creates the single SolutionPattern for the
// applied solution's type and ages its EMAs. An entry migrates to the
// successful list on its first success.
func (s *Store) updateSolutionPattern(ep *schemas.ErrorPattern, codeCtx *schemas.CodeContext, applied schemas.CorrectionSolution, success bool) {
	alpha := s.cfg.LearningRate

	sp, fromFailed := findSolutionPattern(ep, applied.Type)
	if sp == nil {
		fresh := schemas.SolutionPattern{
			Type:              applied.Type,
			TransformationTag: applied.Transformation.Tag,
		}
		if codeCtx != nil {
			fresh.ContextRequirements = append([]string(nil), codeCtx.ScopeChain...)
		}
		if success {
			ep.SuccessfulSolutions = append(ep.SuccessfulSolutions, fresh)
			sp = &ep.SuccessfulSolutions[len(ep.SuccessfulSolutions)-1]
		} else {
			ep.FailedSolutions = append(ep.FailedSolutions, fresh)
			sp = &ep.FailedSolutions[len(ep.FailedSolutions)-1]
		}
		fromFailed = !success
	}

	if success {
		sp.SuccessRate = alpha*1.0 + (1-alpha)*sp.SuccessRate
		sp.AverageConfidence = alpha*applied.Confidence + (1-alpha)*sp.AverageConfidence
		sp.PerformanceImpact = alpha*impactScalar(applied.Impact.PerformanceImpact) + (1-alpha)*sp.PerformanceImpact
		sp.SideEffects = mergeBounded(sp.SideEffects, applied.Impact.PotentialSideEffects, 8)
		if fromFailed {
			moveToSuccessful(ep, applied.Type)
		}
	} else {
		sp.SuccessRate = (1 - alpha) * sp.SuccessRate
	}
}

// FindMatchingPatterns returns every stored pattern of the defect's kind
// whose similarity to the freshly extracted probe clears the extraction
// threshold, sorted by similarity descending.
func (s *Store) FindMatchingPatterns(defect schemas.Defect, codeCtx *schemas.CodeContext) []Match {
	probe := s.extractor.Extract(defect, codeCtx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, ep := range s.patterns {
		if ep.Kind != defect.Kind {
			continue
		}
		conf := s.matcher.Similarity(probe, ep.ContextPattern)
		if conf < s.cfg.PatternExtractionThreshold {
			continue
		}
		alignment := 0.5 +
			0.3*s.matcher.StructuralOverlap(probe, ep.ContextPattern) +
			0.2*s.matcher.ContextualOverlap(probe, ep.ContextPattern)
		matches = append(matches, Match{
			Pattern:          *ep,
			Confidence:       conf,
			ContextAlignment: clamp01(alignment),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Pattern.ID < matches[j].Pattern.ID
	})
	return matches
}

// PredictBestSolution scores each candidate against the matching patterns'
// solution history and returns the favorite. With no matching patterns it
// falls back to the highest-confidence candidate, dampened.
func (s *Store) PredictBestSolution(defect schemas.Defect, codeCtx *schemas.CodeContext, candidates []schemas.CorrectionSolution) Prediction {
	if len(candidates) == 0 {
		return Prediction{Reasoning: "no candidates to predict from"}
	}

	matches := s.FindMatchingPatterns(defect, codeCtx)
	if len(matches) == 0 {
		best := 0
		for i := range candidates {
			if candidates[i].Confidence > candidates[best].Confidence {
				best = i
			}
		}
		return Prediction{
			Solution:  &candidates[best],
			Score:     clamp01(candidates[best].Confidence * s.cfg.NoMatchDampening),
			Reasoning: "no pattern match; falling back to highest candidate confidence",
		}
	}

	bestIdx := -1
	bestScore := -1.0
	var bestContribs []string

	for i := range candidates {
		cand := &candidates[i]
		score := predictionBaseWeight * cand.Confidence
		var contribs []string
		for _, m := range matches {
			sp := recommendedSolution(m.Pattern, cand.Type)
			if sp == nil {
				continue
			}
			score += m.Confidence * m.ContextAlignment * sp.SuccessRate
			contribs = append(contribs, m.Pattern.ID)
		}
		score = clamp01(score)
		if score > bestScore || (score == bestScore && bestIdx >= 0 && cand.ID < candidates[bestIdx].ID) {
			bestIdx, bestScore, bestContribs = i, score, contribs
		}
	}

	reasoning := "scored against learned history"
	if len(bestContribs) > 0 {
		reasoning = fmt.Sprintf("favored by patterns [%s]", strings.Join(bestContribs, ", "))
	}
	return Prediction{
		Solution:  &candidates[bestIdx],
		Score:     bestScore,
		Reasoning: reasoning,
	}
}

// ScoreCandidate returns the prediction score for a single candidate. Used by
// the selector, which scores candidates one at a time.
func (s *Store) ScoreCandidate(defect schemas.Defect, codeCtx *schemas.CodeContext, candidate schemas.CorrectionSolution) float64 {
	return s.PredictBestSolution(defect, codeCtx, []schemas.CorrectionSolution{candidate}).Score
}

// PrunePatterns removes low-confidence and below-minimum-frequency patterns,
// then enforces the per-kind capacity bound.
func (s *Store) PrunePatterns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(true)
}

// pruneLocked requires s.mu held for writing. The frequency rule is gated so
// the per-learn prune can not evict patterns on first sighting.
func (s *Store) pruneLocked(enforceMinimumFrequency bool) {
	removed := 0
	for id, ep := range s.patterns {
		if ep.Confidence < confidenceFloor && len(ep.Outcomes) > 0 {
			delete(s.patterns, id)
			removed++
			continue
		}
		if enforceMinimumFrequency && ep.Frequency < s.cfg.MinimumOccurrences {
			delete(s.patterns, id)
			removed++
		}
	}

	// Per-kind capacity: evict lowest confidence first.
	byKind := make(map[schemas.DefectKind][]*schemas.ErrorPattern)
	for _, ep := range s.patterns {
		byKind[ep.Kind] = append(byKind[ep.Kind], ep)
	}
	for _, group := range byKind {
		if len(group) <= s.cfg.MaxPatternsPerErrorType {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].Confidence != group[j].Confidence {
				return group[i].Confidence > group[j].Confidence
			}
			if group[i].Frequency != group[j].Frequency {
				return group[i].Frequency > group[j].Frequency
			}
			return group[i].ID < group[j].ID
		})
		for _, ep := range group[s.cfg.MaxPatternsPerErrorType:] {
			delete(s.patterns, ep.ID)
			removed++
		}
	}

	if removed > 0 {
		s.metrics.PatternsPruned += removed
		s.logger.Debug("Pruned patterns", zap.Int("removed", removed), zap.Int("remaining", len(s.patterns)))
	}
}

// PatternCount reports the number of stored patterns.
func (s *Store) PatternCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// -- helpers --

func (s *Store) timestampFor(outcome schemas.CorrectionOutcome) time.Time {
	if !outcome.Timestamp.IsZero() {
		return outcome.Timestamp
	}
	return s.now()
}

// findSolutionPattern locates the single logical SolutionPattern for a type,
// checking the successful list first. The second return reports whether it
// was found on the failed list.
func findSolutionPattern(ep *schemas.ErrorPattern, t schemas.SolutionType) (*schemas.SolutionPattern, bool) {
	for i := range ep.SuccessfulSolutions {
		if ep.SuccessfulSolutions[i].Type == t {
			return &ep.SuccessfulSolutions[i], false
		}
	}
	for i := range ep.FailedSolutions {
		if ep.FailedSolutions[i].Type == t {
			return &ep.FailedSolutions[i], true
		}
	}
	return nil, false
}

// moveToSuccessful migrates a solution pattern from the failed list to the
// successful list after its first success.
func moveToSuccessful(ep *schemas.ErrorPattern, t schemas.SolutionType) {
	for i := range ep.FailedSolutions {
		if ep.FailedSolutions[i].Type != t {
			continue
		}
		sp := ep.FailedSolutions[i]
		ep.FailedSolutions = append(ep.FailedSolutions[:i], ep.FailedSolutions[i+1:]...)
		ep.SuccessfulSolutions = append(ep.SuccessfulSolutions, sp)
		return
	}
}

// recommendedSolution returns the successful-list entry for a type, if any.
func recommendedSolution(ep schemas.ErrorPattern, t schemas.SolutionType) *schemas.SolutionPattern {
	for i := range ep.SuccessfulSolutions {
		if ep.SuccessfulSolutions[i].Type == t {
			return &ep.SuccessfulSolutions[i]
		}
	}
	return nil
}

// recentSuccessRatio computes the success ratio over the most recent window
// of outcomes.
func recentSuccessRatio(outcomes []schemas.CorrectionOutcome, window int) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	start := len(outcomes) - window
	if start < 0 {
		start = 0
	}
	recent := outcomes[start:]
	succeeded := 0
	for _, o := range recent {
		if o.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(recent))
}

func appendBounded[T any](list []T, item T, capLimit int) []T {
	list = append(list, item)
	if len(list) > capLimit {
		list = list[len(list)-capLimit:]
	}
	return list
}

// mergeBounded unions newItems into list, preserving order, capped.
func mergeBounded(list []string, newItems []string, capLimit int) []string {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s] = true
	}
	for _, s := range newItems {
		if seen[s] || len(list) >= capLimit {
			continue
		}
		seen[s] = true
		list = append(list, s)
	}
	return list
}

func impactScalar(r schemas.ImpactRating) float64 {
	switch r {
	case schemas.ImpactPositive, schemas.ImpactImproved:
		return 1.0
	case schemas.ImpactNegative, schemas.ImpactDegraded:
		return -1.0
	default:
		return 0.0
	}
}
