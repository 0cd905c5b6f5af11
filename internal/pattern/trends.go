// File: internal/pattern/trends.go
// Description: Read-only trend analysis over the learned pattern state.
package pattern

import (
	"sort"

	"github.com/xkilldash9x/remend/api/schemas"
)

// AnalyzeTrends summarizes the store: pattern counts per defect kind, the
// recent store-wide success ratio, and the solution types history currently
// favors. Purely observational; never mutates the store.
func (s *Store) AnalyzeTrends() schemas.TrendReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := schemas.TrendReport{
		TotalPatterns:  len(s.patterns),
		PatternsByKind: make(map[schemas.DefectKind]int),
		Metrics:        s.metrics,
	}

	// Weighted aggregation of per-pattern solution EMAs. Each pattern's
	// frequency is the weight, so rare patterns do not swamp the trend.
	type agg struct {
		weightedRate float64
		weightedConf float64
		weight       float64
		observations int
	}
	byType := make(map[schemas.SolutionType]*agg)

	for _, ep := range s.patterns {
		report.PatternsByKind[ep.Kind]++
		w := float64(ep.Frequency)
		if w < 1 {
			w = 1
		}
		for _, sp := range ep.SuccessfulSolutions {
			a := byType[sp.Type]
			if a == nil {
				a = &agg{}
				byType[sp.Type] = a
			}
			a.weightedRate += w * sp.SuccessRate
			a.weightedConf += w * sp.AverageConfidence
			a.weight += w
			a.observations += ep.Frequency
		}
	}

	for t, a := range byType {
		if a.weight == 0 {
			continue
		}
		report.TopSolutionTypes = append(report.TopSolutionTypes, schemas.SolutionTypeTrend{
			Type:              t,
			SuccessRate:       a.weightedRate / a.weight,
			AverageConfidence: a.weightedConf / a.weight,
			Observations:      a.observations,
		})
	}
	sort.Slice(report.TopSolutionTypes, func(i, j int) bool {
		ti, tj := report.TopSolutionTypes[i], report.TopSolutionTypes[j]
		if ti.SuccessRate != tj.SuccessRate {
			return ti.SuccessRate > tj.SuccessRate
		}
		return ti.Type < tj.Type
	})

	report.RecentSuccessRatio = recentSuccessRatio(s.recent, len(s.recent))
	return report
}
