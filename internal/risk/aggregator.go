// Package risk reduces rule matches to a single verdict and decides
// whether the verdict warrants an alert.
package risk

import (
	"github.com/pagewatch/shrike/internal/domain"
)

// NoCategory is the dominant category of a verdict with no matches.
const NoCategory = "none"

// Aggregator reduces a set of rule matches into one verdict.
type Aggregator struct {
	// Label cut points: Score >= HighThreshold -> high,
	// Score >= MediumThreshold -> medium, else low.
	MediumThreshold int
	HighThreshold   int
}

// NewAggregator creates an aggregator with the given label cut points.
func NewAggregator(medium, high int) *Aggregator {
	return &Aggregator{MediumThreshold: medium, HighThreshold: high}
}

// Aggregate computes the verdict for one text.
//
// The overall score is the maximum risk score among the matches, not
// the sum: one severe rule dominates, and many weak matches cannot
// inflate past it. The dominant category is taken from the first match
// carrying the maximum score, in evaluation order. Keywords are listed
// in evaluation order, de-duplicated by rule id but not by keyword text.
func (a *Aggregator) Aggregate(matches []domain.Match) domain.Verdict {
	if len(matches) == 0 {
		return domain.Verdict{
			Score:    0,
			Category: NoCategory,
			Label:    domain.RiskLow,
			Keywords: []string{},
		}
	}

	v := domain.Verdict{
		Category: NoCategory,
		Keywords: make([]string, 0, len(matches)),
		Matches:  matches,
	}

	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		// Matches without a rule id cannot be told apart, so they are
		// never collapsed; dropping one could understate the max score.
		if m.RuleID != "" {
			if seen[m.RuleID] {
				continue
			}
			seen[m.RuleID] = true
		}
		// Expression rules carry no keyword
		if m.Keyword != "" {
			v.Keywords = append(v.Keywords, m.Keyword)
		}

		if m.RiskScore > v.Score {
			v.Score = m.RiskScore
			v.Category = m.Category
		}
	}

	v.Label = a.Label(v.Score)
	return v
}

// Label maps a score onto the coarse risk label.
func (a *Aggregator) Label(score int) domain.RiskLabel {
	switch {
	case score >= a.HighThreshold:
		return domain.RiskHigh
	case score >= a.MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
