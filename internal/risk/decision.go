package risk

import (
	"fmt"
	"strings"

	"github.com/pagewatch/shrike/internal/domain"
)

// Policy converts a verdict into an alert / no-alert decision.
// Stateless; pure functions of its inputs.
type Policy struct {
	// AlertThreshold is the minimum verdict score that fires an alert.
	AlertThreshold int
}

// NewPolicy creates a decision policy with the given alert threshold.
func NewPolicy(threshold int) *Policy {
	return &Policy{AlertThreshold: threshold}
}

// ShouldAlert reports whether the verdict warrants a notification.
func (p *Policy) ShouldAlert(v domain.Verdict) bool {
	return v.Score >= p.AlertThreshold
}

// Explain produces the stable, parseable justification string embedded
// in notifications and the audit trail, e.g.
//
//	Risk Score: 5/5 (Category: urgency) - Keywords: urgent, sale
func (p *Policy) Explain(v domain.Verdict) string {
	return fmt.Sprintf("Risk Score: %d/%d (Category: %s) - Keywords: %s",
		v.Score, domain.MaxRiskScore, v.Category, strings.Join(v.Keywords, ", "))
}
