package domain

import (
	"time"
)

// RiskLabel is the coarse classification of an aggregated verdict.
type RiskLabel string

const (
	RiskLow    RiskLabel = "low"
	RiskMedium RiskLabel = "medium"
	RiskHigh   RiskLabel = "high"
)

// Verdict is the aggregate outcome of matching one text against the
// active rule set. Derived deterministically from the matches and the
// configured cut points; never persisted on its own.
type Verdict struct {
	Score    int       `json:"score"`
	Category string    `json:"category"`
	Label    RiskLabel `json:"label"`

	// Keywords of all firing rules in evaluation order,
	// de-duplicated by rule id.
	Keywords []string `json:"keywords"`

	Matches []Match `json:"matches,omitempty"`
}

// CheckRecord is the persisted audit trail entry for one checked post.
// One record is written per non-skipped post regardless of risk.
type CheckRecord struct {
	ID     string `json:"id"`
	PageID string `json:"pageId"`
	PostID string `json:"postId"`
	Text   string `json:"text"`

	Score    int       `json:"score"`
	Category string    `json:"category"`
	Label    RiskLabel `json:"label"`
	Matches  []Match   `json:"matches,omitempty"`

	Alerted bool   `json:"alerted"`
	Reason  string `json:"reason,omitempty"`

	CheckedAt time.Time `json:"checkedAt"`

	Metadata CheckMetadata `json:"metadata"`
}

// CheckMetadata carries processing information for a check.
type CheckMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	DetectMs       int64  `json:"detectMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion"`
}
