package domain

// Rule defines one content-policy detection rule.
type Rule struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`

	// When false the keyword is matched as a case-insensitive whole word.
	// When true the keyword is a regular expression applied with (?i).
	IsRegex bool `json:"is_regex"`

	// Optional CEL expression over post metadata. When set, the rule fires
	// on the expression result instead of the keyword.
	Expression string `json:"expression,omitempty"`

	// Reporting label, e.g. "spam", "urgency", "gambling".
	Category string `json:"category"`

	// Severity if this rule fires, 1 (lowest) to 5 (highest).
	RiskScore int `json:"risk_score"`

	// Disabled rules are dropped at load time, never seen by the matcher.
	Enabled bool `json:"enabled"`
}

// Risk score bounds for a single rule.
const (
	MinRiskScore = 1
	MaxRiskScore = 5
)

// Defaults applied to entries of a legacy flat keyword list.
const (
	LegacyRiskScore = 1
	LegacyCategory  = "uncategorized"
)

// RuleKind is the match mode of a rule, resolved once at load time.
type RuleKind string

const (
	RuleKindLiteral RuleKind = "literal"
	RuleKindRegex   RuleKind = "regex"
	RuleKindExpr    RuleKind = "expression"
)

// Kind reports how the rule is matched.
func (r *Rule) Kind() RuleKind {
	switch {
	case r.Expression != "":
		return RuleKindExpr
	case r.IsRegex:
		return RuleKindRegex
	default:
		return RuleKindLiteral
	}
}

// Match records one rule firing against one text. A rule fires at most
// once per text regardless of how many times its pattern occurs.
type Match struct {
	RuleID    string `json:"ruleId"`
	Keyword   string `json:"keyword"`
	Category  string `json:"category"`
	RiskScore int    `json:"riskScore"`
}
