// Package rules provides the rule store and the text matcher for the
// content-policy detection pipeline.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/cel-go/cel"
	"github.com/pagewatch/shrike/internal/domain"
)

var (
	// ErrBadDocument indicates the rule source is unreadable or its
	// top-level structure is not a rule document. Loader-fatal: the
	// caller must not silently run with zero rules.
	ErrBadDocument = errors.New("malformed rule document")
)

// CompiledRule pairs a rule with its pre-compiled match artifact.
type CompiledRule struct {
	Rule *domain.Rule

	// literal mode: case-folded keyword
	word string

	// regex mode
	re *regexp.Regexp

	// expression mode
	prog cel.Program
}

// RuleSet is the active, ordered collection of enabled, compiled rules.
// Immutable once built; reloads swap the whole set.
type RuleSet struct {
	Version string
	rules   []*CompiledRule
}

// Len returns the number of active rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Rules returns the rule configurations in evaluation order.
func (rs *RuleSet) Rules() []*domain.Rule {
	if rs == nil {
		return nil
	}
	out := make([]*domain.Rule, len(rs.rules))
	for i, cr := range rs.rules {
		out[i] = cr.Rule
	}
	return out
}

// Store loads, validates, and owns the active rule set. Readers see
// either the previous set or the fully-loaded new one, never a partially
// populated set.
type Store struct {
	env    *cel.Env
	active atomic.Pointer[RuleSet]
}

// NewStore creates a rule store with the CEL environment used by
// expression rules.
func NewStore() (*Store, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("text_len", cel.IntType),
		cel.Variable("post_type", cel.StringType),
		cel.Variable("page_id", cel.StringType),
		cel.Variable("match_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Store{env: env}, nil
}

// ruleJSON mirrors domain.Rule with pointer fields so that absent
// booleans pick up the documented defaults (is_regex=false, enabled=true).
type ruleJSON struct {
	ID         string `json:"id"`
	Keyword    string `json:"keyword"`
	IsRegex    *bool  `json:"is_regex"`
	Expression string `json:"expression"`
	Category   string `json:"category"`
	RiskScore  int    `json:"risk_score"`
	Enabled    *bool  `json:"enabled"`
}

func (rj *ruleJSON) toRule() *domain.Rule {
	r := &domain.Rule{
		ID:         rj.ID,
		Keyword:    rj.Keyword,
		Expression: rj.Expression,
		Category:   rj.Category,
		RiskScore:  rj.RiskScore,
		Enabled:    true,
	}
	if rj.IsRegex != nil {
		r.IsRegex = *rj.IsRegex
	}
	if rj.Enabled != nil {
		r.Enabled = *rj.Enabled
	}
	return r
}

// ParseDocument resolves the two accepted source shapes into one
// canonical rule list: a structured document with a top-level "rules"
// array, or a legacy flat list of bare keyword strings. Anything else
// is ErrBadDocument.
func ParseDocument(data []byte) ([]*domain.Rule, string, error) {
	// Legacy shape first: the whole document is a JSON array of strings.
	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		out := make([]*domain.Rule, 0, len(legacy))
		for i, kw := range legacy {
			out = append(out, &domain.Rule{
				ID:        fmt.Sprintf("legacy-%d", i+1),
				Keyword:   kw,
				Category:  domain.LegacyCategory,
				RiskScore: domain.LegacyRiskScore,
				Enabled:   true,
			})
		}
		return out, "", nil
	}

	var doc struct {
		Version string      `json:"version"`
		Rules   []*ruleJSON `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if doc.Rules == nil {
		return nil, "", fmt.Errorf("%w: missing rules array", ErrBadDocument)
	}

	out := make([]*domain.Rule, 0, len(doc.Rules))
	for _, rj := range doc.Rules {
		out = append(out, rj.toRule())
	}
	return out, doc.Version, nil
}

// LoadDocument parses a rule source and compiles it into a new RuleSet.
// A malformed top-level structure fails the load; a malformed individual
// rule is skipped with a warning.
func (s *Store) LoadDocument(data []byte) (*RuleSet, error) {
	parsed, version, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	rs := s.Compile(parsed)
	rs.Version = version
	return rs, nil
}

// Compile validates and compiles a rule list into a RuleSet, preserving
// order. Disabled rules are filtered here, never seen downstream.
// Invalid rules (empty id, empty pattern, out-of-range score,
// uncompilable regex or expression, duplicate id) are skipped with a
// warning; the first occurrence wins on duplicate ids.
func (s *Store) Compile(rules []*domain.Rule) *RuleSet {
	rs := &RuleSet{rules: make([]*CompiledRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.ID != "" && seen[r.ID] {
			slog.Warn("skipping duplicate rule id", "rule_id", r.ID)
			continue
		}
		cr, err := s.compile(r)
		if err != nil {
			slog.Warn("skipping invalid rule", "rule_id", r.ID, "error", err)
			continue
		}
		seen[r.ID] = true
		rs.rules = append(rs.rules, cr)
	}

	return rs
}

// Validate reports whether a single rule would compile, without
// touching the active set.
func (s *Store) Validate(r *domain.Rule) error {
	_, err := s.compile(r)
	return err
}

func (s *Store) compile(r *domain.Rule) (*CompiledRule, error) {
	if r.ID == "" {
		return nil, errors.New("empty rule id")
	}
	if r.RiskScore < domain.MinRiskScore || r.RiskScore > domain.MaxRiskScore {
		return nil, fmt.Errorf("risk_score %d out of range [%d,%d]",
			r.RiskScore, domain.MinRiskScore, domain.MaxRiskScore)
	}

	cr := &CompiledRule{Rule: r}

	switch r.Kind() {
	case domain.RuleKindExpr:
		ast, issues := s.env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("expression does not compile: %w", issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
		}
		prog, err := s.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create program: %w", err)
		}
		cr.prog = prog

	case domain.RuleKindRegex:
		if r.Keyword == "" {
			return nil, errors.New("empty regex pattern")
		}
		re, err := regexp.Compile("(?i)" + r.Keyword)
		if err != nil {
			return nil, fmt.Errorf("pattern does not compile: %w", err)
		}
		cr.re = re

	default:
		word := strings.ToLower(strings.TrimSpace(r.Keyword))
		if word == "" {
			return nil, errors.New("empty keyword")
		}
		cr.word = word
	}

	return cr, nil
}

// Activate atomically swaps in a new rule set.
func (s *Store) Activate(rs *RuleSet) {
	s.active.Store(rs)
}

// Active returns the current rule set. Never nil.
func (s *Store) Active() *RuleSet {
	if rs := s.active.Load(); rs != nil {
		return rs
	}
	return &RuleSet{}
}
