package rules

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pagewatch/shrike/internal/domain"
)

// Input carries the text under check plus the post metadata visible to
// expression rules.
type Input struct {
	Text     string
	PostType string
	PageID   string
}

// Matcher evaluates rules against a text. Stateless; safe for
// unlimited concurrent use over an immutable RuleSet.
type Matcher struct{}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// MatchText evaluates every rule against a bare text.
func (m *Matcher) MatchText(rs *RuleSet, text string) []domain.Match {
	return m.MatchAll(rs, Input{Text: text})
}

// MatchAll evaluates every rule in the set against the input, with no
// short-circuit, and returns all matches in rule-set order. Empty or
// whitespace-only text matches nothing. Expression rules see the number
// of keyword and regex matches via match_count.
func (m *Matcher) MatchAll(rs *RuleSet, in Input) []domain.Match {
	if rs.Len() == 0 || strings.TrimSpace(in.Text) == "" {
		return nil
	}

	lowered := strings.ToLower(in.Text)
	fired := make([]bool, len(rs.rules))
	count := 0

	// Keyword and regex rules first so expression rules can reference
	// match_count.
	for i, cr := range rs.rules {
		if cr.prog != nil {
			continue
		}
		if matchPattern(cr, lowered) {
			fired[i] = true
			count++
		}
	}

	for i, cr := range rs.rules {
		if cr.prog == nil {
			continue
		}
		if m.matchExpr(cr, in, count) {
			fired[i] = true
		}
	}

	var out []domain.Match
	for i, cr := range rs.rules {
		if !fired[i] {
			continue
		}
		out = append(out, domain.Match{
			RuleID:    cr.Rule.ID,
			Keyword:   cr.Rule.Keyword,
			Category:  cr.Rule.Category,
			RiskScore: cr.Rule.RiskScore,
		})
	}
	return out
}

// MatchOne decides whether a single rule fires against the input.
func (m *Matcher) MatchOne(cr *CompiledRule, in Input) bool {
	if strings.TrimSpace(in.Text) == "" {
		return false
	}
	if cr.prog != nil {
		return m.matchExpr(cr, in, 0)
	}
	return matchPattern(cr, strings.ToLower(in.Text))
}

func matchPattern(cr *CompiledRule, lowered string) bool {
	if cr.re != nil {
		return cr.re.MatchString(lowered)
	}
	return containsWord(lowered, cr.word)
}

func (m *Matcher) matchExpr(cr *CompiledRule, in Input, matchCount int) bool {
	out, _, err := cr.prog.Eval(map[string]any{
		"text":        in.Text,
		"text_len":    int64(utf8.RuneCountInString(in.Text)),
		"post_type":   in.PostType,
		"page_id":     in.PageID,
		"match_count": int64(matchCount),
	})
	if err != nil {
		// A failing expression never fires; the rule was validated at
		// load time so this is a runtime-only condition.
		slog.Debug("expression rule evaluation failed",
			"rule_id", cr.Rule.ID,
			"error", err,
		)
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// containsWord reports whether word occurs in text bounded by non-word
// runes or string edges. Both arguments must already be case-folded.
// Substring containment alone is not enough: "sale" must not match
// "wholesale" or "jerusalem".
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start

		if boundaryBefore(text, idx) && boundaryAfter(text, idx+len(word)) {
			return true
		}
		start = idx + 1
	}
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !isWordRune(r)
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
