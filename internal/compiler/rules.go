// Package compiler turns structured match rules or example phrases into a
// single matching expression and classifies existing expressions as
// compiler-generated ("simple") or hand-written ("advanced").
//
// Expressions use Go regexp (RE2) syntax. Compiled output is deterministic:
// the same rule list always yields byte-identical output.
package compiler

import (
	"regexp"
	"strings"

	"github.com/joescharf/intentcfg/internal/errs"
)

// MatchType selects how a rule value is matched.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchAnyOf      MatchType = "any_of"
)

// MatchTypes lists every supported match type in display order.
var MatchTypes = []MatchType{MatchExact, MatchContains, MatchStartsWith, MatchEndsWith, MatchAnyOf}

// Valid reports whether m is a supported match type.
func (m MatchType) Valid() bool {
	for _, t := range MatchTypes {
		if t == m {
			return true
		}
	}
	return false
}

// Rule is one simple-mode match rule. For MatchAnyOf, Value is a
// comma-separated list of alternatives.
type Rule struct {
	MatchType MatchType `json:"match_type" yaml:"match_type"`
	Value     string    `json:"value" yaml:"value"`
	Optional  bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ValidateRules rejects rules that would compile into a degenerate expression.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if !r.MatchType.Valid() {
			return errs.E(errs.Validation, "validate rules", "rule %d: unknown match type %q", i+1, r.MatchType)
		}
		if r.MatchType == MatchAnyOf {
			if len(anyOfAlternatives(r.Value)) == 0 {
				return errs.E(errs.Validation, "validate rules", "rule %d: any_of needs at least one non-empty alternative", i+1)
			}
			continue
		}
		if strings.TrimSpace(r.Value) == "" {
			return errs.E(errs.Validation, "validate rules", "rule %d: %s value must not be empty", i+1, r.MatchType)
		}
	}
	return nil
}

// CompileRules validates rules and concatenates their fragments in order.
// An empty rule list yields an empty expression.
func CompileRules(rules []Rule) (string, error) {
	if err := ValidateRules(rules); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range rules {
		b.WriteString("(?:")
		b.WriteString(fragment(r))
		b.WriteString(")")
		if r.Optional {
			b.WriteString("?")
		}
	}
	return b.String(), nil
}

// fragment renders one rule without its group wrapper. Rules must be valid.
func fragment(r Rule) string {
	switch r.MatchType {
	case MatchContains:
		return ".*" + regexp.QuoteMeta(r.Value) + ".*"
	case MatchStartsWith:
		return "^" + regexp.QuoteMeta(r.Value) + ".*"
	case MatchEndsWith:
		return ".*" + regexp.QuoteMeta(r.Value) + "$"
	case MatchAnyOf:
		alts := anyOfAlternatives(r.Value)
		for i, a := range alts {
			alts[i] = regexp.QuoteMeta(a)
		}
		return ".*(" + strings.Join(alts, "|") + ").*"
	default:
		return regexp.QuoteMeta(r.Value)
	}
}

// anyOfAlternatives splits a comma-separated list, trimming blanks and dropping empties.
func anyOfAlternatives(value string) []string {
	var alts []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			alts = append(alts, p)
		}
	}
	return alts
}
