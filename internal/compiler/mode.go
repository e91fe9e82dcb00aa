package compiler

import "fmt"

// ModeAssessment is a best-effort guess at whether an expression was produced
// by the rule compiler. It is advisory: callers use it to pick an editor mode
// and never to rewrite stored expressions.
type ModeAssessment struct {
	Simple     bool     `json:"simple"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
	// Rules is set when the expression decompiles exactly.
	Rules []Rule `json:"rules,omitempty"`
}

// escape shorthands CompileRules never emits (QuoteMeta only escapes punctuation).
const shorthandEscapes = "dDwWsSbBAzpPQE0123456789"

// LooksCompilerGenerated reports whether expr is free of character classes,
// counted repetition and escape shorthands.
//
// Known limits: a hand-written expression such as "a+b" or "(foo|bar)" uses
// none of that syntax and is reported as simple even though the rule compiler
// would never emit it. AssessMode lowers confidence for those.
func LooksCompilerGenerated(expr string) bool {
	return len(advancedMarkers(expr)) == 0
}

// AssessMode classifies expr and explains the verdict.
func AssessMode(expr string) ModeAssessment {
	if markers := advancedMarkers(expr); len(markers) > 0 {
		return ModeAssessment{Simple: false, Confidence: 0.9, Reasons: markers}
	}
	if rules, ok := DecompileRules(expr); ok {
		return ModeAssessment{
			Simple:     true,
			Confidence: 1.0,
			Reasons:    []string{"expression round-trips through the rule compiler"},
			Rules:      rules,
		}
	}
	return ModeAssessment{
		Simple:     true,
		Confidence: 0.6,
		Reasons:    []string{"no advanced syntax found, but the expression does not decompile into rules"},
	}
}

func advancedMarkers(expr string) []string {
	var reasons []string
	seen := map[string]bool{}
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			reasons = append(reasons, r)
		}
	}
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\\':
			if i+1 < len(expr) {
				if c := expr[i+1]; containsByte(shorthandEscapes, c) {
					add(fmt.Sprintf(`escape shorthand \%c`, c))
				}
			}
			i++
		case '[':
			add("character class")
		case '{':
			if isCountedRepetition(expr[i:]) {
				add("counted repetition")
			}
		}
	}
	return reasons
}

// isCountedRepetition matches {n}, {n,} and {n,m} at the start of s.
func isCountedRepetition(s string) bool {
	i := 1
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 || i >= len(s) {
		return false
	}
	if s[i] == ',' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	return i < len(s) && s[i] == '}'
}

func containsByte(set string, c byte) bool {
	for i := 0; i < len(set); i++ {
		if set[i] == c {
			return true
		}
	}
	return false
}
