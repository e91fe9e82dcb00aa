package compiler

import (
	"regexp"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

const valueAlphabet = `abcxyz .+*?()|[]{}^$\`

func genValue(t *rapid.T, label string) string {
	n := rapid.IntRange(1, 12).Draw(t, label+"Len")
	b := make([]byte, n)
	for i := range b {
		b[i] = valueAlphabet[rapid.IntRange(0, len(valueAlphabet)-1).Draw(t, label+"Char")]
	}
	v := string(b)
	if strings.TrimSpace(v) == "" {
		return "a" + v
	}
	return v
}

func genRule(t *rapid.T, label string) Rule {
	mt := rapid.SampledFrom([]MatchType{MatchExact, MatchContains, MatchStartsWith, MatchEndsWith}).Draw(t, label+"Type")
	return Rule{
		MatchType: mt,
		Value:     genValue(t, label),
		Optional:  rapid.Bool().Draw(t, label+"Optional"),
	}
}

// Property: compiling the same rules twice is byte-identical.
func TestProperty_CompileDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(t, "n")
		rules := make([]Rule, n)
		for i := range rules {
			rules[i] = genRule(t, "rule")
		}
		a, err := CompileRules(rules)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		b, _ := CompileRules(append([]Rule(nil), rules...))
		if a != b {
			t.Fatalf("non-deterministic: %q vs %q", a, b)
		}
	})
}

// Property: an escaped value matches itself literally per match type.
func TestProperty_LiteralMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := genRule(t, "rule")
		r.Optional = false
		if r.MatchType == MatchExact {
			r.MatchType = MatchContains
		}
		expr, err := CompileRules([]Rule{r})
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		re := regexp.MustCompile(expr)

		var subject string
		switch r.MatchType {
		case MatchContains:
			subject = "pre" + r.Value + "post"
		case MatchStartsWith:
			subject = r.Value + "post"
		case MatchEndsWith:
			subject = "pre" + r.Value
		}
		if !re.MatchString(subject) {
			t.Fatalf("%q does not match %q", expr, subject)
		}

		// Replacing every char with a letter not in the value must break the match.
		other := strings.Repeat("q", len(subject))
		if re.MatchString(other) {
			t.Fatalf("%q unexpectedly matches %q", expr, other)
		}
	})
}

// Property: compiled expressions decompile back to the same rules.
func TestProperty_DecompileRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(t, "n")
		rules := make([]Rule, n)
		for i := range rules {
			rules[i] = genRule(t, "rule")
		}
		expr, err := CompileRules(rules)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		got, ok := DecompileRules(expr)
		if !ok {
			t.Fatalf("could not decompile %q", expr)
		}
		again, _ := CompileRules(got)
		if again != expr {
			t.Fatalf("round trip changed expression: %q -> %q", expr, again)
		}
		if !LooksCompilerGenerated(expr) {
			t.Fatalf("compiler output classified as advanced: %q", expr)
		}
	})
}
