package compiler

import "strings"

// quoteMetaChars are the characters regexp.QuoteMeta escapes.
const quoteMetaChars = `\.+*?()|[]{}^$`

// DecompileRules recovers the rule list that CompileRules would have turned
// into expr. It returns false for anything CompileRules could not have produced,
// which is how the editor decides whether an expression can be shown in
// simple mode. A successful result always recompiles to expr.
func DecompileRules(expr string) ([]Rule, bool) {
	if expr == "" {
		return nil, true
	}
	var rules []Rule
	rest := expr
	for rest != "" {
		if !strings.HasPrefix(rest, "(?:") {
			return nil, false
		}
		end, ok := closingParen(rest)
		if !ok {
			return nil, false
		}
		body := rest[3:end]
		rest = rest[end+1:]

		optional := false
		if strings.HasPrefix(rest, "?") {
			optional = true
			rest = rest[1:]
		}

		r, ok := ruleFromFragment(body)
		if !ok {
			return nil, false
		}
		r.Optional = optional
		rules = append(rules, r)
	}

	recompiled, err := CompileRules(rules)
	if err != nil || recompiled != expr {
		return nil, false
	}
	return rules, true
}

// closingParen returns the index of the paren closing the group opened at s[0].
func closingParen(s string) (int, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func ruleFromFragment(f string) (Rule, bool) {
	switch {
	case strings.HasPrefix(f, ".*(") && strings.HasSuffix(f, ").*") && len(f) >= 6:
		var alts []string
		for _, part := range splitUnescaped(f[3:len(f)-3], '|') {
			v, ok := unquoteMeta(part)
			if !ok {
				return Rule{}, false
			}
			alts = append(alts, v)
		}
		return Rule{MatchType: MatchAnyOf, Value: strings.Join(alts, ",")}, true
	case strings.HasPrefix(f, "^") && strings.HasSuffix(f, ".*") && len(f) >= 3:
		v, ok := unquoteMeta(f[1 : len(f)-2])
		return Rule{MatchType: MatchStartsWith, Value: v}, ok
	case strings.HasPrefix(f, ".*") && strings.HasSuffix(f, "$") && len(f) >= 3:
		v, ok := unquoteMeta(f[2 : len(f)-1])
		return Rule{MatchType: MatchEndsWith, Value: v}, ok
	case strings.HasPrefix(f, ".*") && strings.HasSuffix(f, ".*") && len(f) >= 4:
		v, ok := unquoteMeta(f[2 : len(f)-2])
		return Rule{MatchType: MatchContains, Value: v}, ok
	default:
		v, ok := unquoteMeta(f)
		return Rule{MatchType: MatchExact, Value: v}, ok
	}
}

// unquoteMeta reverses regexp.QuoteMeta. It fails on any unescaped metacharacter.
func unquoteMeta(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) || !strings.ContainsRune(quoteMetaChars, rune(s[i+1])) {
				return "", false
			}
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if strings.ContainsRune(quoteMetaChars, rune(c)) {
			return "", false
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
