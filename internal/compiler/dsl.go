package compiler

import (
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/joescharf/intentcfg/internal/errs"
)

// Rule text form, one rule per line or separated by ';':
//
//	contains "how many"
//	optional any_of "student, pupil, learner"
//	# comments run to end of line
var ruleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_]+`},
	{Name: "Sep", Pattern: `[;\n]`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})

type ruleFile struct {
	Lines []*ruleLine `parser:"Sep* ( @@ Sep* )*"`
}

type ruleLine struct {
	Pos      lexer.Position
	Optional bool   `parser:"@'optional'?"`
	Type     string `parser:"@Ident"`
	Value    string `parser:"@String"`
}

var ruleParser = participle.MustBuild[ruleFile](
	participle.Lexer(ruleLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace", "Comment"),
)

// ParseRules parses the rule text form and validates the result.
func ParseRules(src string) ([]Rule, error) {
	file, err := ruleParser.ParseString("rules", src)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "parse rules", err)
	}
	rules := make([]Rule, 0, len(file.Lines))
	for _, l := range file.Lines {
		mt := MatchType(l.Type)
		if !mt.Valid() {
			return nil, errs.E(errs.Validation, "parse rules", "line %d: unknown match type %q", l.Pos.Line, l.Type)
		}
		rules = append(rules, Rule{MatchType: mt, Value: l.Value, Optional: l.Optional})
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// FormatRules renders rules in the text form accepted by ParseRules.
func FormatRules(rules []Rule) string {
	var out []byte
	for _, r := range rules {
		if r.Optional {
			out = append(out, "optional "...)
		}
		out = append(out, string(r.MatchType)...)
		out = append(out, ' ')
		out = strconv.AppendQuote(out, r.Value)
		out = append(out, '\n')
	}
	return string(out)
}

