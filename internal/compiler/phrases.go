package compiler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joescharf/intentcfg/internal/errs"
)

// PhraseResult is the output of phrase compilation. An empty Expression means
// compilation failed; Errors then says why and Confidence is 0.
type PhraseResult struct {
	Expression  string   `json:"expression"`
	Phrases     []string `json:"phrases"`
	Rules       []Rule   `json:"rules,omitempty"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Errors      []string `json:"errors,omitempty"`
}

// Err returns a validation error when the result has no usable expression.
func (r PhraseResult) Err() error {
	if r.Expression != "" {
		return nil
	}
	msg := "no usable expression"
	if len(r.Errors) > 0 {
		msg = strings.Join(r.Errors, "; ")
	}
	return errs.E(errs.Validation, "compile phrases", "%s", msg)
}

// PhraseSuggester infers an expression from example phrases.
type PhraseSuggester interface {
	SuggestFromPhrases(ctx context.Context, phrases []string, intent, kind string) (PhraseResult, error)
}

// HeuristicSuggester is the deterministic PhraseSuggester.
type HeuristicSuggester struct{}

// SuggestFromPhrases implements PhraseSuggester.
func (HeuristicSuggester) SuggestFromPhrases(_ context.Context, phrases []string, intent, kind string) (PhraseResult, error) {
	return CompileFromPhrases(phrases, intent, kind), nil
}

var stopWords = mapset.NewSet(
	"a", "an", "the", "of", "to", "do", "we", "i", "is", "are", "in", "on", "for", "and", "or", "my", "me", "you", "what", "how",
)

// CompileFromPhrases builds an any_of expression over the normalised phrases
// and scores how coherent the phrase set looks. The expression depends only on
// the phrases, so it can always be regenerated from them.
func CompileFromPhrases(phrases []string, intent, kind string) PhraseResult {
	normalised, dropped := NormalizePhrases(phrases)
	if len(normalised) == 0 {
		errList := []string{"no usable phrases supplied"}
		errList = append(errList, dropped...)
		return PhraseResult{Errors: errList}
	}

	rules := []Rule{{MatchType: MatchAnyOf, Value: strings.Join(normalised, ",")}}
	expr, err := CompileRules(rules)
	if err != nil {
		return PhraseResult{Errors: []string{err.Error()}}
	}

	shared := sharedTokens(normalised)
	intentTerms := mapset.NewSet[string]()
	for _, t := range strings.FieldsFunc(strings.ToLower(intent), func(r rune) bool { return r == '_' || r == '-' || r == ' ' }) {
		intentTerms.Add(t)
	}
	intentHits := shared.Intersect(intentTerms)

	confidence := 0.5 + math.Min(0.1*float64(len(normalised)-1), 0.3)
	if len(normalised) > 1 && shared.Cardinality() > 0 {
		confidence += 0.15
	}
	if intentHits.Cardinality() > 0 {
		confidence += 0.05
	}
	if kind == "negative" {
		confidence *= 0.8
	}
	confidence = math.Round(math.Min(confidence, 1)*100) / 100

	var expl strings.Builder
	fmt.Fprintf(&expl, "matches any of %d phrase(s): %s", len(normalised), strings.Join(normalised, " | "))
	if len(normalised) > 1 {
		if shared.Cardinality() > 0 {
			fmt.Fprintf(&expl, "; shared terms: %s", strings.Join(sortedSlice(shared), ", "))
		} else {
			expl.WriteString("; phrases share no terms")
		}
	}
	if intentHits.Cardinality() > 0 {
		fmt.Fprintf(&expl, "; intent terms present: %s", strings.Join(sortedSlice(intentHits), ", "))
	}
	if kind == "negative" {
		expl.WriteString("; negative pattern, confidence reduced")
	}
	if len(dropped) > 0 {
		fmt.Fprintf(&expl, "; ignored: %s", strings.Join(dropped, "; "))
	}

	return PhraseResult{
		Expression:  expr,
		Phrases:     normalised,
		Rules:       rules,
		Confidence:  confidence,
		Explanation: expl.String(),
	}
}

// NormalizePhrases lowercases, strips commas and trailing punctuation,
// collapses whitespace and de-duplicates while preserving order. The second
// return value describes phrases that were dropped.
func NormalizePhrases(phrases []string) ([]string, []string) {
	var out, dropped []string
	seen := mapset.NewSet[string]()
	for i, p := range phrases {
		p = strings.ToLower(strings.ReplaceAll(p, ",", " "))
		p = strings.Join(strings.Fields(p), " ")
		p = strings.TrimRight(p, "?!. ")
		switch {
		case p == "":
			dropped = append(dropped, fmt.Sprintf("phrase %d is empty", i+1))
		case seen.Contains(p):
			dropped = append(dropped, fmt.Sprintf("phrase %d duplicates %q", i+1, p))
		default:
			seen.Add(p)
			out = append(out, p)
		}
	}
	return out, dropped
}

func sharedTokens(phrases []string) mapset.Set[string] {
	var shared mapset.Set[string]
	for _, p := range phrases {
		tokens := mapset.NewSet[string]()
		for _, t := range strings.Fields(p) {
			if !stopWords.Contains(t) {
				tokens.Add(t)
			}
		}
		if shared == nil {
			shared = tokens
			continue
		}
		shared = shared.Intersect(tokens)
	}
	if shared == nil {
		return mapset.NewSet[string]()
	}
	return shared
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
