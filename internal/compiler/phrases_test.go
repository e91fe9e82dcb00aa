package compiler

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/errs"
)

func TestCompileFromPhrases(t *testing.T) {
	res := CompileFromPhrases([]string{"How many students", "number of  students?"}, "count_students", "positive")

	require.NoError(t, res.Err())
	assert.Equal(t, "(?:.*(how many students|number of students).*)", res.Expression)
	assert.Equal(t, []string{"how many students", "number of students"}, res.Phrases)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
	assert.Contains(t, res.Explanation, "shared terms: students")
	assert.Contains(t, res.Explanation, "intent terms present: students")

	re := regexp.MustCompile("(?i)" + res.Expression)
	assert.True(t, re.MatchString("How many students do we have?"))
	assert.False(t, re.MatchString("how many tutors"))
}

func TestCompileFromPhrases_Deterministic(t *testing.T) {
	in := []string{"cancel my order", "stop the order", "cancel my order"}
	a := CompileFromPhrases(in, "cancel_order", "positive")
	b := CompileFromPhrases(in, "cancel_order", "positive")
	assert.Equal(t, a, b)
	assert.Len(t, a.Phrases, 2)
	assert.Contains(t, a.Explanation, "phrase 3 duplicates")
}

func TestCompileFromPhrases_Negative(t *testing.T) {
	pos := CompileFromPhrases([]string{"refund"}, "refund", "positive")
	neg := CompileFromPhrases([]string{"refund"}, "refund", "negative")
	assert.Less(t, neg.Confidence, pos.Confidence)
	assert.Contains(t, neg.Explanation, "negative pattern")
}

func TestCompileFromPhrases_NoUsablePhrases(t *testing.T) {
	res := CompileFromPhrases([]string{"", "  ", "?!"}, "x", "positive")

	assert.Empty(t, res.Expression)
	assert.Equal(t, 0.0, res.Confidence)
	assert.NotEmpty(t, res.Errors)

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestCompileFromPhrases_CommaInPhrase(t *testing.T) {
	res := CompileFromPhrases([]string{"hello, world"}, "greet", "positive")
	require.NoError(t, res.Err())
	assert.Equal(t, []string{"hello world"}, res.Phrases)
}

func TestHeuristicSuggester(t *testing.T) {
	var s PhraseSuggester = HeuristicSuggester{}
	res, err := s.SuggestFromPhrases(context.Background(), []string{"reset password"}, "reset", "positive")
	require.NoError(t, err)
	assert.Equal(t, "(?:.*(reset password).*)", res.Expression)
}
