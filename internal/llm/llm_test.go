package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/harness"
)

func fakeClient(reply string, err error) (*Client, *[]string) {
	var prompts []string
	c := &Client{
		model:   "test-model",
		limiter: newLimiter(0),
		complete: func(_ context.Context, system, user string, _ int64) (string, error) {
			prompts = append(prompts, user)
			return reply, err
		},
	}
	return c, &prompts
}

func TestBuildClassifyPrompt(t *testing.T) {
	t.Run("with candidates", func(t *testing.T) {
		system, user := buildClassifyPrompt("how many students?", []harness.Candidate{
			{Handler: "students", Intent: "count_students"},
			{Handler: "billing", Intent: "refund"},
		})

		assert.Contains(t, system, `"handler"`)
		assert.Contains(t, system, `"confidence"`)
		assert.Contains(t, system, "JSON")
		assert.Contains(t, user, "handler: students, intent: count_students")
		assert.Contains(t, user, "handler: billing, intent: refund")
		assert.True(t, strings.HasSuffix(user, "how many students?"))
	})

	t.Run("without candidates", func(t *testing.T) {
		_, user := buildClassifyPrompt("hi", nil)
		assert.Contains(t, user, "(none configured)")
	})
}

func TestBuildPhrasePrompt(t *testing.T) {
	system, user := buildPhrasePrompt([]string{"how many students"}, "count_students", "positive")
	assert.Contains(t, system, `"phrases"`)
	assert.Contains(t, user, "Intent: count_students")
	assert.Contains(t, user, "Pattern kind: positive")
	assert.Contains(t, user, "- how many students")

	_, user = buildPhrasePrompt([]string{"x"}, "i", "")
	assert.NotContains(t, user, "Pattern kind")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}

func TestParseClassification(t *testing.T) {
	c, err := parseClassification("```json\n{\"handler\":\"students\",\"intent\":\"count\",\"confidence\":0.9,\"reason\":\"asks for a count\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "students", c.Handler)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)

	_, err = parseClassification(`{"intent":"x","confidence":0.5}`)
	assert.ErrorContains(t, err, "no handler")

	_, err = parseClassification(`{"handler":"x","confidence":3}`)
	assert.ErrorContains(t, err, "out of range")

	_, err = parseClassification("not json")
	assert.ErrorContains(t, err, "parse LLM response")
}

func TestClassify(t *testing.T) {
	c, prompts := fakeClient(`{"handler":"billing","intent":"refund","confidence":0.75,"reason":"money back"}`, nil)
	res, err := c.Classify(context.Background(), "give me my money back", []harness.Candidate{{Handler: "billing", Intent: "refund"}})
	require.NoError(t, err)
	assert.Equal(t, "billing", res.Handler)
	assert.Equal(t, "test-model", res.Model)
	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "money back")

	c, _ = fakeClient("", errors.New("overloaded"))
	_, err = c.Classify(context.Background(), "x", nil)
	assert.ErrorContains(t, err, "overloaded")
}

func TestSuggestFromPhrases(t *testing.T) {
	c, _ := fakeClient(`{"phrases":["how many students","student count","number of pupils"]}`, nil)
	res, err := c.SuggestFromPhrases(context.Background(), []string{"How many students"}, "count_students", "positive")
	require.NoError(t, err)
	assert.Equal(t, []string{"how many students", "student count", "number of pupils"}, res.Phrases)
	assert.Equal(t, `(?:.*(how many students|student count|number of pupils).*)`, res.Expression)
	assert.Contains(t, res.Explanation, "proposed by test-model")

	c, _ = fakeClient("garbage", nil)
	_, err = c.SuggestFromPhrases(context.Background(), []string{"x"}, "i", "")
	assert.Error(t, err)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c, _ := fakeClient(`{"handler":"a","confidence":0.5}`, nil)
	c.limiter = newLimiter(0.001)
	ctx := context.Background()
	_, err := c.Classify(ctx, "first", nil)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Classify(cancelled, "second", nil)
	assert.ErrorContains(t, err, "rate limit wait")
}
