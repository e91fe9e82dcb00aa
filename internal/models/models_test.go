package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/compiler"
)

func TestTemplatePlaceholders(t *testing.T) {
	tpl := &Template{Body: "Hi {name}, you asked about {topic}. Bye {name}. {not valid} {9x}"}
	assert.Equal(t, []string{"name", "topic"}, tpl.Placeholders())

	assert.Empty(t, (&Template{Body: "no placeholders"}).Placeholders())
}

func TestTemplateRender(t *testing.T) {
	tpl := &Template{Body: "Hi {name}, about {topic}."}

	out, err := tpl.Render(map[string]string{"name": "Ana", "topic": "grades", "extra": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, about grades.", out)

	_, err = tpl.Render(map[string]string{"name": "Ana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestPatternHandWritten(t *testing.T) {
	assert.True(t, (&Pattern{Expression: `\bhi\b`}).HandWritten())
	assert.False(t, (&Pattern{Phrases: []string{"hi"}}).HandWritten())
	assert.False(t, (&Pattern{Rules: []compiler.Rule{{MatchType: compiler.MatchExact, Value: "hi"}}}).HandWritten())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, PatternKindSynonym.Valid())
	assert.False(t, PatternKind("regex").Valid())
	assert.True(t, TemplateTypeFallbackContext.Valid())
	assert.False(t, TemplateType("footer").Valid())
	assert.True(t, SuggestionTypeIntentMapping.Valid())
	assert.False(t, SuggestionType("bug_report").Valid())
	assert.True(t, PriorityCritical.Valid())
	assert.False(t, Priority("urgent").Valid())
	assert.True(t, VersionStatusArchived.Valid())
	assert.False(t, VersionStatus("draft").Valid())
}

func TestActionItemStatusTerminal(t *testing.T) {
	assert.True(t, ActionItemStatusCompleted.Terminal())
	assert.True(t, ActionItemStatusCancelled.Terminal())
	assert.False(t, ActionItemStatusPending.Terminal())
	assert.False(t, ActionItemStatusInProgress.Terminal())
}

func TestConfigVersionMutable(t *testing.T) {
	assert.True(t, (&ConfigVersion{Status: VersionStatusCandidate}).Mutable())
	assert.True(t, (&ConfigVersion{Status: VersionStatusActive}).Mutable())
	assert.False(t, (&ConfigVersion{Status: VersionStatusArchived}).Mutable())
}
