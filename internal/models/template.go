package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TemplateType is the role a template plays in the prompt.
type TemplateType string

const (
	TemplateTypeSystem          TemplateType = "system"
	TemplateTypeUser            TemplateType = "user"
	TemplateTypeFallbackContext TemplateType = "fallback_context"
)

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	switch t {
	case TemplateTypeSystem, TemplateTypeUser, TemplateTypeFallbackContext:
		return true
	}
	return false
}

// Template is a response/prompt body scoped to a single ConfigVersion.
type Template struct {
	ID        string       `json:"id" yaml:"-"`
	VersionID string       `json:"version_id" yaml:"-"`
	Handler   string       `json:"handler" yaml:"handler"`
	Intent    string       `json:"intent,omitempty" yaml:"intent,omitempty"`
	Type      TemplateType `json:"template_type" yaml:"template_type"`
	Body      string       `json:"body" yaml:"body"`
	Enabled   bool         `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"-"`
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the distinct {name} placeholders in the body, in order of first use.
func (t *Template) Placeholders() []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes placeholders. Every placeholder must have a value.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, name := range t.Placeholders() {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return placeholderRe.ReplaceAllStringFunc(t.Body, func(m string) string {
		return vars[m[1:len(m)-1]]
	}), nil
}
