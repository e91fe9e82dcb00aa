package models

import (
	"time"

	"github.com/joescharf/intentcfg/internal/compiler"
)

// PatternKind says how a pattern participates in routing.
type PatternKind string

const (
	PatternKindPositive PatternKind = "positive"
	PatternKindNegative PatternKind = "negative"
	PatternKindSynonym  PatternKind = "synonym"
)

// Valid reports whether k is a known pattern kind.
func (k PatternKind) Valid() bool {
	switch k {
	case PatternKindPositive, PatternKindNegative, PatternKindSynonym:
		return true
	}
	return false
}

// Pattern is one matching rule scoped to a single ConfigVersion.
//
// Priority: a higher value wins. Patterns with equal priority are ordered
// by insertion.
type Pattern struct {
	ID         string          `json:"id" yaml:"-"`
	VersionID  string          `json:"version_id" yaml:"-"`
	Handler    string          `json:"handler" yaml:"handler"`
	Intent     string          `json:"intent" yaml:"intent"`
	Kind       PatternKind     `json:"kind" yaml:"kind"`
	Expression string          `json:"expression" yaml:"expression"`
	Phrases    []string        `json:"phrases,omitempty" yaml:"phrases,omitempty"`
	Rules      []compiler.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	Priority   int             `json:"priority" yaml:"priority"`
	Enabled    bool            `json:"enabled" yaml:"enabled"`
	Scope      string          `json:"scope,omitempty" yaml:"scope,omitempty"`
	Confidence float64         `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Rationale  string          `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	CreatedAt  time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"-"`
}

// HandWritten reports whether the expression is opaque to the compiler.
func (p *Pattern) HandWritten() bool {
	return len(p.Phrases) == 0 && len(p.Rules) == 0
}
