package models

import "time"

// VersionStatus is the lifecycle state of a configuration version.
type VersionStatus string

const (
	VersionStatusCandidate VersionStatus = "candidate"
	VersionStatusActive    VersionStatus = "active"
	VersionStatusArchived  VersionStatus = "archived"
)

// Valid reports whether s is a known version status.
func (s VersionStatus) Valid() bool {
	switch s {
	case VersionStatusCandidate, VersionStatusActive, VersionStatusArchived:
		return true
	}
	return false
}

// ConfigVersion is a named snapshot of patterns and templates.
// At most one version is active at a time.
type ConfigVersion struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Status        VersionStatus `json:"status" yaml:"status"`
	Notes         string        `json:"notes" yaml:"notes,omitempty"`
	Revision      int           `json:"revision" yaml:"-"`
	PatternCount  int           `json:"pattern_count" yaml:"-"`
	TemplateCount int           `json:"template_count" yaml:"-"`
	CreatedAt     time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"-"`
	ActivatedAt   *time.Time    `json:"activated_at,omitempty" yaml:"-"`
	ArchivedAt    *time.Time    `json:"archived_at,omitempty" yaml:"-"`
}

// Mutable reports whether patterns and templates in the version may change.
func (v *ConfigVersion) Mutable() bool {
	return v.Status != VersionStatusArchived
}
