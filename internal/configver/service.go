// Package configver manages configuration versions and the patterns and
// templates they contain.
package configver

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// Service is the configuration store facade used by the CLI, API and MCP server.
type Service struct {
	store     store.Store
	suggester compiler.PhraseSuggester
	log       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logging.OrNop(l) }
}

// WithSuggester replaces the deterministic phrase suggester.
func WithSuggester(ps compiler.PhraseSuggester) Option {
	return func(s *Service) {
		if ps != nil {
			s.suggester = ps
		}
	}
}

// NewService creates a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		suggester: compiler.HeuristicSuggester{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Versions ---

// CreateVersion creates a candidate version, optionally cloned from copyFrom.
func (s *Service) CreateVersion(ctx context.Context, name, notes, copyFrom string) (*models.ConfigVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.E(errs.Validation, "create version", "name is required")
	}
	v := &models.ConfigVersion{Name: name, Notes: notes}
	if err := s.store.CreateVersion(ctx, v, copyFrom); err != nil {
		return nil, err
	}
	s.log.Info("version created",
		zap.String("version_id", v.ID),
		zap.String("name", v.Name),
		zap.String("copied_from", copyFrom),
		zap.Int("patterns", v.PatternCount),
		zap.Int("templates", v.TemplateCount))
	return v, nil
}

// GetVersion returns a version by id.
func (s *Service) GetVersion(ctx context.Context, id string) (*models.ConfigVersion, error) {
	return s.store.GetVersion(ctx, id)
}

// ListVersions lists versions, optionally by status.
func (s *Service) ListVersions(ctx context.Context, status models.VersionStatus) ([]*models.ConfigVersion, error) {
	if status != "" && !status.Valid() {
		return nil, errs.E(errs.Validation, "list versions", "unknown status %q", status)
	}
	return s.store.ListVersions(ctx, status)
}

// UpdateVersion renames a version or replaces its notes.
func (s *Service) UpdateVersion(ctx context.Context, id, name, notes string) (*models.ConfigVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.E(errs.Validation, "update version", "name is required")
	}
	if err := s.store.UpdateVersionNotes(ctx, id, name, notes); err != nil {
		return nil, err
	}
	return s.store.GetVersion(ctx, id)
}

// ActiveVersion returns the active version. NotFound means no version is active.
func (s *Service) ActiveVersion(ctx context.Context) (*models.ConfigVersion, error) {
	return s.store.GetActiveVersion(ctx)
}

// Promote makes a candidate the active version and archives the previous one.
func (s *Service) Promote(ctx context.Context, id string) (*models.ConfigVersion, error) {
	prev, err := s.store.PromoteVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("version promoted", zap.String("version_id", id), zap.String("archived", prev))
	return s.store.GetVersion(ctx, id)
}

// Archive archives a candidate. Archiving the active version is refused;
// use ForceArchive for that.
func (s *Service) Archive(ctx context.Context, id string) error {
	if err := s.store.ArchiveVersion(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("version archived", zap.String("version_id", id))
	return nil
}

// ForceArchive archives a version even if it is active. When it was active the
// system is left with no active version until another one is promoted.
func (s *Service) ForceArchive(ctx context.Context, id string) error {
	v, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.ArchiveVersion(ctx, id, true); err != nil {
		return err
	}
	if v.Status == models.VersionStatusActive {
		s.log.Warn("active version force-archived; no version is active until another is promoted",
			zap.String("version_id", id))
	} else {
		s.log.Info("version archived", zap.String("version_id", id))
	}
	return nil
}

// --- Patterns ---

// AddPattern validates p and stores it. Patterns carrying rules or phrases
// have their expression regenerated from them.
func (s *Service) AddPattern(ctx context.Context, p *models.Pattern) error {
	if err := preparePattern("add pattern", p); err != nil {
		return err
	}
	if err := s.store.CreatePattern(ctx, p); err != nil {
		return err
	}
	s.log.Debug("pattern added",
		zap.String("pattern_id", p.ID),
		zap.String("version_id", p.VersionID),
		zap.String("handler", p.Handler),
		zap.String("intent", p.Intent))
	return nil
}

// AddPatternFromRules compiles rules into p.Expression and stores p.
func (s *Service) AddPatternFromRules(ctx context.Context, p *models.Pattern, rules []compiler.Rule) error {
	if len(rules) == 0 {
		return errs.E(errs.Validation, "add pattern", "at least one rule is required")
	}
	p.Rules = rules
	p.Phrases = nil
	return s.AddPattern(ctx, p)
}

// AddPatternFromPhrases runs the phrase suggester and stores the result.
// A result without a usable expression is returned as a Validation error
// and nothing is stored.
func (s *Service) AddPatternFromPhrases(ctx context.Context, p *models.Pattern, phrases []string) (compiler.PhraseResult, error) {
	res, err := s.suggester.SuggestFromPhrases(ctx, phrases, p.Intent, string(p.Kind))
	if err != nil {
		return res, err
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	p.Phrases = res.Phrases
	p.Rules = nil
	p.Confidence = res.Confidence
	if p.Rationale == "" {
		p.Rationale = res.Explanation
	}
	if err := s.AddPattern(ctx, p); err != nil {
		return res, err
	}
	return res, nil
}

// SuggestPhrases runs the configured phrase suggester without storing anything.
func (s *Service) SuggestPhrases(ctx context.Context, phrases []string, intent, kind string) (compiler.PhraseResult, error) {
	return s.suggester.SuggestFromPhrases(ctx, phrases, intent, kind)
}

// GetPattern returns a pattern by id.
func (s *Service) GetPattern(ctx context.Context, id string) (*models.Pattern, error) {
	return s.store.GetPattern(ctx, id)
}

// ListPatterns lists patterns in insertion order unless filter.SortByPriority is set.
func (s *Service) ListPatterns(ctx context.Context, filter store.PatternListFilter) ([]*models.Pattern, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, errs.E(errs.Validation, "list patterns", "unknown kind %q", filter.Kind)
	}
	return s.store.ListPatterns(ctx, filter)
}

// UpdatePattern validates and rewrites p.
func (s *Service) UpdatePattern(ctx context.Context, p *models.Pattern) error {
	if err := preparePattern("update pattern", p); err != nil {
		return err
	}
	return s.store.UpdatePattern(ctx, p)
}

// DeletePattern removes a pattern.
func (s *Service) DeletePattern(ctx context.Context, id string) error {
	return s.store.DeletePattern(ctx, id)
}

// RegeneratePattern recompiles a pattern's expression from its stored rules
// or phrases. A pattern without either is recovered into rules when its
// expression is exactly what the rule compiler would emit; other
// hand-written patterns cannot be regenerated.
func (s *Service) RegeneratePattern(ctx context.Context, id string) (*models.Pattern, error) {
	p, err := s.store.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.HandWritten() {
		rules, ok := compiler.DecompileRules(p.Expression)
		if !ok || len(rules) == 0 {
			return nil, errs.E(errs.Validation, "regenerate pattern", "pattern %s is hand-written", id)
		}
		p.Rules = rules
		s.log.Info("recovered rules from expression", zap.String("pattern_id", id), zap.Int("rules", len(rules)))
	}
	before := p.Expression
	if err := s.UpdatePattern(ctx, p); err != nil {
		return nil, err
	}
	if before != p.Expression {
		s.log.Info("pattern expression regenerated",
			zap.String("pattern_id", id),
			zap.String("before", before),
			zap.String("after", p.Expression))
	}
	return p, nil
}

// preparePattern validates p and derives its expression from rules or phrases.
func preparePattern(op string, p *models.Pattern) error {
	p.Handler = strings.TrimSpace(p.Handler)
	p.Intent = strings.TrimSpace(p.Intent)
	if p.VersionID == "" && op == "add pattern" {
		return errs.E(errs.Validation, op, "version id is required")
	}
	if p.Handler == "" {
		return errs.E(errs.Validation, op, "handler is required")
	}
	if p.Intent == "" {
		return errs.E(errs.Validation, op, "intent is required")
	}
	if !p.Kind.Valid() {
		return errs.E(errs.Validation, op, "unknown kind %q", p.Kind)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return errs.E(errs.Validation, op, "confidence must be within [0,1]")
	}

	switch {
	case len(p.Rules) > 0:
		expr, err := compiler.CompileRules(p.Rules)
		if err != nil {
			return err
		}
		p.Expression = expr
	case len(p.Phrases) > 0:
		res := compiler.CompileFromPhrases(p.Phrases, p.Intent, string(p.Kind))
		if err := res.Err(); err != nil {
			return err
		}
		p.Expression = res.Expression
		p.Phrases = res.Phrases
	}

	if strings.TrimSpace(p.Expression) == "" {
		return errs.E(errs.Validation, op, "expression is required")
	}
	if _, err := regexp.Compile("(?i)" + p.Expression); err != nil {
		return errs.E(errs.Validation, op, "expression does not compile: %v", err)
	}
	return nil
}

// --- Templates ---

// AddTemplate validates and stores t.
func (s *Service) AddTemplate(ctx context.Context, t *models.Template) error {
	if t.VersionID == "" {
		return errs.E(errs.Validation, "add template", "version id is required")
	}
	if err := validateTemplate("add template", t); err != nil {
		return err
	}
	return s.store.CreateTemplate(ctx, t)
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates lists templates in insertion order.
func (s *Service) ListTemplates(ctx context.Context, filter store.TemplateListFilter) ([]*models.Template, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, errs.E(errs.Validation, "list templates", "unknown template type %q", filter.Type)
	}
	return s.store.ListTemplates(ctx, filter)
}

// UpdateTemplate validates and rewrites t.
func (s *Service) UpdateTemplate(ctx context.Context, t *models.Template) error {
	if err := validateTemplate("update template", t); err != nil {
		return err
	}
	return s.store.UpdateTemplate(ctx, t)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.store.DeleteTemplate(ctx, id)
}

func validateTemplate(op string, t *models.Template) error {
	t.Handler = strings.TrimSpace(t.Handler)
	if t.Handler == "" {
		return errs.E(errs.Validation, op, "handler is required")
	}
	if !t.Type.Valid() {
		return errs.E(errs.Validation, op, "unknown template type %q", t.Type)
	}
	if strings.TrimSpace(t.Body) == "" {
		return errs.E(errs.Validation, op, "body is required")
	}
	return nil
}
