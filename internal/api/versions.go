package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/health"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.versions.ListVersions(r.Context(), models.VersionStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if versions == nil {
		versions = []*models.ConfigVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

type createVersionRequest struct {
	Name     string `json:"name"`
	Notes    string `json:"notes"`
	CopyFrom string `json:"copy_from,omitempty"`
}

func (s *Server) createVersion(w http.ResponseWriter, r *http.Request) {
	var req createVersionRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.versions.CreateVersion(r.Context(), req.Name, req.Notes, req.CopyFrom)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.GetVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) activeVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.ActiveVersion(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) updateVersion(w http.ResponseWriter, r *http.Request) {
	var req createVersionRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.versions.UpdateVersion(r.Context(), chi.URLParam(r, "id"), req.Name, req.Notes)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) promoteVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.Promote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) archiveVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var err error
	if queryBool(r, "force") {
		err = s.versions.ForceArchive(r.Context(), id)
	} else {
		err = s.versions.Archive(r.Context(), id)
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	v, err := s.versions.GetVersion(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) exportVersion(w http.ResponseWriter, r *http.Request) {
	data, err := s.versions.ExportVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) importVersion(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	v, err := s.versions.ImportVersion(r.Context(), data, r.URL.Query().Get("name"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) diffVersions(w http.ResponseWriter, r *http.Request) {
	d, err := s.versions.DiffVersions(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "other"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) versionHealth(w http.ResponseWriter, r *http.Request) {
	h, err := health.NewScorer(s.versions, s.commands.Workflow()).Assess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// Patterns

func (s *Server) listPatterns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	patterns, err := s.versions.ListPatterns(r.Context(), store.PatternListFilter{
		VersionID:      chi.URLParam(r, "id"),
		Handler:        q.Get("handler"),
		Intent:         q.Get("intent"),
		Kind:           models.PatternKind(q.Get("kind")),
		EnabledOnly:    queryBool(r, "enabled"),
		SortByPriority: q.Get("sort") == "priority",
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if patterns == nil {
		patterns = []*models.Pattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

type createPatternResponse struct {
	Pattern     *models.Pattern        `json:"pattern"`
	Compilation *compiler.PhraseResult `json:"compilation,omitempty"`
}

func (s *Server) createPattern(w http.ResponseWriter, r *http.Request) {
	var p models.Pattern
	if !decode(w, r, &p) {
		return
	}
	p.VersionID = chi.URLParam(r, "id")

	resp := createPatternResponse{Pattern: &p}
	if len(p.Phrases) > 0 {
		res, err := s.versions.AddPatternFromPhrases(r.Context(), &p, p.Phrases)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		resp.Compilation = &res
	} else if err := s.versions.AddPattern(r.Context(), &p); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getPattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.versions.GetPattern(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updatePattern decodes the body over the stored pattern, so omitted fields keep their values.
func (s *Server) updatePattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.versions.GetPattern(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if !decode(w, r, p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := s.versions.UpdatePattern(r.Context(), p); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePattern(w http.ResponseWriter, r *http.Request) {
	if err := s.versions.DeletePattern(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) regeneratePattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.versions.RegeneratePattern(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Templates

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	templates, err := s.versions.ListTemplates(r.Context(), store.TemplateListFilter{
		VersionID:   chi.URLParam(r, "id"),
		Handler:     q.Get("handler"),
		Intent:      q.Get("intent"),
		Type:        models.TemplateType(q.Get("type")),
		EnabledOnly: queryBool(r, "enabled"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if templates == nil {
		templates = []*models.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.Template
	if !decode(w, r, &t) {
		return
	}
	t.VersionID = chi.URLParam(r, "id")
	if err := s.versions.AddTemplate(r.Context(), &t); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.versions.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.versions.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if !decode(w, r, t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	if err := s.versions.UpdateTemplate(r.Context(), t); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.versions.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
