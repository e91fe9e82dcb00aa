package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/configver"
	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

// ActorHeader carries the caller identity recorded in audit fields.
const ActorHeader = "X-Actor"

// Server provides the REST API handlers.
type Server struct {
	versions     *configver.Service
	commands     *suggestions.Dispatcher
	harness      *harness.Harness
	log          *zap.Logger
	defaultActor string
}

// NewServer creates a new API server. defaultActor is used when a request
// carries no X-Actor header.
func NewServer(versions *configver.Service, commands *suggestions.Dispatcher, h *harness.Harness, log *zap.Logger, defaultActor string) *Server {
	return &Server{
		versions:     versions,
		commands:     commands,
		harness:      h,
		log:          logging.OrNop(log),
		defaultActor: defaultActor,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", ActorHeader},
		MaxAge:         300,
	}))
	r.Use(s.actorMiddleware)
	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/versions", func(r chi.Router) {
			r.Get("/", s.listVersions)
			r.Post("/", s.createVersion)
			r.Post("/import", s.importVersion)
			r.Get("/active", s.activeVersion)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getVersion)
				r.Put("/", s.updateVersion)
				r.Post("/promote", s.promoteVersion)
				r.Post("/archive", s.archiveVersion)
				r.Get("/export", s.exportVersion)
				r.Get("/diff/{other}", s.diffVersions)
				r.Get("/health", s.versionHealth)
				r.Get("/patterns", s.listPatterns)
				r.Post("/patterns", s.createPattern)
				r.Get("/templates", s.listTemplates)
				r.Post("/templates", s.createTemplate)
			})
		})

		r.Route("/patterns/{id}", func(r chi.Router) {
			r.Get("/", s.getPattern)
			r.Put("/", s.updatePattern)
			r.Delete("/", s.deletePattern)
			r.Post("/regenerate", s.regeneratePattern)
		})

		r.Route("/templates/{id}", func(r chi.Router) {
			r.Get("/", s.getTemplate)
			r.Put("/", s.updateTemplate)
			r.Delete("/", s.deleteTemplate)
		})

		r.Route("/compile", func(r chi.Router) {
			r.Post("/rules", s.compileRules)
			r.Post("/phrases", s.compilePhrases)
			r.Post("/mode", s.assessMode)
			r.Post("/parse", s.parseRules)
		})

		r.Route("/suggestions", func(r chi.Router) {
			r.Get("/", s.listSuggestions)
			r.Post("/", s.createSuggestion)
			r.Get("/similar", s.similarSuggestions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSuggestion)
				r.Post("/review", s.reviewSuggestion)
				r.Post("/reopen", s.reopenSuggestion)
				r.Post("/addressed", s.markAddressed)
				r.Get("/action-items", s.listSuggestionActionItems)
				r.Post("/action-items", s.createActionItem)
			})
		})

		r.Route("/action-items", func(r chi.Router) {
			r.Get("/", s.listActionItems)
			r.Get("/{id}", s.getActionItem)
			r.Put("/{id}/status", s.setActionItemStatus)
		})

		r.Post("/classify/test", s.testClassify)
		r.Post("/classify/suite", s.runSuite)
	})

	return r
}

type actorKey struct{}

func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = s.defaultActor
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) string {
	a, _ := r.Context().Value(actorKey{}).(string)
	return a
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("actor", actorFrom(r)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.Validation, errs.MissingAnalysis:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.InvalidState, errs.InvalidTransition, errs.ImmutableVersion, errs.PreconditionFailed, errs.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with its mapped status and kind.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(errs.KindOf(err))})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
