// Package api provides HTTP handlers for the NeuroScanX API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/neuroscanx/internal/auth"
	"github.com/ashureev/neuroscanx/internal/config"
	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/media"
	"github.com/ashureev/neuroscanx/internal/session"
	"github.com/go-chi/chi/v5"
)

// Renderer exports a report document.
type Renderer interface {
	Render(rep *domain.Report) ([]byte, error)
}

// StreamCloser terminates a session's live speech stream.
type StreamCloser interface {
	Close(sessionKey string)
}

// Handler serves every session operation. Each request acts on the session
// of its device and tab.
type Handler struct {
	sessions *session.Registry
	analyzer session.Analyzer
	renderer Renderer
	streams  StreamCloser
	limiter  *RateLimiter
	cfg      *config.Config
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(sessions *session.Registry, analyzer session.Analyzer, renderer Renderer, streams StreamCloser, limiter *RateLimiter, cfg *config.Config) *Handler {
	return &Handler{
		sessions: sessions,
		analyzer: analyzer,
		renderer: renderer,
		streams:  streams,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)

		r.Get("/session", h.GetSession)
		r.Post("/session/theme", h.ToggleTheme)

		r.Route("/nav", func(r chi.Router) {
			r.Post("/signin", h.navigate((*session.Session).ChooseSignIn))
			r.Post("/signup", h.navigate((*session.Session).ChooseSignUp))
			r.Post("/switch", h.navigate((*session.Session).SwitchAuthMode))
			r.Post("/back", h.navigate((*session.Session).Back))
		})

		r.Post("/auth/submit", h.SubmitCredentials)
		r.Post("/auth/logout", h.Logout)

		r.Route("/draft", func(r chi.Router) {
			r.Put("/", h.UpdateDraft)
			r.Post("/images", h.UploadImages)
			r.Delete("/images/{index}", h.RemoveImage)
			r.Post("/voice", h.ToggleVoice)
			r.Delete("/voice", h.ClearVoice)
		})

		r.Post("/analyze", h.Analyze)
		r.Post("/results/back", h.navigate((*session.Session).ReturnToInput))

		r.Route("/report", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/radar.svg", h.GetRadarSVG)
			r.Get("/pdf", h.GetPDF)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorResponse is an error that carries the resulting session state.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Kind    string           `json:"error_kind,omitempty"`
	Session session.Snapshot `json:"session"`
}

// sessionFor returns the session of the request's device and tab.
func (h *Handler) sessionFor(r *http.Request) *session.Session {
	return h.sessions.GetOrCreate(identity.SessionKeyFromContext(r.Context()))
}

// fail writes err with the snapshot of s.
func fail(w http.ResponseWriter, s *session.Session, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "session_id", s.ID(), "error", err)
	}
	JSON(w, status, ErrorResponse{Error: err.Error(), Session: s.Snapshot()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrWrongView),
		errors.Is(err, session.ErrAnalysisInFlight),
		errors.Is(err, session.ErrSuperseded),
		errors.Is(err, auth.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptySubmission),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrImageIndex):
		return http.StatusNotFound
	case errors.Is(err, media.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrUnsupportedMedia),
		errors.Is(err, media.ErrEmptyImage):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// navigate adapts a session transition into a handler.
func (h *Handler) navigate(transition func(*session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := h.sessionFor(r)
		if err := transition(s); err != nil {
			fail(w, s, err)
			return
		}
		JSON(w, http.StatusOK, s.Snapshot())
	}
}
