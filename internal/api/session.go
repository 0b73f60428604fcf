package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/neuroscanx/internal/auth"
	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/identity"
)

// maxCredentialsBody bounds the credential form.
const maxCredentialsBody = 16 << 10

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"auth_mode":       h.cfg.AuthMode,
		"max_images":      domain.MaxImages,
		"max_image_bytes": h.cfg.MaxImageBytes,
		"model":           h.cfg.Gemini.Model,
	})
}

// GetSession returns the session snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.sessionFor(r).Snapshot())
}

// ToggleTheme flips between the dark and light theme.
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)
	s.ToggleTheme()
	JSON(w, http.StatusOK, s.Snapshot())
}

// SubmitCredentials handles the login and signup forms. A missing email or
// password leaves the form in place without an error.
func (h *Handler) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialsBody)
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.SubmitCredentials(r.Context(), creds)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, s.Snapshot())
	case errors.Is(err, auth.ErrMissingCredentials):
		JSON(w, http.StatusOK, s.Snapshot())
	case auth.IsRejection(err):
		slog.Info("Credentials rejected", "session_id", s.ID(), "reason", err)
		fail(w, s, err)
	default:
		fail(w, s, err)
	}
}

// Logout returns to the landing view and ends any speech stream.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)
	if err := s.Logout(); err != nil {
		fail(w, s, err)
		return
	}
	h.streams.Close(identity.SessionKeyFromContext(r.Context()))
	slog.Info("Session logged out", "session_id", s.ID())
	JSON(w, http.StatusOK, s.Snapshot())
}
