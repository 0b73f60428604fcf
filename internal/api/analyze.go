package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/session"
	"github.com/ashureev/neuroscanx/internal/triage"
)

// ErrRateLimited is returned when a device exceeds its analysis budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Analyze runs one analysis of the session's draft.
//
// The model call is detached from the request so a dropped connection does
// not abandon it; the outcome is visible through GET /api/session.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)
	device := identity.DeviceIDFromContext(r.Context())

	// Only submissions that would reach the model count against the limit.
	admit := func() error {
		if !h.limiter.Allow(device) {
			return ErrRateLimited
		}
		return nil
	}

	err := s.AnalyzeIf(context.WithoutCancel(r.Context()), h.analyzer, admit)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, s.Snapshot())
	case errors.Is(err, ErrRateLimited):
		Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrWrongView),
		errors.Is(err, session.ErrAnalysisInFlight),
		errors.Is(err, session.ErrSuperseded),
		errors.Is(err, domain.ErrEmptySubmission):
		fail(w, s, err)
	default:
		snap := s.Snapshot()
		slog.Warn("Analysis failed", "session_id", s.ID(), "kind", snap.ErrorKind, "error", err)
		JSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   snap.Error,
			Kind:    triage.Classify(err),
			Session: snap,
		})
	}
}
