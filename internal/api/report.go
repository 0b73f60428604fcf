package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/report"
	"github.com/ashureev/neuroscanx/internal/session"
)

// currentReport returns the held report or writes a conflict.
func (h *Handler) currentReport(w http.ResponseWriter, r *http.Request) (*domain.Report, bool) {
	s := h.sessionFor(r)
	rep, ok := s.Report()
	if !ok {
		fail(w, s, session.ErrWrongView)
		return nil, false
	}
	return rep, true
}

// GetReport returns the tabbed report view model.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	tab, ok := report.ParseTab(r.URL.Query().Get("tab"))
	if !ok {
		Error(w, http.StatusBadRequest, "tab must be patient or clinician")
		return
	}
	rep, ok := h.currentReport(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, report.Build(rep, tab))
}

// GetRadarSVG returns the health radar chart.
func (h *Handler) GetRadarSVG(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.currentReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(report.RadarSVG(rep.Result.HealthRadar))); err != nil {
		slog.Debug("Failed to write radar SVG", "error", err)
	}
}

// GetPDF downloads the clinical PDF of the current report.
func (h *Handler) GetPDF(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.currentReport(w, r)
	if !ok {
		return
	}

	data, err := h.renderer.Render(rep)
	if err != nil {
		slog.Error("PDF export failed", "report_id", rep.ID, "error", err)
		if errors.Is(err, report.ErrFontUnavailable) {
			Error(w, http.StatusServiceUnavailable, "PDF export unavailable")
			return
		}
		Error(w, http.StatusInternalServerError, "failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(rep)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write PDF", "error", err)
	}
}
