package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/media"
	"github.com/go-chi/chi/v5"
)

const (
	// imagesField is the multipart field carrying selected files.
	imagesField       = "images"
	maxDraftTextBody  = 1 << 20
	multipartOverhead = 1 << 20
	// DroppedHeader reports how many uploaded images fell beyond the limit.
	DroppedHeader     = "X-NSX-Images-Dropped"
)

// DraftText is the body of PUT /api/draft. Omitted fields are unchanged.
type DraftText struct {
	Symptoms *string `json:"symptoms"`
	History  *string `json:"history"`
}

// UpdateDraft sets the symptom and history text.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxDraftTextBody)
	var body DraftText
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.SetText(body.Symptoms, body.History); err != nil {
		fail(w, s, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// UploadImages appends the uploaded files to the image selection. Only the
// first domain.MaxImages images of the combined selection are kept.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)

	limit := h.cfg.MaxImageBytes
	r.Body = http.MaxBytesReader(w, r.Body, int64(domain.MaxImages)*limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Debug("Failed to remove multipart temp files", "error", err)
		}
	}()

	files := r.MultipartForm.File[imagesField]
	if len(files) == 0 {
		Error(w, http.StatusBadRequest, "no images in field "+strconv.Quote(imagesField))
		return
	}

	// Files past the limit would be dropped anyway.
	extra := len(files) - domain.MaxImages
	if extra > 0 {
		files = files[:domain.MaxImages]
	} else {
		extra = 0
	}

	imgs := make([]domain.Image, 0, len(files))
	for _, fh := range files {
		img, err := readUpload(fh, limit)
		if err != nil {
			fail(w, s, err)
			return
		}
		imgs = append(imgs, img)
	}

	dropped, err := s.AddImages(imgs...)
	if err != nil {
		fail(w, s, err)
		return
	}
	dropped += extra
	if dropped > 0 {
		slog.Info("Images beyond the selection limit dropped", "session_id", s.ID(), "dropped", dropped)
	}
	w.Header().Set(DroppedHeader, strconv.Itoa(dropped))
	JSON(w, http.StatusOK, s.Snapshot())
}

func readUpload(fh *multipart.FileHeader, limit int64) (domain.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return media.Read(f, fh.Filename, fh.Header.Get("Content-Type"), limit)
}

// RemoveImage removes one selected image by index.
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid image index")
		return
	}
	if err := s.RemoveImage(index); err != nil {
		fail(w, s, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// ToggleVoice starts or stops voice capture. Stopping ends the speech stream.
func (h *Handler) ToggleVoice(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)

	on, err := s.ToggleListening()
	if err != nil {
		fail(w, s, err)
		return
	}
	if !on {
		h.streams.Close(identity.SessionKeyFromContext(r.Context()))
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// ClearVoice empties the voice transcript.
func (h *Handler) ClearVoice(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(r)
	if err := s.ClearVoice(); err != nil {
		fail(w, s, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}
