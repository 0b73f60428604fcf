package session

import (
	"slices"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/media"
)

// Draft is the dashboard input form.
type Draft struct {
	Symptoms        string
	History         string
	VoiceTranscript string
	Images          []domain.Image
	Listening       bool
}

// ImageView describes a selected image without its bytes.
type ImageView struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// DraftView is the serializable form of a Draft.
type DraftView struct {
	Symptoms        string      `json:"symptoms"`
	History         string      `json:"history"`
	VoiceTranscript string      `json:"voice_transcript"`
	Listening       bool        `json:"listening"`
	Images          []ImageView `json:"images"`
	CanSubmit       bool        `json:"can_submit"`
}

// ImageLabel names an image slot: the first is the primary image, the
// second the comparison image.
func ImageLabel(index int) string {
	if index == 0 {
		return "Primary"
	}
	return "Comparison"
}

// AddImages appends imgs to the selection, keeping the first
// domain.MaxImages in selection order. It returns how many were dropped.
func (d *Draft) AddImages(imgs ...domain.Image) int {
	all := append(slices.Clone(d.Images), imgs...)
	kept := media.Truncate(all)
	d.Images = kept
	return len(all) - len(kept)
}

// RemoveImage drops the image at index. Later images shift down.
func (d *Draft) RemoveImage(index int) bool {
	if index < 0 || index >= len(d.Images) {
		return false
	}
	d.Images = slices.Delete(slices.Clone(d.Images), index, index+1)
	return true
}

// AppendFinalSegment adds one finalized speech segment to both the
// transcript and the symptom text.
func (d *Draft) AppendFinalSegment(segment string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return
	}
	d.VoiceTranscript = strings.TrimSpace(d.VoiceTranscript + " " + segment)
	if d.Symptoms != "" {
		d.Symptoms = d.Symptoms + " " + segment
	} else {
		d.Symptoms = segment
	}
}

// Request returns the submission for the current form values.
func (d *Draft) Request() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		Symptoms:        d.Symptoms,
		History:         d.History,
		VoiceTranscript: d.VoiceTranscript,
		Images:          slices.Clone(d.Images),
	}
}

// View returns the serializable form of the draft.
func (d *Draft) View() DraftView {
	images := make([]ImageView, 0, len(d.Images))
	for i, img := range d.Images {
		images = append(images, ImageView{
			Index:    i,
			Label:    ImageLabel(i),
			Name:     img.Name,
			MIMEType: img.MIMEType,
			Size:     len(img.Data),
		})
	}
	return DraftView{
		Symptoms:        d.Symptoms,
		History:         d.History,
		VoiceTranscript: d.VoiceTranscript,
		Listening:       d.Listening,
		Images:          images,
		CanSubmit:       !d.Request().IsEmpty(),
	}
}
