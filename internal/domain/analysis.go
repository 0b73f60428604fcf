// Package domain contains core domain types for the NeuroScanX triage server.
package domain

import (
	"errors"
	"strings"
	"time"
)

// MaxImages is the number of images that participate in one analysis.
const MaxImages = 2

// ErrEmptySubmission is returned when a submission carries no symptoms,
// no voice transcript and no images.
var ErrEmptySubmission = errors.New("submission is empty")

// TriageLevel is an ordinal urgency classification.
type TriageLevel string

// Triage levels in increasing order of urgency.
const (
	TriageLow      TriageLevel = "Low"
	TriageMedium   TriageLevel = "Medium"
	TriageHigh     TriageLevel = "High"
	TriageCritical TriageLevel = "Critical"
)

// TriageLevels lists every level from least to most urgent.
var TriageLevels = []TriageLevel{TriageLow, TriageMedium, TriageHigh, TriageCritical}

// Rank returns 1 (Low) through 4 (Critical), or 0 for an unknown level.
func (l TriageLevel) Rank() int {
	for i, v := range TriageLevels {
		if v == l {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether l is one of the four known levels.
func (l TriageLevel) Valid() bool {
	return l.Rank() > 0
}

// HealthRadar holds five independent 0-100 scores.
// Hydration is best at 100; the other four are worst at 100.
type HealthRadar struct {
	Hydration    float64 `json:"hydration"`
	Fatigue      float64 `json:"fatigue"`
	Stress       float64 `json:"stress"`
	Inflammation float64 `json:"inflammation"`
	Severity     float64 `json:"severity"`
}

// Values returns the scores in fixed axis order:
// hydration, fatigue, stress, inflammation, severity.
func (r HealthRadar) Values() [5]float64 {
	return [5]float64{r.Hydration, r.Fatigue, r.Stress, r.Inflammation, r.Severity}
}

// SoapNote is a clinical note in Subjective/Objective/Assessment/Plan form.
type SoapNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// AnalysisResult is the structured reply of one analysis.
// Optional fields use "" when not applicable.
type AnalysisResult struct {
	ChiefComplaint     string      `json:"chiefComplaint"`
	TimelineAnalysis   string      `json:"timelineAnalysis"`
	VoiceSummary       string      `json:"voiceSummary"`
	VisualObservations string      `json:"visualObservations"`
	ImageComparison    string      `json:"imageComparison"`
	MedicineAnalysis   string      `json:"medicineAnalysis"`
	SymptomAnalysis    string      `json:"symptomAnalysis"`
	HealthRadar        HealthRadar `json:"healthRadar"`
	Differentials      []string    `json:"differentials"`
	TriageLevel        TriageLevel `json:"triageLevel"`
	TriageReasoning    string      `json:"triageReasoning"`
	RedFlags           []string    `json:"redFlags"`
	HomeCare           []string    `json:"homeCare"`
	Soap               SoapNote    `json:"soap"`
}

// HasRedFlags returns true if at least one red flag was reported.
func (r *AnalysisResult) HasRedFlags() bool {
	return len(r.RedFlags) > 0
}

// Image is one user-selected image held in memory.
type Image struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// AnalysisRequest is one submission. Images are ordered: the first is the
// current/primary image, the second the comparison/previous one.
type AnalysisRequest struct {
	Symptoms        string
	History         string
	VoiceTranscript string
	Images          []Image
}

// IsEmpty reports whether the request has nothing to analyze.
func (r AnalysisRequest) IsEmpty() bool {
	return strings.TrimSpace(r.Symptoms) == "" &&
		strings.TrimSpace(r.VoiceTranscript) == "" &&
		len(r.Images) == 0
}

// Validate returns ErrEmptySubmission for an empty request.
func (r AnalysisRequest) Validate() error {
	if r.IsEmpty() {
		return ErrEmptySubmission
	}
	return nil
}

// Report is an accepted result with the metadata shown in its header.
type Report struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Result    *AnalysisResult `json:"result"`
}
