package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
)

// wireResult mirrors the reply with nullable optional fields.
type wireResult struct {
	ChiefComplaint     string             `json:"chiefComplaint"`
	TimelineAnalysis   *string            `json:"timelineAnalysis"`
	VoiceSummary       *string            `json:"voiceSummary"`
	VisualObservations *string            `json:"visualObservations"`
	ImageComparison    *string            `json:"imageComparison"`
	MedicineAnalysis   *string            `json:"medicineAnalysis"`
	SymptomAnalysis    string             `json:"symptomAnalysis"`
	HealthRadar        domain.HealthRadar `json:"healthRadar"`
	Differentials      []string           `json:"differentials"`
	TriageLevel        domain.TriageLevel `json:"triageLevel"`
	TriageReasoning    string             `json:"triageReasoning"`
	RedFlags           []string           `json:"redFlags"`
	HomeCare           []string           `json:"homeCare"`
	Soap               domain.SoapNote    `json:"soap"`
}

// Decode parses raw model text into a validated AnalysisResult.
// Empty text yields ErrEmptyResponse; invalid JSON, schema violations and
// out-of-range radar scores yield *DecodeError. No partial result is returned.
func Decode(raw string) (*domain.AnalysisResult, error) {
	text := StripCodeFences(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if err := Validate(ResponseSchema(), generic, ""); err != nil {
		return nil, err
	}

	var w wireResult
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if err := checkRadar(w.HealthRadar); err != nil {
		return nil, err
	}

	return &domain.AnalysisResult{
		ChiefComplaint:     w.ChiefComplaint,
		TimelineAnalysis:   optional(w.TimelineAnalysis),
		VoiceSummary:       optional(w.VoiceSummary),
		VisualObservations: optional(w.VisualObservations),
		ImageComparison:    optional(w.ImageComparison),
		MedicineAnalysis:   optional(w.MedicineAnalysis),
		SymptomAnalysis:    w.SymptomAnalysis,
		HealthRadar:        w.HealthRadar,
		Differentials:      nonNil(w.Differentials),
		TriageLevel:        w.TriageLevel,
		TriageReasoning:    w.TriageReasoning,
		RedFlags:           nonNil(w.RedFlags),
		HomeCare:           nonNil(w.HomeCare),
		Soap:               w.Soap,
	}, nil
}

// StripCodeFences removes a surrounding ```json fence and whitespace.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func checkRadar(r domain.HealthRadar) error {
	names := [5]string{"hydration", "fatigue", "stress", "inflammation", "severity"}
	for i, v := range r.Values() {
		if v < 0 || v > 100 {
			return &DecodeError{
				Path:   FieldHealthRadar + "." + names[i],
				Reason: fmt.Sprintf("score %g outside 0-100", v),
			}
		}
	}
	return nil
}

// optional normalizes absent, null and blank values to "".
func optional(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
