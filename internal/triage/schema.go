package triage

import (
	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/google/generative-ai-go/genai"
)

// Field names of the structured reply.
const (
	FieldChiefComplaint     = "chiefComplaint"
	FieldTimelineAnalysis   = "timelineAnalysis"
	FieldVoiceSummary       = "voiceSummary"
	FieldVisualObservations = "visualObservations"
	FieldImageComparison    = "imageComparison"
	FieldMedicineAnalysis   = "medicineAnalysis"
	FieldSymptomAnalysis    = "symptomAnalysis"
	FieldHealthRadar        = "healthRadar"
	FieldDifferentials      = "differentials"
	FieldTriageLevel        = "triageLevel"
	FieldTriageReasoning    = "triageReasoning"
	FieldRedFlags           = "redFlags"
	FieldHomeCare           = "homeCare"
	FieldSoap               = "soap"
)

// OptionalFields are the top-level fields present only when the matching
// input modality was supplied.
var OptionalFields = []string{
	FieldTimelineAnalysis,
	FieldVoiceSummary,
	FieldVisualObservations,
	FieldImageComparison,
	FieldMedicineAnalysis,
}

// ResponseSchema returns the schema the model reply must conform to.
// The same value configures the model call and validates its reply.
// A fresh value is built on every call so callers may not mutate a shared one.
func ResponseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	score := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}
	list := func() *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	}

	levels := make([]string, 0, len(domain.TriageLevels))
	for _, l := range domain.TriageLevels {
		levels = append(levels, string(l))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			FieldChiefComplaint:     str(""),
			FieldTimelineAnalysis:   str("Trends based on history/timeline text."),
			FieldVoiceSummary:       str("Clinical summary derived specifically from voice transcript."),
			FieldVisualObservations: str("Analysis of the primary image."),
			FieldImageComparison:    str("Comparison between primary and secondary image if both exist."),
			FieldMedicineAnalysis:   str("Safe category identification of medication if present."),
			FieldSymptomAnalysis:    str(""),
			FieldHealthRadar: {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"hydration":    score("0-100 score (100 is best hydration)"),
					"fatigue":      score("0-100 score (100 is max fatigue)"),
					"stress":       score("0-100 score (100 is max stress)"),
					"inflammation": score("0-100 score (100 is max inflammation)"),
					"severity":     score("0-100 score (100 is max severity)"),
				},
				Required: []string{"hydration", "fatigue", "stress", "inflammation", "severity"},
			},
			FieldDifferentials:   list(),
			FieldTriageLevel:     {Type: genai.TypeString, Enum: levels},
			FieldTriageReasoning: str(""),
			FieldRedFlags:        list(),
			FieldHomeCare:        list(),
			FieldSoap: {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"subjective": str(""),
					"objective":  str(""),
					"assessment": str(""),
					"plan":       str(""),
				},
				Required: []string{"subjective", "objective", "assessment", "plan"},
			},
		},
		Required: []string{
			FieldChiefComplaint,
			FieldSymptomAnalysis,
			FieldDifferentials,
			FieldTriageLevel,
			FieldTriageReasoning,
			FieldRedFlags,
			FieldHomeCare,
			FieldSoap,
			FieldHealthRadar,
		},
	}
}
