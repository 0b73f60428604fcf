// Package triage composes multimodal analysis requests, defines the structured
// reply contract and maps validated replies to analysis results.
package triage

import (
	"fmt"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/media"
	"github.com/google/generative-ai-go/genai"
)

// Temperature biases the model toward deterministic structured output.
const Temperature float32 = 0.3

// SystemInstruction defines the model's role for every analysis.
const SystemInstruction = `You are NeuroScanX, an advanced multimodal medical triage system.
Your goal is to provide high-performance, structured, and safe health insights.

CORE RESPONSIBILITIES:
1. Multimodal Analysis: Synthesize text, voice transcripts, and up to two images.
2. Timeline Analysis: If history is provided (e.g., "Day 1 vs Day 3"), identify progression trends (worsening/improving).
3. Image Comparison: If two images are provided, compare them for changes in swelling, color, or size.
4. Medicine ID (Safe Mode): If a pill/bottle is shown, identify the category only (e.g., "Analgesic"). NEVER name specific prescription drugs or dosages.
5. Health Radar: Estimate a 0-100 score for: Hydration, Fatigue, Stress, Inflammation, Symptom Severity.
6. Safety: NEVER diagnose. Always use "Differential Considerations".

OUTPUT STRUCTURE:
- Chief Complaint: Concise summary.
- Visual Analysis: Detailed findings. If 2 images, use 'imageComparison' field.
- Triage Level: Low/Medium/High/Critical.
- SOAP Note: Standard clinical format.
- Health Radar: Quantitative scores (0-100).

JSON RULES:
- Return ONLY valid JSON matching the schema.
- If a field is not applicable (e.g., no medicine image), leave it an empty string.
- Be extremely structured and professional (Clinician-grade).`

// Instruction follows the labelled inputs in the text part.
const Instruction = "Analyze the data provided. " +
	"If multiple images are present, treat the first as Current and the second as Previous/Comparison " +
	"unless they appear to be different body parts. " +
	"If an image looks like medication, identify its safe category only and never name a specific drug or dosage."

// PartKind distinguishes inline images from text in a payload.
type PartKind string

const (
	PartImage PartKind = "image"
	PartText  PartKind = "text"
)

// Part is one element of a multimodal payload.
type Part struct {
	Kind     PartKind `json:"kind"`
	MIMEType string   `json:"mime_type,omitempty"`
	Data     string   `json:"data,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// Payload is everything one model call needs.
type Payload struct {
	SystemInstruction string
	Parts             []Part
	Schema            *genai.Schema
	Temperature       float32
}

// Compose builds the payload for req from its already encoded images.
// Parts are the images in order followed by one text block.
func Compose(req domain.AnalysisRequest, images []media.Encoded) (Payload, error) {
	if err := req.Validate(); err != nil && len(images) == 0 {
		return Payload{}, err
	}
	if len(images) > domain.MaxImages {
		images = images[:domain.MaxImages]
	}

	parts := make([]Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, Part{Kind: PartImage, MIMEType: img.MIMEType, Data: img.Data})
	}
	parts = append(parts, Part{Kind: PartText, Text: ComposeText(req)})

	return Payload{
		SystemInstruction: SystemInstruction,
		Parts:             parts,
		Schema:            ResponseSchema(),
		Temperature:       Temperature,
	}, nil
}

// ComposeText renders the labelled text inputs and the interpretation instruction.
func ComposeText(req domain.AnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Symptoms: %q\n", strings.TrimSpace(req.Symptoms))
	if h := strings.TrimSpace(req.History); h != "" {
		fmt.Fprintf(&b, "Symptom History/Timeline: %q\n", h)
	}
	if v := strings.TrimSpace(req.VoiceTranscript); v != "" {
		fmt.Fprintf(&b, "Voice Note Transcript: %q\n", v)
	}
	b.WriteString("\n")
	b.WriteString(Instruction)
	return b.String()
}
