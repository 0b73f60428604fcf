package triage

import (
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/media"
)

func TestComposeTextOnly(t *testing.T) {
	t.Parallel()

	req := domain.AnalysisRequest{Symptoms: "fever, rash", History: "Day1 fever, Day3 rash"}
	p, err := Compose(req, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if len(p.Parts) != 1 {
		t.Fatalf("Expected 1 part, got %d", len(p.Parts))
	}
	text := p.Parts[0]
	if text.Kind != PartText {
		t.Fatalf("Expected text part, got %s", text.Kind)
	}
	for _, want := range []string{"fever, rash", "Day1 fever, Day3 rash", "Current Symptoms:", "Symptom History/Timeline:"} {
		if !strings.Contains(text.Text, want) {
			t.Errorf("Expected composed text to contain %q, got %q", want, text.Text)
		}
	}
	if strings.Contains(text.Text, "Voice Note Transcript") {
		t.Errorf("Expected no voice label without a transcript, got %q", text.Text)
	}
	if p.Temperature != Temperature {
		t.Errorf("Expected temperature %v, got %v", Temperature, p.Temperature)
	}
	if p.SystemInstruction != SystemInstruction {
		t.Error("Expected fixed system instruction")
	}
	if p.Schema == nil || len(p.Schema.Required) == 0 {
		t.Error("Expected response schema to be attached")
	}
}

func TestComposeImageOrder(t *testing.T) {
	t.Parallel()

	images := []media.Encoded{
		{MIMEType: "image/png", Data: "Zmlyc3Q="},
		{MIMEType: "image/jpeg", Data: "c2Vjb25k"},
	}
	req := domain.AnalysisRequest{Symptoms: "swelling", VoiceTranscript: "it got bigger"}

	p, err := Compose(req, images)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	kinds := make([]PartKind, 0, len(p.Parts))
	for _, part := range p.Parts {
		kinds = append(kinds, part.Kind)
	}
	want := []PartKind{PartImage, PartImage, PartText}
	if len(kinds) != len(want) {
		t.Fatalf("Expected parts %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("Expected parts %v, got %v", want, kinds)
		}
	}
	if p.Parts[0].Data != "Zmlyc3Q=" || p.Parts[1].Data != "c2Vjb25k" {
		t.Errorf("Expected images in input order")
	}

	text := p.Parts[2].Text
	if !strings.Contains(text, "treat the first as Current and the second as Previous/Comparison") {
		t.Errorf("Expected interpretation rule in text, got %q", text)
	}
	if !strings.Contains(text, "never name a specific drug or dosage") {
		t.Errorf("Expected medication rule in text, got %q", text)
	}
	if !strings.Contains(text, `Voice Note Transcript: "it got bigger"`) {
		t.Errorf("Expected labelled voice transcript, got %q", text)
	}
}

func TestComposeTruncatesImages(t *testing.T) {
	t.Parallel()

	images := []media.Encoded{{MIMEType: "image/png", Data: "a"}, {MIMEType: "image/png", Data: "b"}, {MIMEType: "image/png", Data: "c"}}
	p, err := Compose(domain.AnalysisRequest{}, images)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if len(p.Parts) != 3 || p.Parts[1].Data != "b" {
		t.Errorf("Expected first two images plus text, got %d parts", len(p.Parts))
	}
}

func TestComposeRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := Compose(domain.AnalysisRequest{Symptoms: "   ", History: "only history"}, nil)
	if !errors.Is(err, domain.ErrEmptySubmission) {
		t.Errorf("Expected ErrEmptySubmission, got %v", err)
	}
}
