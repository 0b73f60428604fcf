package triage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ashureev/neuroscanx/internal/domain"
)

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	payloads []Payload
}

func (f *fakeGenerator) Generate(_ context.Context, p Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return f.reply, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestAnalyzerSuccess(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: validReply(t, nil)}
	a := NewAnalyzer(gen, 0, nil)

	req := domain.AnalysisRequest{
		Symptoms: "rash",
		Images: []domain.Image{
			{Name: "a.png", Data: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
			{Name: "b.jpg", Data: []byte{0xFF, 0xD8, 0xFF}},
			{Name: "c.jpg", Data: []byte{0xFF, 0xD8, 0xFF}},
		},
	}
	res, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.ChiefComplaint != "Fever with rash" {
		t.Errorf("Unexpected chief complaint %q", res.ChiefComplaint)
	}
	if gen.calls() != 1 {
		t.Fatalf("Expected 1 model call, got %d", gen.calls())
	}
	parts := gen.payloads[0].Parts
	if len(parts) != 3 || parts[0].MIMEType != "image/png" || parts[1].MIMEType != "image/jpeg" {
		t.Errorf("Expected [png jpeg text] parts, got %+v", parts)
	}
}

func TestAnalyzerEmptySubmissionSkipsModel(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: validReply(t, nil)}
	a := NewAnalyzer(gen, 0, nil)

	_, err := a.Analyze(context.Background(), domain.AnalysisRequest{Symptoms: " "})
	if !errors.Is(err, domain.ErrEmptySubmission) {
		t.Fatalf("Expected ErrEmptySubmission, got %v", err)
	}
	if gen.calls() != 0 {
		t.Errorf("Expected no model call, got %d", gen.calls())
	}
}

func TestAnalyzerFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  *fakeGenerator
		kind string
	}{
		{name: "transport", gen: &fakeGenerator{err: errors.New("connection reset")}, kind: KindModel},
		{name: "empty", gen: &fakeGenerator{reply: ""}, kind: KindEmptyResponse},
		{name: "malformed", gen: &fakeGenerator{reply: "{not json"}, kind: KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.gen, 0, nil)
			res, err := a.Analyze(context.Background(), domain.AnalysisRequest{Symptoms: "cough"})
			if res != nil {
				t.Errorf("Expected no result, got %+v", res)
			}
			if got := Classify(err); got != tt.kind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.kind, got, err)
			}
		})
	}
}

func TestAnalyzerEncodeFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: validReply(t, nil)}
	a := NewAnalyzer(gen, 0, nil)

	_, err := a.Analyze(context.Background(), domain.AnalysisRequest{Images: []domain.Image{{Name: "blank"}}})
	if Classify(err) != KindEncode {
		t.Errorf("Expected kind %s, got %s (%v)", KindEncode, Classify(err), err)
	}
	if gen.calls() != 0 {
		t.Errorf("Expected no model call, got %d", gen.calls())
	}
}
