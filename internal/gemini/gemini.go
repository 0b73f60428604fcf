// Package gemini implements the model call on the Gemini generative API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/neuroscanx/internal/media"
	"github.com/ashureev/neuroscanx/internal/triage"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

var ErrMissingAPIKey = errors.New("gemini: API key is empty")

// Engine sends structured multimodal requests to one Gemini model.
type Engine struct {
	client *genai.Client
	model  string
}

// New creates an engine authenticated with apiKey.
func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Engine{client: cl, model: model}, nil
}

// Model returns the configured model name.
func (e *Engine) Model() string { return e.model }

// Close releases the underlying client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Generate performs one call and returns the reply text.
func (e *Engine) Generate(ctx context.Context, p triage.Payload) (string, error) {
	parts, err := toParts(p)
	if err != nil {
		return "", err
	}

	m := e.client.GenerativeModel(e.model)
	configure(m, p)

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini generate: %w", triage.ErrEmptyResponse)
	}
	return txt, nil
}

// configure forces schema-conformant JSON output at the payload temperature.
func configure(m *genai.GenerativeModel, p triage.Payload) {
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(p.Temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   p.Schema,
	}
	if p.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(p.SystemInstruction)},
		}
	}
}

func toParts(p triage.Payload) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(p.Parts))
	for i, part := range p.Parts {
		switch part.Kind {
		case triage.PartImage:
			data, _, err := media.Decode(part.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: part %d: %w", i, err)
			}
			parts = append(parts, genai.Blob{MIMEType: part.MIMEType, Data: data})
		case triage.PartText:
			parts = append(parts, genai.Text(part.Text))
		default:
			return nil, fmt.Errorf("gemini: part %d: unknown kind %q", i, part.Kind)
		}
	}
	return parts, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
