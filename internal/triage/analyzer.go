package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/media"
)

// Generator performs one model call and returns the raw reply text.
type Generator interface {
	Generate(ctx context.Context, p Payload) (string, error)
}

// Analyzer runs the encode, compose, generate and decode pipeline.
type Analyzer struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer. timeout <= 0 waits for the model indefinitely.
func NewAnalyzer(gen Generator, timeout time.Duration, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, timeout: timeout, logger: logger}
}

// Analyze produces a validated result for req.
func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	images, err := media.EncodeAll(ctx, req.Images)
	if err != nil {
		return nil, err
	}

	payload, err := Compose(req, images)
	if err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	a.logger.Info("Analysis dispatched", "images", len(images), "has_history", req.History != "", "has_voice", req.VoiceTranscript != "")

	text, err := a.gen.Generate(ctx, payload)
	if err != nil {
		a.logger.Warn("Model call failed", "error", err, "duration", time.Since(start))
		return nil, &ModelError{Err: err}
	}

	result, err := Decode(text)
	if err != nil {
		a.logger.Warn("Model reply rejected", "error", err, "kind", Classify(err), "duration", time.Since(start))
		return nil, err
	}

	a.logger.Info("Analysis completed", "triage_level", result.TriageLevel, "red_flags", len(result.RedFlags), "duration", time.Since(start))
	return result, nil
}

// UserMessage renders err for the error banner.
func UserMessage(err error) string {
	return fmt.Sprintf("Unable to complete analysis. %v", err)
}
