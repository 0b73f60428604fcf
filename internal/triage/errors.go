package triage

import (
	"errors"
	"fmt"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/media"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response")

// DecodeError reports a reply that is not valid JSON or violates the schema.
type DecodeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode analysis"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ModelError wraps a failed model call.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call: %v", e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Error kinds reported by Classify.
const (
	KindEmptySubmission = "empty_submission"
	KindEncode          = "encode"
	KindModel           = "model"
	KindEmptyResponse   = "empty_response"
	KindDecode          = "decode"
	KindUnknown         = "unknown"
)

// Classify maps an analysis error to one of the Kind constants.
func Classify(err error) string {
	var decodeErr *DecodeError
	var modelErr *ModelError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrEmptySubmission):
		return KindEmptySubmission
	case errors.Is(err, ErrEmptyResponse):
		return KindEmptyResponse
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &modelErr):
		return KindModel
	case errors.Is(err, media.ErrEmptyImage),
		errors.Is(err, media.ErrUnsupportedMedia),
		errors.Is(err, media.ErrImageTooLarge):
		return KindEncode
	default:
		return KindUnknown
	}
}
