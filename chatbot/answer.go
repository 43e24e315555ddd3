package chatbot

import (
	"errors"
	"fmt"
)

// Provenance names the stage that produced an answer.
type Provenance string

const (
	ProvenanceNone     Provenance = "none"
	ProvenanceGrounded Provenance = "grounded"
	ProvenanceFallback Provenance = "fallback"
)

func (p Provenance) String() string { return string(p) }

// Stage is a resolver stage that calls the generation service.
type Stage string

const (
	StageGrounded Stage = "grounded"
	StageFallback Stage = "fallback"
)

// ErrEmptyQuery is returned for blank queries; the generation service is not called.
var ErrEmptyQuery = errors.New("empty query")

// GenerationError is a failed call to the generation service.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Answer is the result of one resolved turn.
type Answer struct {
	// Text is the formatted reply shown to the user.
	Text string
	// Body is the accepted candidate without the decorative prefix.
	Body       string
	Provenance Provenance
	// Rejected is set when a grounded candidate failed the relevance gate.
	Rejected bool
	// GroundedErr is a grounded-stage failure that was recovered by falling back.
	GroundedErr error
	// Err is set when the turn could not be answered: ErrEmptyQuery or a fallback *GenerationError.
	Err error
}
