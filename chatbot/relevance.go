package chatbot

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the shortest grounded candidate, in characters, the heuristic gate accepts.
const DefaultMinLength = 20

// DefaultLowConfidenceMarkers are phrases that mark a grounded candidate as a non-answer.
var DefaultLowConfidenceMarkers = []string{
	"I'm not sure",
	"I am not sure",
}

// Gate decides whether a grounded candidate is acceptable.
type Gate interface {
	Accept(candidate string) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(candidate string) bool

func (f GateFunc) Accept(candidate string) bool { return f(candidate) }

// HeuristicGate rejects empty, short, and low-confidence candidates.
type HeuristicGate struct {
	MinLength int
	Markers   []string
}

// NewHeuristicGate returns a gate with the given threshold and markers.
// minLength <= 0 selects DefaultMinLength, nil markers select DefaultLowConfidenceMarkers.
func NewHeuristicGate(minLength int, markers []string) HeuristicGate {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if markers == nil {
		markers = DefaultLowConfidenceMarkers
	}
	return HeuristicGate{MinLength: minLength, Markers: markers}
}

func (g HeuristicGate) Accept(candidate string) bool {
	c := strings.TrimSpace(candidate)
	if c == "" || utf8.RuneCountInString(c) < g.MinLength {
		return false
	}
	lower := strings.ToLower(c)
	for _, m := range g.Markers {
		m = strings.TrimSpace(m)
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}
	return true
}
