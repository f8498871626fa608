package models

import (
	"fmt"
	"math"
	"strconv"
)

// EncodingKind selects how a numeric value is rendered for the kernel
type EncodingKind string

const (
	// EncodingInteger truncates toward zero and prints a decimal integer
	EncodingInteger EncodingKind = "integer"
	// EncodingFloat prints the shortest decimal representation
	EncodingFloat EncodingKind = "float"
	// EncodingThreshold picks one of two states around ThresholdCut
	EncodingThreshold EncodingKind = "threshold"
)

// ThresholdCut splits a continuous [0,1] value into two discrete states.
// Values <= ThresholdCut select the low state, values above it the high state.
const ThresholdCut = 0.5

// Encoding describes the value format a control point expects
type Encoding struct {
	Kind   EncodingKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	States []string     `json:"states,omitempty" yaml:"states,omitempty"`
}

// EffectiveKind returns the kind, defaulting to integer
func (e Encoding) EffectiveKind() EncodingKind {
	if e.Kind == "" {
		return EncodingInteger
	}
	return e.Kind
}

// Encode renders v in the encoding's format
func (e Encoding) Encode(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("cannot encode non-finite value %v", v)
	}
	switch e.EffectiveKind() {
	case EncodingInteger:
		return strconv.FormatInt(int64(v), 10), nil
	case EncodingFloat:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case EncodingThreshold:
		if len(e.States) != 2 {
			return "", fmt.Errorf("threshold encoding needs exactly 2 states, got %d", len(e.States))
		}
		if v > ThresholdCut {
			return e.States[1], nil
		}
		return e.States[0], nil
	default:
		return "", fmt.Errorf("unknown encoding kind %q", e.Kind)
	}
}
