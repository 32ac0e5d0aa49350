package refine

import (
	"fmt"
	"math"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
)

// Params are the tunable thresholds of the three refinement passes.
// Times are in seconds, frequencies in Hz.
type Params struct {
	F0Min           float64 // pitch floor; samples below it are unvoiced
	F0Max           float64 // pitch ceiling used when computing evidence
	BreathMinLength float64 // shortest silence scanned for, and shortest accepted, breath
	BreathDB        float64 // minimum window RMS in dBFS for a breath candidate
	BreathCentroid  float64 // minimum mean spectral centroid of a breath
	TimeStep        float64 // evidence frame step and boundary step
	MinSpace        float64 // shorter unlabeled gaps are merged into neighbors
	VoicingVowel    float64 // voicing threshold of the extension pass curve
	VoicingBreath   float64 // voicing threshold of the breath pass curve
	BreathWindow    float64 // sliding window of the breath pass
}

// DefaultParams returns the default refinement parameters.
func DefaultParams() Params {
	return Params{
		F0Min:           40,
		F0Max:           1100,
		BreathMinLength: 0.1,
		BreathDB:        -60,
		BreathCentroid:  2000,
		TimeStep:        0.005,
		MinSpace:        0.04,
		VoicingVowel:    0.45,
		VoicingBreath:   0.6,
		BreathWindow:    0.05,
	}
}

// Validate reports the first parameter outside its valid range.
// Every parameter must be finite.
func (p Params) Validate() error {
	for _, f := range p.fields() {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidParams, f.name, f.v)
		}
	}
	switch {
	case p.TimeStep <= 0:
		return fmt.Errorf("%w: time step must be positive, got %g", ErrInvalidParams, p.TimeStep)
	case p.BreathWindow <= 0:
		return fmt.Errorf("%w: breath window must be positive, got %g", ErrInvalidParams, p.BreathWindow)
	case p.F0Min <= 0:
		return fmt.Errorf("%w: f0 min must be positive, got %g", ErrInvalidParams, p.F0Min)
	case p.F0Max <= p.F0Min:
		return fmt.Errorf("%w: f0 max %g must exceed f0 min %g", ErrInvalidParams, p.F0Max, p.F0Min)
	case p.BreathMinLength < 0:
		return fmt.Errorf("%w: breath length must not be negative, got %g", ErrInvalidParams, p.BreathMinLength)
	case p.MinSpace < 0:
		return fmt.Errorf("%w: min space must not be negative, got %g", ErrInvalidParams, p.MinSpace)
	case p.BreathDB > 0:
		return fmt.Errorf("%w: breath dB threshold must be at most 0, got %g", ErrInvalidParams, p.BreathDB)
	case p.VoicingVowel < 0 || p.VoicingVowel > 1:
		return fmt.Errorf("%w: vowel voicing threshold must be in [0, 1], got %g", ErrInvalidParams, p.VoicingVowel)
	case p.VoicingBreath < 0 || p.VoicingBreath > 1:
		return fmt.Errorf("%w: breath voicing threshold must be in [0, 1], got %g", ErrInvalidParams, p.VoicingBreath)
	}
	return nil
}

type paramField struct {
	name string
	v    float64
}

func (p Params) fields() []paramField {
	return []paramField{
		{"f0 min", p.F0Min},
		{"f0 max", p.F0Max},
		{"breath length", p.BreathMinLength},
		{"breath dB threshold", p.BreathDB},
		{"breath centroid", p.BreathCentroid},
		{"time step", p.TimeStep},
		{"min space", p.MinSpace},
		{"vowel voicing threshold", p.VoicingVowel},
		{"breath voicing threshold", p.VoicingBreath},
		{"breath window", p.BreathWindow},
	}
}

// AnalyzerSettings returns the acoustic analyzer settings that produce
// evidence matching these parameters.
func (p Params) AnalyzerSettings() acoustic.Settings {
	s := acoustic.DefaultSettings()
	s.TimeStep = p.TimeStep
	s.F0Min = p.F0Min
	s.F0Max = p.F0Max
	s.VoicingVowel = p.VoicingVowel
	s.VoicingBreath = p.VoicingBreath
	return s
}
