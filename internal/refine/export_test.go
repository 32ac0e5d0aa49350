package refine

import "github.com/openvpi/MakeDiffSinger/internal/acoustic"

// Export internal passes for testing.
// This file is only compiled during tests (suffix _test.go).

// Extend exports the long-utterance extension pass.
func (r *Refiner) Extend(units []Unit, ev *acoustic.Evidence) ([]Unit, Stats) {
	var st Stats
	return r.extend(units, ev, &st), st
}

// DetectBreath exports the breath detection pass.
func (r *Refiner) DetectBreath(units []Unit, ev *acoustic.Evidence) ([]Unit, Stats) {
	var st Stats
	return r.detectBreath(units, ev, &st), st
}

// EliminateShort exports the short-gap elimination pass.
func (r *Refiner) EliminateShort(units []Unit) ([]Unit, Stats) {
	var st Stats
	return r.eliminateShort(units, &st), st
}

// BreathRange is a test-visible version of span.
type BreathRange struct {
	Start, End float64
}

// BreathRanges exports breathRanges for testing.
func (r *Refiner) BreathRanges(from, to float64, ev *acoustic.Evidence) []BreathRange {
	var out []BreathRange
	for _, s := range r.breathRanges(from, to, ev) {
		out = append(out, BreathRange{Start: s.start, End: s.end})
	}
	return out
}
