// Package acoustic provides the per-recording acoustic evidence consumed by
// the refiner: two pitch curves computed at different voicing thresholds, a
// spectral-centroid curve and an RMS energy query over the waveform.
package acoustic

import (
	"context"
	"math"
)

// Curve is a feature sampled at a fixed time step from the start of the
// recording. Reads beyond either end are clamped to the available samples.
type Curve []float64

// At returns the sample at i, clamped to the curve bounds.
// An empty curve reads as 0.
func (c Curve) At(i int) float64 {
	if len(c) == 0 {
		return 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(c) {
		i = len(c) - 1
	}
	return c[i]
}

// Window returns the samples in [lo, hi), clamped to the curve bounds.
// The result is empty when the clamped range is empty.
func (c Curve) Window(lo, hi int) []float64 {
	lo = max(lo, 0)
	hi = min(hi, len(c))
	if lo >= hi {
		return nil
	}
	return c[lo:hi]
}

// Evidence is the acoustic description of one recording.
//
// VowelPitch and BreathPitch hold F0 in Hz per frame, with 0 for unvoiced
// frames. Centroid holds the spectral centroid in Hz per frame. Frame i is
// centered at i*TimeStep seconds. Samples is the mono waveform in [-1, 1].
type Evidence struct {
	TimeStep    float64
	VowelPitch  Curve
	BreathPitch Curve
	Centroid    Curve
	Samples     []float64
	SampleRate  int
}

// Frame returns the frame index containing time t.
func (e *Evidence) Frame(t float64) int {
	return int(t / e.TimeStep)
}

// Duration returns the length of the waveform in seconds.
func (e *Evidence) Duration() float64 {
	if e.SampleRate <= 0 {
		return 0
	}
	return float64(len(e.Samples)) / float64(e.SampleRate)
}

// RMS returns the root mean square amplitude of the waveform between from
// and to seconds. Out-of-range times are clamped; an empty range yields 0.
func (e *Evidence) RMS(from, to float64) float64 {
	if e.SampleRate <= 0 {
		return 0
	}
	sr := float64(e.SampleRate)
	lo := max(int(math.Round(from*sr)), 0)
	hi := min(int(math.Round(to*sr)), len(e.Samples))
	if lo >= hi {
		return 0
	}
	var sum float64
	for _, s := range e.Samples[lo:hi] {
		sum += s * s
	}
	return math.Sqrt(sum / float64(hi-lo))
}

// Provider computes Evidence for a recording.
type Provider interface {
	Analyze(ctx context.Context, wavPath string) (*Evidence, error)
}
