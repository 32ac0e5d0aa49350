package acoustic

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"time"

	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Settings configures an Analyzer.
type Settings struct {
	TimeStep      float64 // seconds between frames
	F0Min         float64 // pitch floor, Hz
	F0Max         float64 // pitch ceiling, Hz
	VoicingVowel  float64 // voicing threshold of the vowel pitch curve
	VoicingBreath float64 // voicing threshold of the breath pitch curve
	FFTSize       int     // spectral centroid frame size, samples

	// SilenceThreshold is the fraction of the global peak amplitude below
	// which a frame is unvoiced regardless of its periodicity.
	SilenceThreshold float64
}

// DefaultSettings returns the settings used by the enhance command.
func DefaultSettings() Settings {
	return Settings{
		TimeStep:         0.005,
		F0Min:            40,
		F0Max:            1100,
		VoicingVowel:     0.45,
		VoicingBreath:    0.6,
		FFTSize:          2048,
		SilenceThreshold: 0.03,
	}
}

// Validate checks that the settings describe a computable analysis.
func (s Settings) Validate() error {
	for _, v := range []float64{s.TimeStep, s.F0Min, s.F0Max, s.VoicingVowel, s.VoicingBreath, s.SilenceThreshold} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: settings must be finite, got %g", ErrInvalidSettings, v)
		}
	}
	switch {
	case s.TimeStep <= 0:
		return fmt.Errorf("%w: time step must be positive, got %g", ErrInvalidSettings, s.TimeStep)
	case s.F0Min <= 0 || s.F0Max <= s.F0Min:
		return fmt.Errorf("%w: need 0 < f0 min < f0 max, got %g..%g", ErrInvalidSettings, s.F0Min, s.F0Max)
	case s.FFTSize < 2 || s.FFTSize%2 != 0:
		return fmt.Errorf("%w: fft size must be even and at least 2, got %d", ErrInvalidSettings, s.FFTSize)
	case s.SilenceThreshold < 0:
		return fmt.Errorf("%w: silence threshold must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Analyzer computes Evidence from WAV files.
type Analyzer struct {
	settings Settings
}

// Compile-time interface check.
var _ Provider = (*Analyzer)(nil)

// NewAnalyzer creates an Analyzer after validating s.
func NewAnalyzer(s Settings) (*Analyzer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{settings: s}, nil
}

// Analyze decodes the WAV file at wavPath and computes its Evidence.
func (a *Analyzer) Analyze(ctx context.Context, wavPath string) (*Evidence, error) {
	samples, sr, err := ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return a.Compute(ctx, samples, sr)
}

// Compute derives Evidence from a mono waveform in [-1, 1].
func (a *Analyzer) Compute(ctx context.Context, samples []float64, sampleRate int) (*Evidence, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedAudio, sampleRate)
	}
	hop := max(int(a.settings.TimeStep*float64(sampleRate)), 1)
	frames := len(samples)/hop + 1

	vowel, breath, err := a.pitch(ctx, samples, sampleRate, hop, frames)
	if err != nil {
		return nil, err
	}
	centroid, err := a.centroid(ctx, samples, sampleRate, hop, frames)
	if err != nil {
		return nil, err
	}

	return &Evidence{
		TimeStep:    a.settings.TimeStep,
		VowelPitch:  vowel,
		BreathPitch: breath,
		Centroid:    centroid,
		Samples:     samples,
		SampleRate:  sampleRate,
	}, nil
}

// octaveCost favors shorter lags when several multiples of the period
// correlate almost equally well.
const octaveCost = 0.01

// pitch estimates F0 per frame with a normalized autocorrelation over a
// window of three periods of the pitch floor. One pass fills both curves:
// a frame is voiced in a curve when its best correlation reaches that
// curve's voicing threshold.
func (a *Analyzer) pitch(ctx context.Context, x []float64, sr, hop, frames int) (Curve, Curve, error) {
	s := a.settings
	vowel := make(Curve, frames)
	breath := make(Curve, frames)

	win := int(math.Round(3 / s.F0Min * float64(sr)))
	minLag := max(int(math.Floor(float64(sr)/s.F0Max)), 1)
	maxLag := min(int(math.Ceil(float64(sr)/s.F0Min)), win-2)
	if win < 4 || minLag >= maxLag {
		return vowel, breath, nil
	}

	size := nextPow2(2 * win)
	fft := fourier.NewFFT(size)
	buf := make([]float64, size)
	coeff := make([]complex128, size/2+1)
	acf := make([]float64, size)
	energy := make([]float64, win+1)
	gate := s.SilenceThreshold * peakAbs(x)

	for i := range frames {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		start := i*hop - win/2
		clear(buf)
		var mean float64
		for k := range win {
			if idx := start + k; idx >= 0 && idx < len(x) {
				buf[k] = x[idx]
				mean += x[idx]
			}
		}
		mean /= float64(win)
		var local float64
		for k := range win {
			buf[k] -= mean
			local = max(local, math.Abs(buf[k]))
			energy[k+1] = energy[k] + buf[k]*buf[k]
		}
		if local == 0 || local < gate {
			continue
		}

		coeff = fft.Coefficients(coeff, buf)
		for k, c := range coeff {
			coeff[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		acf = fft.Sequence(acf, coeff)

		norm := func(lag int) float64 {
			e0 := energy[win-lag]
			ek := energy[win] - energy[lag]
			if e0 <= 0 || ek <= 0 {
				return 0
			}
			return acf[lag] / float64(size) / math.Sqrt(e0*ek)
		}

		bestLag, bestScore, bestR := 0, math.Inf(-1), 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			r := norm(lag)
			score := r - octaveCost*math.Log2(float64(lag)/float64(minLag))
			if score > bestScore {
				bestLag, bestScore, bestR = lag, score, r
			}
		}
		if bestLag == 0 || bestR <= 0 {
			continue
		}

		lag := float64(bestLag)
		if bestLag > minLag && bestLag < maxLag {
			l, c, r := norm(bestLag-1), bestR, norm(bestLag+1)
			if d := l - 2*c + r; d < 0 {
				lag += 0.5 * (l - r) / d
			}
		}
		f0 := float64(sr) / lag
		if f0 < s.F0Min || f0 > s.F0Max {
			continue
		}
		if bestR >= s.VoicingVowel {
			vowel[i] = f0
		}
		if bestR >= s.VoicingBreath {
			breath[i] = f0
		}
	}
	return vowel, breath, nil
}

// centroid computes the spectral centroid of Hann-windowed frames centered
// on each hop. Silent frames have a centroid of 0.
func (a *Analyzer) centroid(ctx context.Context, x []float64, sr, hop, frames int) (Curve, error) {
	size := a.settings.FFTSize
	fft := fourier.NewFFT(size)
	window := hann(size)
	buf := make([]float64, size)
	coeff := make([]complex128, size/2+1)
	out := make(Curve, frames)
	binHz := float64(sr) / float64(size)

	for i := range frames {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		start := i*hop - size/2
		for k := range size {
			buf[k] = 0
			if idx := start + k; idx >= 0 && idx < len(x) {
				buf[k] = x[idx] * window[k]
			}
		}
		coeff = fft.Coefficients(coeff, buf)

		var num, den float64
		for k, c := range coeff {
			m := cmplx.Abs(c)
			num += float64(k) * binHz * m
			den += m
		}
		if den > 0 {
			out[i] = num / den
		}
	}
	return out, nil
}

// ReadWAV decodes a PCM WAV file into a mono waveform in [-1, 1].
// Multichannel audio is averaged down to one channel.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the batch file list
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	samples, sr, err := DecodeWAV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, sr, nil
}

// WAVDuration returns the length of the WAV file at path from its header,
// without decoding the samples.
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the dataset file list
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s: %w: not a valid WAV file", path, ErrUnsupportedAudio)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT format tag.
const wavFormatFloat = 3

// DecodeWAV decodes PCM WAV data from r. See ReadWAV.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedAudio)
	}
	if dec.WavAudioFormat == wavFormatFloat {
		return nil, 0, fmt.Errorf("%w: floating point WAV", ErrUnsupportedAudio)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format information", ErrUnsupportedAudio)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: bit depth %d", ErrUnsupportedAudio, depth)
	}
	scale := math.Exp2(float64(depth - 1))
	offset := 0.0
	if depth == 8 {
		// 8-bit WAV samples are unsigned.
		offset = 128
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range ch {
			sum += float64(buf.Data[i*ch+c]) - offset
		}
		out[i] = sum / float64(ch) / scale
	}
	return out, buf.Format.SampleRate, nil
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func peakAbs(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = max(p, math.Abs(v))
	}
	return p
}
