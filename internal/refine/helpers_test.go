package refine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// Dyadic step so that boundaries advanced step by step stay exact.
const step = 1.0 / 256

// testRate is the waveform sample rate of synthetic evidence.
const testRate = 1000

func iv(from, to float64, mark string) textgrid.Interval {
	return textgrid.Interval{MinTime: from, MaxTime: to, Mark: mark}
}

// unit builds a Unit; without phones the word is its own single phone.
func unit(w textgrid.Interval, phones ...textgrid.Interval) refine.Unit {
	if len(phones) == 0 {
		phones = []textgrid.Interval{w}
	}
	return refine.Unit{Word: w, Phones: phones}
}

// tiersOf flattens units into "words" and "phones" tiers spanning them.
func tiersOf(units []refine.Unit) (textgrid.Tier, textgrid.Tier) {
	tmpl := textgrid.Tier{
		MinTime: units[0].Word.MinTime,
		MaxTime: units[len(units)-1].Word.MaxTime,
	}
	w, p := tmpl, tmpl
	w.Name, p.Name = "words", "phones"
	return refine.Flatten(units, w, p)
}

// groupsOf returns the phone marks of every lexical unit.
func groupsOf(units []refine.Unit) [][]string {
	var groups [][]string
	for _, u := range units {
		if !lexicon.IsLexical(u.Word.Mark) {
			continue
		}
		g := make([]string, len(u.Phones))
		for i, p := range u.Phones {
			g[i] = p.Mark
		}
		groups = append(groups, g)
	}
	return groups
}

func lexicalPhones(t textgrid.Tier) []string {
	var out []string
	for _, m := range t.Marks() {
		if lexicon.IsLexical(m) {
			out = append(out, m)
		}
	}
	return out
}

// requireContiguous checks both tiers cover [from, to] without gaps.
func requireContiguous(t *testing.T, units []refine.Unit, from, to float64) {
	t.Helper()
	w, p := tiersOf(units)
	require.NoError(t, w.CheckContiguous())
	require.NoError(t, p.CheckContiguous())
	require.InDelta(t, from, w.Intervals[0].MinTime, 1e-9)
	require.InDelta(t, to, w.Intervals[len(w.Intervals)-1].MaxTime, 1e-9)
	require.InDelta(t, from, p.Intervals[0].MinTime, 1e-9)
	require.InDelta(t, to, p.Intervals[len(p.Intervals)-1].MaxTime, 1e-9)
}

// evidence is a synthetic, silent, unvoiced recording of the given length.
type evidence struct {
	*acoustic.Evidence
}

func newEvidence(seconds float64) evidence {
	return newEvidenceAt(seconds, step)
}

// newEvidenceAt is newEvidence with frames every timeStep seconds.
func newEvidenceAt(seconds, timeStep float64) evidence {
	frames := int(seconds/timeStep) + 1
	return evidence{&acoustic.Evidence{
		TimeStep:    timeStep,
		VowelPitch:  make(acoustic.Curve, frames),
		BreathPitch: make(acoustic.Curve, frames),
		Centroid:    make(acoustic.Curve, frames),
		Samples:     make([]float64, int(seconds*testRate)),
		SampleRate:  testRate,
	}}
}

// set assigns v to every frame of c whose time lies in [from, to).
func (e evidence) set(c acoustic.Curve, from, to, v float64) {
	for i := range c {
		if t := float64(i) * e.TimeStep; t >= from && t < to {
			c[i] = v
		}
	}
}

// voice marks [from, to) as voiced at f0 on both pitch curves.
func (e evidence) voice(from, to, f0 float64) evidence {
	e.set(e.VowelPitch, from, to, f0)
	e.set(e.BreathPitch, from, to, f0)
	return e
}

// breath fills [from, to) with broadband noise of the given amplitude and centroid.
func (e evidence) breath(from, to, amp, centroid float64) evidence {
	lo, hi := int(math.Round(from*testRate)), int(math.Round(to*testRate))
	for i := lo; i < hi && i < len(e.Samples); i++ {
		e.Samples[i] = amp
		if i%2 == 1 {
			e.Samples[i] = -amp
		}
	}
	e.set(e.Centroid, from, to, centroid)
	return e
}

// dyadicParams are the default parameters with a dyadic time step and window.
func dyadicParams() refine.Params {
	p := refine.DefaultParams()
	p.TimeStep = step
	p.BreathWindow = 12 * step
	return p
}

func newRefiner(t *testing.T, p refine.Params) *refine.Refiner {
	t.Helper()
	r, err := refine.New(p)
	require.NoError(t, err)
	return r
}
