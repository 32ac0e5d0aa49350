package refine

import (
	"math"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
)

// extend moves the start of every unlabeled gap (except a leading one)
// forward while the vowel pitch curve is still voiced at that start, giving
// the time to the preceding unit. Aligners tend to cut voiced material short
// before a pause.
func (r *Refiner) extend(units []Unit, ev *acoustic.Evidence, st *Stats) []Unit {
	step := r.params.TimeStep
	out := cloneUnits(units)

	for k := 1; k < len(out); k++ {
		u := &out[k]
		if !u.IsSilence() {
			continue
		}
		start := u.Word.MinTime
		b := start
		for b < u.Word.MaxTime-step && ev.VowelPitch.At(ev.Frame(b)) >= r.params.F0Min {
			b += step
		}
		if b == start {
			continue
		}
		out[k-1].setEnd(b)
		u.setStart(b)
		st.Extended++
		st.ExtendedSeconds += b - start
	}
	return out
}

// span is a confirmed breath range in seconds.
type span struct {
	start, end float64
}

// detectBreath replaces each long enough unlabeled gap that contains breath
// ranges with alternating gap and AP units covering the same time.
func (r *Refiner) detectBreath(units []Unit, ev *acoustic.Evidence, st *Stats) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if !u.IsSilence() || u.Word.Duration() < r.params.BreathMinLength {
			out = append(out, u.clone())
			continue
		}
		ranges := r.breathRanges(u.Word.MinTime, u.Word.MaxTime, ev)
		if len(ranges) == 0 {
			out = append(out, u.clone())
			continue
		}
		out = append(out, splitGap(u.Word.MinTime, u.Word.MaxTime, ranges)...)
		st.Breaths += len(ranges)
	}
	return out
}

// breathRanges slides a window over [from, to] and collects runs of breath
// candidate windows that are long and bright enough.
func (r *Refiner) breathRanges(from, to float64, ev *acoustic.Evidence) []span {
	p := r.params
	var ranges []span
	runStart, open := 0.0, false

	w := from
	for w+p.BreathWindow <= to {
		if r.breathCandidate(w, ev) {
			if !open {
				runStart, open = w, true
			}
		} else if open {
			end := w + p.BreathWindow - p.TimeStep
			if s, ok := r.confirmBreath(runStart, end, ev); ok {
				ranges = append(ranges, s)
			}
			open = false
			w = end
		}
		w += p.TimeStep
	}
	if open {
		end := w + p.BreathWindow - p.TimeStep
		if s, ok := r.confirmBreath(runStart, end, ev); ok {
			ranges = append(ranges, s)
		}
	}
	return ranges
}

// breathCandidate reports whether the window starting at w is fully
// unvoiced on the breath pitch curve and loud enough.
func (r *Refiner) breathCandidate(w float64, ev *acoustic.Evidence) bool {
	p := r.params
	for _, f0 := range ev.BreathPitch.Window(ev.Frame(w), ev.Frame(w+p.BreathWindow)) {
		if f0 >= p.F0Min {
			return false
		}
	}
	rms := min(max(ev.RMS(w, w+p.BreathWindow), 1e-12), 1)
	return 20*math.Log10(rms) >= p.BreathDB
}

// confirmBreath accepts a candidate run when it lasts at least the minimum
// breath length and its mean spectral centroid reaches the threshold.
func (r *Refiner) confirmBreath(start, end float64, ev *acoustic.Evidence) (span, bool) {
	if end-start < r.params.BreathMinLength {
		return span{}, false
	}
	c := ev.Centroid.Window(ev.Frame(start), ev.Frame(end))
	if len(c) == 0 {
		return span{}, false
	}
	var sum float64
	for _, v := range c {
		sum += v
	}
	if sum/float64(len(c)) < r.params.BreathCentroid {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// splitGap covers [from, to] with gap units around the AP ranges.
// An AP range is clipped to to.
func splitGap(from, to float64, ranges []span) []Unit {
	var out []Unit
	if from < ranges[0].start {
		out = append(out, gapUnit(from, ranges[0].start, ""))
	}
	for k, s := range ranges {
		if k > 0 {
			out = append(out, gapUnit(ranges[k-1].end, s.start, ""))
		}
		out = append(out, gapUnit(s.start, min(to, s.end), lexicon.Breath))
	}
	if last := ranges[len(ranges)-1]; last.end < to {
		out = append(out, gapUnit(last.end, to, ""))
	}
	return out
}

// eliminateShort labels unlabeled gaps of at least MinSpace as SP and merges
// shorter ones into their neighbors: a leading gap into the next unit, a
// trailing gap into the previous one, and any other gap split at its
// midpoint. A gap that is the only remaining unit is left unlabeled and
// ends the pass.
func (r *Refiner) eliminateShort(units []Unit, st *Stats) []Unit {
	out := make([]Unit, 0, len(units))
	carried, start := false, 0.0

	for k, orig := range units {
		u := orig.clone()
		if carried {
			u.setStart(start)
			carried = false
		}
		if !u.IsSilence() {
			out = append(out, u)
			continue
		}
		if u.Word.Duration() >= r.params.MinSpace {
			u.relabel(lexicon.Space)
			out = append(out, u)
			st.Spaces++
			continue
		}

		hasNext := k+1 < len(units)
		switch {
		case len(out) == 0 && !hasNext:
			return append(out, u)
		case len(out) == 0:
			start, carried = u.Word.MinTime, true
		case !hasNext:
			out[len(out)-1].setEnd(u.Word.MaxTime)
		default:
			mid := (u.Word.MinTime + u.Word.MaxTime) / 2
			out[len(out)-1].setEnd(mid)
			start, carried = mid, true
		}
		st.Merged++
	}
	return out
}
