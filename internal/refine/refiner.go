// Package refine corrects forced-aligned word and phone tiers.
//
// A Refiner runs three passes over the units of a recording, each pass
// reading the previous pass's units and building new ones:
//
//  1. extension: unlabeled gaps lose their voiced start to the preceding unit;
//  2. breath detection: AP ranges are carved out of long unlabeled gaps;
//  3. short-gap elimination: remaining gaps become SP or are merged away.
package refine

import (
	"fmt"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// Stats counts what the passes changed.
type Stats struct {
	Extended        int     // gaps whose start moved in pass 1
	ExtendedSeconds float64 // total time given to preceding units
	Breaths         int     // AP intervals inserted
	Spaces          int     // gaps labeled SP
	Merged          int     // short gaps merged into neighbors
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Extended += o.Extended
	s.ExtendedSeconds += o.ExtendedSeconds
	s.Breaths += o.Breaths
	s.Spaces += o.Spaces
	s.Merged += o.Merged
}

// Result holds the refined tiers.
type Result struct {
	Words  textgrid.Tier
	Phones textgrid.Tier
	Stats  Stats
}

// Refiner applies the three refinement passes with fixed parameters.
// It holds no per-recording state and is safe for concurrent use.
type Refiner struct {
	params Params
}

// New creates a Refiner after validating p.
func New(p Params) (*Refiner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Refiner{params: p}, nil
}

// Params returns the parameters of the refiner.
func (r *Refiner) Params() Params {
	return r.params
}

// Run refines a word tier and a phone tier. groups holds the phones of
// each lexical word in order, as returned by lexicon.Matcher. The input
// tiers are not modified.
func (r *Refiner) Run(words, phones textgrid.Tier, groups [][]string, ev *acoustic.Evidence) (Result, error) {
	if ev == nil {
		return Result{}, ErrMissingEvidence
	}
	if ev.TimeStep <= 0 {
		return Result{}, fmt.Errorf("%w: evidence time step %g", ErrMissingEvidence, ev.TimeStep)
	}
	units, err := Pair(words, phones, groups)
	if err != nil {
		return Result{}, err
	}

	var st Stats
	units = r.extend(units, ev, &st)
	units = r.detectBreath(units, ev, &st)
	units = r.eliminateShort(units, &st)

	w, p := Flatten(units, words, phones)
	return Result{Words: w, Phones: p, Stats: st}, nil
}
