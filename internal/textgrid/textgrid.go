// Package textgrid reads and writes Praat TextGrid files.
//
// Only the text formats are supported. Interval tiers are the working
// representation for the rest of the module; point tiers are carried through
// unchanged so that files with extra tiers survive a read/write cycle.
package textgrid

import (
	"fmt"
	"math"
)

// Tier classes as written by Praat.
const (
	ClassInterval = "IntervalTier"
	ClassPoint    = "TextTier"
)

// Epsilon is the tolerance used when comparing boundary times.
const Epsilon = 1e-9

// Interval is a labeled time span of an interval tier.
// An empty Mark denotes an unlabeled gap.
type Interval struct {
	MinTime float64
	MaxTime float64
	Mark    string
}

// Duration returns the length of the interval in seconds.
func (iv Interval) Duration() float64 {
	return iv.MaxTime - iv.MinTime
}

// String returns a compact representation for logs and error messages.
func (iv Interval) String() string {
	return fmt.Sprintf("[%g, %g) %q", iv.MinTime, iv.MaxTime, iv.Mark)
}

// Point is a labeled instant of a point tier.
type Point struct {
	Time float64
	Mark string
}

// Tier is one tier of a TextGrid. Intervals is used by interval tiers and
// Points by point tiers.
type Tier struct {
	Name      string
	Class     string
	MinTime   float64
	MaxTime   float64
	Intervals []Interval
	Points    []Point
}

// NewIntervalTier creates an interval tier spanning the given intervals.
// The tier bounds are taken from the first and last interval.
func NewIntervalTier(name string, intervals []Interval) Tier {
	t := Tier{Name: name, Class: ClassInterval, Intervals: intervals}
	if len(intervals) > 0 {
		t.MinTime = intervals[0].MinTime
		t.MaxTime = intervals[len(intervals)-1].MaxTime
	}
	return t
}

// IsInterval reports whether t is an interval tier.
func (t Tier) IsInterval() bool {
	return t.Class == ClassInterval
}

// Len returns the number of intervals (or points for point tiers).
func (t Tier) Len() int {
	if t.IsInterval() {
		return len(t.Intervals)
	}
	return len(t.Points)
}

// Marks returns the interval marks in order.
func (t Tier) Marks() []string {
	marks := make([]string, len(t.Intervals))
	for i, iv := range t.Intervals {
		marks[i] = iv.Mark
	}
	return marks
}

// Clone returns a deep copy of t.
func (t Tier) Clone() Tier {
	c := t
	c.Intervals = append([]Interval(nil), t.Intervals...)
	c.Points = append([]Point(nil), t.Points...)
	return c
}

// CheckContiguous verifies that the intervals are ordered, non-empty,
// non-overlapping and leave no gaps, and that they cover [MinTime, MaxTime].
func (t Tier) CheckContiguous() error {
	if !t.IsInterval() {
		return fmt.Errorf("tier %q: %w: not an interval tier", t.Name, ErrShape)
	}
	if len(t.Intervals) == 0 {
		return fmt.Errorf("tier %q: %w: no intervals", t.Name, ErrShape)
	}
	if !almostEqual(t.Intervals[0].MinTime, t.MinTime) {
		return fmt.Errorf("tier %q: %w: first interval starts at %g, tier starts at %g",
			t.Name, ErrShape, t.Intervals[0].MinTime, t.MinTime)
	}
	for i, iv := range t.Intervals {
		if iv.MaxTime <= iv.MinTime {
			return fmt.Errorf("tier %q: %w: interval %d %s is empty", t.Name, ErrShape, i, iv)
		}
		if i > 0 && !almostEqual(t.Intervals[i-1].MaxTime, iv.MinTime) {
			return fmt.Errorf("tier %q: %w: gap or overlap between interval %d and %d",
				t.Name, ErrShape, i-1, i)
		}
	}
	last := t.Intervals[len(t.Intervals)-1]
	if !almostEqual(last.MaxTime, t.MaxTime) {
		return fmt.Errorf("tier %q: %w: last interval ends at %g, tier ends at %g",
			t.Name, ErrShape, last.MaxTime, t.MaxTime)
	}
	return nil
}

// TextGrid is an ordered collection of tiers over a common time range.
type TextGrid struct {
	MinTime float64
	MaxTime float64
	Tiers   []Tier
}

// Tier returns the index of the tier with the given name, or -1.
func (tg *TextGrid) Tier(name string) int {
	for i, t := range tg.Tiers {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// IntervalTier returns the interval tier with the given name. If no tier
// carries that name, fallback is used as an index; a negative fallback
// counts from the end. ErrTierNotFound is returned when neither resolves to
// an interval tier.
func (tg *TextGrid) IntervalTier(name string, fallback int) (int, error) {
	idx := tg.Tier(name)
	if idx < 0 {
		idx = fallback
		if idx < 0 {
			idx += len(tg.Tiers)
		}
	}
	if idx < 0 || idx >= len(tg.Tiers) || !tg.Tiers[idx].IsInterval() {
		return -1, fmt.Errorf("%w: %q", ErrTierNotFound, name)
	}
	return idx, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}
