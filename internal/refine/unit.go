package refine

import (
	"fmt"
	"math"
	"slices"

	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// Unit is a word interval together with the phone intervals it spans.
// Unlabeled, SP and AP words span exactly one phone.
type Unit struct {
	Word   textgrid.Interval
	Phones []textgrid.Interval
}

// IsSilence reports whether the unit is an unlabeled gap.
func (u Unit) IsSilence() bool {
	return u.Word.Mark == ""
}

func (u Unit) clone() Unit {
	u.Phones = slices.Clone(u.Phones)
	return u
}

// setStart moves the left boundary of the word and of its first phone.
func (u *Unit) setStart(t float64) {
	u.Word.MinTime = t
	u.Phones[0].MinTime = t
}

// setEnd moves the right boundary of the word and of its last phone.
func (u *Unit) setEnd(t float64) {
	u.Word.MaxTime = t
	u.Phones[len(u.Phones)-1].MaxTime = t
}

func (u *Unit) relabel(mark string) {
	u.Word.Mark = mark
	for i := range u.Phones {
		u.Phones[i].Mark = mark
	}
}

// gapUnit creates a one-phone unit with identical word and phone intervals.
func gapUnit(from, to float64, mark string) Unit {
	iv := textgrid.Interval{MinTime: from, MaxTime: to, Mark: mark}
	return Unit{Word: iv, Phones: []textgrid.Interval{iv}}
}

func cloneUnits(units []Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = u.clone()
	}
	return out
}

// Cursor walks a word sequence and a phone sequence in lockstep. Each step
// consumes one word and as many phones as that word spans: the length of
// its group for lexical words, one otherwise.
type Cursor struct {
	words  []textgrid.Interval
	phones []textgrid.Interval
	groups [][]string
	word   int
	phone  int
	group  int
}

// NewCursor creates a Cursor at the start of both sequences. groups holds
// one phone group per lexical word, in order.
func NewCursor(words, phones []textgrid.Interval, groups [][]string) *Cursor {
	return &Cursor{words: words, phones: phones, groups: groups}
}

// Done reports whether every word has been consumed.
func (c *Cursor) Done() bool {
	return c.word >= len(c.words)
}

// Span returns the number of phones the current word spans.
func (c *Cursor) Span() (int, error) {
	if c.Done() {
		return 0, fmt.Errorf("%w: cursor past last word", ErrTierShape)
	}
	if !lexicon.IsLexical(c.words[c.word].Mark) {
		return 1, nil
	}
	if c.group >= len(c.groups) {
		return 0, fmt.Errorf("%w: word %d %q has no phone group", ErrTierShape, c.word, c.words[c.word].Mark)
	}
	return len(c.groups[c.group]), nil
}

// Next returns the current word with its phones and advances past them.
func (c *Cursor) Next() (Unit, error) {
	span, err := c.Span()
	if err != nil {
		return Unit{}, err
	}
	w := c.words[c.word]
	if span == 0 || c.phone+span > len(c.phones) {
		return Unit{}, fmt.Errorf("%w: word %d %s needs %d phones, %d left",
			ErrTierShape, c.word, w, span, len(c.phones)-c.phone)
	}

	u := Unit{Word: w, Phones: slices.Clone(c.phones[c.phone : c.phone+span])}
	c.word++
	c.phone += span
	if lexicon.IsLexical(w.Mark) {
		c.group++
	}
	return u, nil
}

// Rest returns how many phones and groups have not been consumed.
func (c *Cursor) Rest() (phones, groups int) {
	return len(c.phones) - c.phone, len(c.groups) - c.group
}

// Pair splits the word and phone tiers into units. Both tiers must be
// contiguous over the same span, every group must be used, every phone
// consumed, and each unit's phones must share the word's outer boundaries.
func Pair(words, phones textgrid.Tier, groups [][]string) ([]Unit, error) {
	if err := words.CheckContiguous(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTierShape, err)
	}
	if err := phones.CheckContiguous(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTierShape, err)
	}
	if !near(words.MinTime, phones.MinTime) || !near(words.MaxTime, phones.MaxTime) {
		return nil, fmt.Errorf("%w: words span [%g, %g], phones span [%g, %g]",
			ErrTierShape, words.MinTime, words.MaxTime, phones.MinTime, phones.MaxTime)
	}

	c := NewCursor(words.Intervals, phones.Intervals, groups)
	units := make([]Unit, 0, len(words.Intervals))
	g := 0
	for !c.Done() {
		u, err := c.Next()
		if err != nil {
			return nil, err
		}
		if err := checkUnit(u); err != nil {
			return nil, err
		}
		if lexicon.IsLexical(u.Word.Mark) {
			if got := phoneMarks(u.Phones); !slices.Equal(got, groups[g]) {
				return nil, fmt.Errorf("%w: word %s spans phones %v, expected %v",
					ErrTierShape, u.Word, got, groups[g])
			}
			g++
		}
		units = append(units, u)
	}
	if phonesLeft, groupsLeft := c.Rest(); phonesLeft != 0 || groupsLeft != 0 {
		return nil, fmt.Errorf("%w: %d phones and %d groups left after last word",
			ErrTierShape, phonesLeft, groupsLeft)
	}
	return units, nil
}

func checkUnit(u Unit) error {
	first, last := u.Phones[0], u.Phones[len(u.Phones)-1]
	if !near(first.MinTime, u.Word.MinTime) || !near(last.MaxTime, u.Word.MaxTime) {
		return fmt.Errorf("%w: word %s is not aligned with phones %s..%s",
			ErrTierShape, u.Word, first, last)
	}
	if !lexicon.IsLexical(u.Word.Mark) && lexicon.IsLexical(first.Mark) {
		return fmt.Errorf("%w: %q word %s covers phone %s", ErrTierShape, u.Word.Mark, u.Word, first)
	}
	return nil
}

func phoneMarks(phones []textgrid.Interval) []string {
	marks := make([]string, len(phones))
	for i, p := range phones {
		marks[i] = p.Mark
	}
	return marks
}

// Flatten concatenates units back into a word tier and a phone tier,
// keeping the names and spans of the given template tiers.
func Flatten(units []Unit, wordsTmpl, phonesTmpl textgrid.Tier) (textgrid.Tier, textgrid.Tier) {
	words := make([]textgrid.Interval, 0, len(units))
	var phones []textgrid.Interval
	for _, u := range units {
		words = append(words, u.Word)
		phones = append(phones, u.Phones...)
	}
	return newTier(wordsTmpl, words), newTier(phonesTmpl, phones)
}

func newTier(tmpl textgrid.Tier, intervals []textgrid.Interval) textgrid.Tier {
	return textgrid.Tier{
		Name:      tmpl.Name,
		Class:     textgrid.ClassInterval,
		MinTime:   tmpl.MinTime,
		MaxTime:   tmpl.MaxTime,
		Intervals: intervals,
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= textgrid.Epsilon
}
