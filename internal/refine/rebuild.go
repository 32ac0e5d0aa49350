package refine

import (
	"fmt"

	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// RebuildWords builds a word tier whose boundaries follow the phone tier.
// Each mark spans len(group) phones if it is lexical and one phone
// otherwise; its interval runs from the end of the previous word to the end
// of its last phone. The last word ends at the phone tier end.
func RebuildWords(name string, marks []string, phones textgrid.Tier, groups [][]string) (textgrid.Tier, error) {
	if err := phones.CheckContiguous(); err != nil {
		return textgrid.Tier{}, fmt.Errorf("%w: %w", ErrTierShape, err)
	}

	intervals := make([]textgrid.Interval, 0, len(marks))
	start := phones.MinTime
	idx, g := 0, 0
	for i, m := range marks {
		n := 1
		if lexicon.IsLexical(m) {
			if g >= len(groups) {
				return textgrid.Tier{}, fmt.Errorf("%w: word %d %q has no phone group", ErrTierShape, i, m)
			}
			n = len(groups[g])
			g++
		}
		if n == 0 || idx+n > len(phones.Intervals) {
			return textgrid.Tier{}, fmt.Errorf("%w: word %d %q needs %d phones, %d left",
				ErrTierShape, i, m, n, len(phones.Intervals)-idx)
		}
		idx += n
		end := phones.Intervals[idx-1].MaxTime
		intervals = append(intervals, textgrid.Interval{MinTime: start, MaxTime: end, Mark: m})
		start = end
	}
	if idx != len(phones.Intervals) || g != len(groups) {
		return textgrid.Tier{}, fmt.Errorf("%w: words span %d of %d phones", ErrTierShape, idx, len(phones.Intervals))
	}
	if len(intervals) > 0 {
		intervals[len(intervals)-1].MaxTime = phones.MaxTime
	}

	return textgrid.Tier{
		Name:      name,
		Class:     textgrid.ClassInterval,
		MinTime:   phones.MinTime,
		MaxTime:   phones.MaxTime,
		Intervals: intervals,
	}, nil
}
