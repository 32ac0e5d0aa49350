package enhance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// WordAligner rebuilds the word tier of TextGrids so that word boundaries
// coincide with the phone boundaries of the words' pronunciations.
type WordAligner struct {
	matcher   *lexicon.Matcher
	overwrite bool
}

// NewWordAligner creates a WordAligner.
func NewWordAligner(dict *lexicon.Dictionary, overwrite bool) *WordAligner {
	return &WordAligner{matcher: lexicon.NewMatcher(dict), overwrite: overwrite}
}

// Align reads src, rebuilds its word tier and writes the TextGrid to dst.
// The word tier is the one named "words" or else the second to last tier;
// the phone tier is "phones" or else the last tier. src and dst may be the
// same file only when overwriting is enabled.
func (a *WordAligner) Align(src, dst string) error {
	if !a.overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, dst)
		}
	}

	tg, err := textgrid.ReadFile(src)
	if err != nil {
		return err
	}
	wi, err := tg.IntervalTier(WordsTier, -2)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	pi, err := tg.IntervalTier(PhonesTier, -1)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if wi == pi {
		return fmt.Errorf("%s: %w: words and phones resolve to the same tier", src, textgrid.ErrTierNotFound)
	}
	words, phones := tg.Tiers[wi], tg.Tiers[pi]

	groups, err := a.matcher.Groups(lexicalMarks(words), lexicalMarks(phones))
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	rebuilt, err := refine.RebuildWords(words.Name, words.Marks(), phones, groups)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	out := &textgrid.TextGrid{MinTime: tg.MinTime, MaxTime: tg.MaxTime}
	for i, t := range tg.Tiers {
		if i == wi {
			t = rebuilt
		}
		out.Tiers = append(out.Tiers, t.Clone())
	}
	return textgrid.WriteFile(dst, out)
}

// ListTextGrids returns the TextGrid files of dir in name order.
func ListTextGrids(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+TextGridExt))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
