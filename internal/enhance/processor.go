// Package enhance runs the refinement pipeline on recordings stored on disk:
// read the aligned TextGrid, reconstruct word groups, analyze the WAV,
// refine the tiers and write the result.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/logging"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// Default tier names. When a TextGrid has no tier with these names, the
// first and second tiers are used.
const (
	WordsTier  = "words"
	PhonesTier = "phones"
)

// Processor refines single recordings. It is safe for concurrent use as
// long as its Provider is.
type Processor struct {
	matcher   *lexicon.Matcher
	provider  acoustic.Provider
	refiner   *refine.Refiner
	overwrite bool
	logger    log.FieldLogger
}

// Option configures a Processor.
type Option func(*Processor)

// WithOverwrite allows replacing existing output files.
func WithOverwrite(overwrite bool) Option {
	return func(p *Processor) {
		p.overwrite = overwrite
	}
}

// WithLogger sets the logger used for per-recording diagnostics.
func WithLogger(l log.FieldLogger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// NewProcessor creates a Processor.
func NewProcessor(dict *lexicon.Dictionary, provider acoustic.Provider, refiner *refine.Refiner, opts ...Option) *Processor {
	p := &Processor{
		matcher:  lexicon.NewMatcher(dict),
		provider: provider,
		refiner:  refiner,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process refines one recording and writes rec.DstPath. Nothing is written
// unless every step succeeds.
func (p *Processor) Process(ctx context.Context, rec Recording) (refine.Stats, error) {
	logger := p.logger.WithField("recording", rec.Name)

	if !p.overwrite {
		if _, err := os.Stat(rec.DstPath); err == nil {
			return refine.Stats{}, fmt.Errorf("%w: %s", ErrOutputExists, rec.DstPath)
		}
	}

	tg, err := textgrid.ReadFile(rec.SrcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return refine.Stats{}, fmt.Errorf("%w: %s", ErrMissingTextGrid, rec.SrcPath)
		}
		return refine.Stats{}, err
	}
	wi, pi, err := wordPhoneTiers(tg)
	if err != nil {
		return refine.Stats{}, fmt.Errorf("%s: %w", rec.SrcPath, err)
	}
	words, phones := tg.Tiers[wi], tg.Tiers[pi]

	groups, err := p.matcher.Groups(lexicalMarks(words), lexicalMarks(phones))
	if err != nil {
		return refine.Stats{}, err
	}

	ev, err := p.provider.Analyze(ctx, rec.WavPath)
	if err != nil {
		return refine.Stats{}, fmt.Errorf("analyze %s: %w", rec.WavPath, err)
	}
	if d := ev.Duration(); d > 0 && d+ev.TimeStep < words.MaxTime {
		logger.WithFields(log.Fields{
			"audio_seconds": d,
			"tier_seconds":  words.MaxTime,
		}).Warn("audio shorter than tiers; acoustic reads are clamped")
	}

	res, err := p.refiner.Run(words, phones, groups, ev)
	if err != nil {
		return refine.Stats{}, err
	}

	out := &textgrid.TextGrid{
		MinTime: tg.MinTime,
		MaxTime: tg.MaxTime,
		Tiers:   make([]textgrid.Tier, len(tg.Tiers)),
	}
	for i, t := range tg.Tiers {
		out.Tiers[i] = t.Clone()
	}
	out.Tiers[wi], out.Tiers[pi] = res.Words, res.Phones

	if err := textgrid.WriteFile(rec.DstPath, out); err != nil {
		return refine.Stats{}, err
	}

	logger.WithFields(log.Fields{
		"extended": res.Stats.Extended,
		"breaths":  res.Stats.Breaths,
		"spaces":   res.Stats.Spaces,
		"merged":   res.Stats.Merged,
	}).Debug("recording refined")
	return res.Stats, nil
}

// wordPhoneTiers locates the word and phone tiers of tg.
func wordPhoneTiers(tg *textgrid.TextGrid) (int, int, error) {
	wi, err := tg.IntervalTier(WordsTier, 0)
	if err != nil {
		return 0, 0, err
	}
	pi, err := tg.IntervalTier(PhonesTier, 1)
	if err != nil {
		return 0, 0, err
	}
	if wi == pi {
		return 0, 0, fmt.Errorf("%w: words and phones resolve to the same tier", textgrid.ErrTierNotFound)
	}
	return wi, pi, nil
}

func lexicalMarks(t textgrid.Tier) []string {
	var out []string
	for _, iv := range t.Intervals {
		if lexicon.IsLexical(iv.Mark) {
			out = append(out, iv.Mark)
		}
	}
	return out
}
