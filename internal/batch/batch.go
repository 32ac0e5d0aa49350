// Package batch refines many recordings concurrently. A failing recording
// never stops its siblings; every recording gets an Outcome.
package batch

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openvpi/MakeDiffSinger/internal/enhance"
	"github.com/openvpi/MakeDiffSinger/internal/logging"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
)

// Processor refines a single recording.
// enhance.Processor is the production implementation.
type Processor interface {
	Process(ctx context.Context, rec enhance.Recording) (refine.Stats, error)
}

// Outcome is the result of one recording.
type Outcome struct {
	Recording enhance.Recording
	Stats     refine.Stats
	Err       error
	Duration  time.Duration
}

// Skipped reports whether the recording was never started because the
// batch was canceled.
func (o Outcome) Skipped() bool {
	return o.Duration == 0 && errors.Is(o.Err, context.Canceled)
}

// Options configures Run.
type Options struct {
	// Parallel bounds the number of recordings processed at once.
	// Values below 1 mean 1.
	Parallel int
	// Logger receives one entry per finished recording. Defaults to a
	// discarding logger.
	Logger log.FieldLogger
	// OnDone, if set, is called after each recording finishes. Calls may
	// come from several goroutines at once.
	OnDone func(Outcome)
}

// Run processes recs with at most opts.Parallel recordings in flight and
// returns one Outcome per recording, in input order. Recordings not started
// when ctx is canceled are reported with context.Canceled.
func Run(ctx context.Context, recs []enhance.Recording, proc Processor, opts Options) []Outcome {
	if len(recs) == 0 {
		return nil
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	outcomes := make([]Outcome, len(recs))
	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, parallel)

	var g errgroup.Group
	for i, rec := range recs {
		g.Go(func() error {
			outcomes[i].Recording = rec

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i].Err = ctx.Err()
				return nil
			}
			defer func() { <-sem }()

			// A slot may free up after cancellation; do not start new work then.
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}

			start := time.Now()
			st, err := proc.Process(ctx, rec)
			out := Outcome{Recording: rec, Stats: st, Err: err, Duration: time.Since(start)}
			outcomes[i] = out

			entry := logger.WithFields(log.Fields{
				"recording": rec.Name,
				"elapsed":   out.Duration.Round(time.Millisecond).String(),
			})
			if err != nil {
				entry.WithError(err).Error("recording failed")
			} else {
				entry.Info("recording done")
			}
			if opts.OnDone != nil {
				opts.OnDone(out)
			}
			return nil
		})
	}
	// Goroutines report through outcomes and never return an error.
	_ = g.Wait()

	return outcomes
}

// Summary aggregates the outcomes of a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Stats     refine.Stats
	Elapsed   time.Duration // sum of per-recording durations
}

// Summarize aggregates outcomes. Skipped recordings are not counted as
// failures.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		s.Elapsed += o.Duration
		switch {
		case o.Skipped():
			s.Skipped++
		case o.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
			s.Stats.Add(o.Stats)
		}
	}
	return s
}

// Failures returns the outcomes that ended with an error other than a
// cancellation before start.
func Failures(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil && !o.Skipped() {
			out = append(out, o)
		}
	}
	return out
}
