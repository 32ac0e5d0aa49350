package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/batch"
	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/enhance"
	"github.com/openvpi/MakeDiffSinger/internal/format"
	"github.com/openvpi/MakeDiffSinger/internal/interrupt"
	"github.com/openvpi/MakeDiffSinger/internal/ledger"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/logging"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
)

// maxParallel bounds --parallel; analysis is CPU bound.
const maxParallel = 64

// paramFlag binds a command-line flag to a refine.Params field.
type paramFlag struct {
	name  string
	usage string
	field func(*refine.Params) *float64
}

var paramFlags = []paramFlag{
	{"f0-min", "Minimum pitch (Hz)", func(p *refine.Params) *float64 { return &p.F0Min }},
	{"f0-max", "Maximum pitch (Hz)", func(p *refine.Params) *float64 { return &p.F0Max }},
	{"br-len", "Minimum breath length (s)", func(p *refine.Params) *float64 { return &p.BreathMinLength }},
	{"br-db", "Breath RMS threshold (dB)", func(p *refine.Params) *float64 { return &p.BreathDB }},
	{"br-centroid", "Breath spectral centroid threshold (Hz)", func(p *refine.Params) *float64 { return &p.BreathCentroid }},
	{"time-step", "Analysis time step (s)", func(p *refine.Params) *float64 { return &p.TimeStep }},
	{"min-space", "Shortest gap labeled SP (s)", func(p *refine.Params) *float64 { return &p.MinSpace }},
	{"voicing-thresh-vowel", "Voicing threshold for word extension", func(p *refine.Params) *float64 { return &p.VoicingVowel }},
	{"voicing-thresh-breath", "Voicing threshold for breath detection", func(p *refine.Params) *float64 { return &p.VoicingBreath }},
	{"br-win-sz", "Breath detection window (s)", func(p *refine.Params) *float64 { return &p.BreathWindow }},
}

// registerParamFlags adds the parameter flags to cmd, bound to p.
func registerParamFlags(cmd *cobra.Command, p *refine.Params) {
	defaults := refine.DefaultParams()
	for _, f := range paramFlags {
		cmd.Flags().Float64Var(f.field(p), f.name, *f.field(&defaults), f.usage)
	}
}

// resolveParams returns base with the explicitly set flags applied.
func resolveParams(cmd *cobra.Command, flagged, base refine.Params) refine.Params {
	out := base
	for _, f := range paramFlags {
		if cmd.Flags().Changed(f.name) {
			*f.field(&out) = *f.field(&flagged)
		}
	}
	return out
}

// clampParallel constrains the worker count to [1, maxParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxParallel {
		return maxParallel
	}
	return n
}

func dictMode(multi bool) lexicon.Mode {
	if multi {
		return lexicon.Multi
	}
	return lexicon.Single
}

// enhanceOptions holds the parsed flags of the enhance command.
type enhanceOptions struct {
	wavDir     string
	dictPath   string
	srcDir     string
	dstDir     string
	multi      bool
	overwrite  bool
	parallel   int
	ledgerPath string
	noLedger   bool
	params     refine.Params // flag values; only changed flags are applied
}

// EnhanceCmd creates the enhance command.
// The env parameter provides injectable dependencies for testing.
func EnhanceCmd(env *Env) *cobra.Command {
	var opts enhanceOptions

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Refine aligned TextGrids with acoustic evidence",
		Long: `Refine the word and phone tiers of forced-aligned TextGrids.

For every WAV file, the TextGrid of the same name is read from --src, three
passes are applied and the result is written to --dst:

  1. words followed by voiced silence are extended into it
  2. breaths inside long silences are labeled AP
  3. remaining silences become SP, or are merged into neighbors if short

Parameters default to the configuration (see "tgenhance config list") and
can be overridden per run with flags.`,
		Example: `  tgenhance enhance --wavs wavs --dictionary opencpop.txt --src textgrids --dst refined
  tgenhance enhance --wavs wavs --dictionary dict.txt --src tg --dst out --parallel 8 --min-space 0.05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnhance(cmd, env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.wavDir, "wavs", "", "Directory of WAV recordings")
	cmd.Flags().StringVar(&opts.dictPath, "dictionary", "", "Dictionary file (symbol<TAB>phonemes)")
	cmd.Flags().StringVar(&opts.srcDir, "src", "", "Directory of aligned TextGrids")
	cmd.Flags().StringVar(&opts.dstDir, "dst", "", "Output directory (default: batch.output_dir)")
	cmd.Flags().BoolVar(&opts.multi, "multi", false, "Keep every pronunciation of repeated dictionary symbols")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing output TextGrids")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 1, "Recordings processed concurrently (default: batch.parallel)")
	cmd.Flags().StringVar(&opts.ledgerPath, "ledger", "", "Run history database (default: batch.ledger)")
	cmd.Flags().BoolVar(&opts.noLedger, "no-ledger", false, "Do not record this run")
	registerParamFlags(cmd, &opts.params)

	_ = cmd.MarkFlagRequired("wavs")
	_ = cmd.MarkFlagRequired("dictionary")
	_ = cmd.MarkFlagRequired("src")
	cmd.MarkFlagsMutuallyExclusive("ledger", "no-ledger")

	return cmd
}

// runEnhance executes the refinement batch.
// Validation order: inputs exist -> config -> params -> destination
func runEnhance(cmd *cobra.Command, env *Env, opts enhanceOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if err := requireDir(opts.wavDir); err != nil {
		return err
	}
	if err := requireDir(opts.srcDir); err != nil {
		return err
	}
	if err := requireFile(opts.dictPath); err != nil {
		return err
	}

	cfg := loadConfig(env)

	params := resolveParams(cmd, opts.params, cfg.Params())
	if err := params.Validate(); err != nil {
		return err
	}

	parallel := cfg.Batch.Parallel
	if cmd.Flags().Changed("parallel") {
		parallel = opts.parallel
	}
	parallel = clampParallel(parallel)

	dstDir := config.ResolveOutputDir(opts.dstDir, cfg)
	if dstDir == "" {
		return fmt.Errorf("%w (use --dst or: tgenhance config set %s DIR)", ErrNoDestination, config.KeyOutputDir)
	}

	ledgerPath := cfg.Batch.Ledger
	if opts.ledgerPath != "" {
		ledgerPath = config.ExpandPath(opts.ledgerPath)
	}
	if opts.noLedger {
		ledgerPath = ""
	}

	logger, err := newLogger(env, cfg)
	if err != nil {
		return err
	}

	// === SETUP ===

	dict, err := lexicon.LoadFile(opts.dictPath, dictMode(opts.multi))
	if err != nil {
		return err
	}
	recs, err := enhance.Discover(opts.wavDir, opts.srcDir, dstDir)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: no .wav files in %s", ErrNoRecordings, opts.wavDir)
	}
	if missing := enhance.MissingTextGrids(recs); len(missing) > 0 {
		fmt.Fprintf(env.Stderr, "Warning: %s without a TextGrid (run \"tgenhance check\")\n",
			format.Count(len(missing), "recording"))
	}

	provider, err := env.ProviderFactory.NewProvider(params.AnalyzerSettings())
	if err != nil {
		return err
	}
	refiner, err := refine.New(params)
	if err != nil {
		return err
	}

	lock, err := enhance.LockDestination(dstDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	store, runID := startRun(ctx, env, ledgerPath, ledger.RunInfo{
		WavDir: opts.wavDir,
		SrcDir: opts.srcDir,
		DstDir: dstDir,
		Params: params,
	})
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	proc := enhance.NewProcessor(dict, provider, refiner,
		enhance.WithOverwrite(opts.overwrite),
		enhance.WithLogger(logger),
	)

	// === BATCH ===

	handler, runCtx := env.InterruptFactory.NewHandler(ctx, env.Stderr)
	defer handler.Stop()

	fmt.Fprintf(env.Stderr, "Refining %s (%d parallel)...\n", format.Count(len(recs), "recording"), parallel)
	var done atomic.Int32
	outcomes := batch.Run(runCtx, recs, proc, batch.Options{
		Parallel: parallel,
		Logger:   logger,
		OnDone: func(o batch.Outcome) {
			status := "ok"
			if o.Err != nil {
				status = "failed"
			}
			fmt.Fprintf(env.Stderr, "  [%d/%d] %s: %s\n", done.Add(1), len(recs), o.Recording.Name, status)
		},
	})

	interrupted := handler.Interrupted()
	if interrupted && handler.Decide() == interrupt.Abort {
		return ErrInterrupted
	}

	// === REPORT ===

	if store != nil {
		if err := store.Record(ctx, runID, ledgerEntries(outcomes)); err != nil {
			fmt.Fprintf(env.Stderr, "Warning: failed to record run: %v\n", err)
		}
	}

	summary := batch.Summarize(outcomes)
	fmt.Fprintln(env.Stdout, renderSummary(summary))
	failed := batch.Failures(outcomes)
	if len(failed) > 0 {
		fmt.Fprintln(env.Stderr, renderFailures(failed))
	}

	if interrupted {
		return fmt.Errorf("%w: %s not started", ErrInterrupted, format.Count(summary.Skipped, "recording"))
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d recordings", ErrPartialFailure, summary.Failed, summary.Total)
	}

	fmt.Fprintf(env.Stderr, "Done: %s\n", dstDir)
	return nil
}

// startRun opens the ledger and records the start of a run. Ledger
// problems are reported as warnings and disable the ledger for this run.
func startRun(ctx context.Context, env *Env, path string, info ledger.RunInfo) (Ledger, string) {
	if path == "" {
		return nil, ""
	}
	store, err := env.LedgerOpener.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: run history disabled: %v\n", err)
		return nil, ""
	}
	id, err := store.StartRun(ctx, info)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: run history disabled: %v\n", err)
		_ = store.Close()
		return nil, ""
	}
	return store, id
}

// ledgerEntries converts the outcomes of started recordings.
func ledgerEntries(outcomes []batch.Outcome) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Skipped() {
			continue
		}
		e := ledger.Entry{Name: o.Recording.Name, Stats: o.Stats, Duration: o.Duration}
		if o.Err != nil {
			e.Err = o.Err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}

// loadConfig loads the configuration, falling back to defaults with a
// warning.
func loadConfig(env *Env) config.Config {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
		return config.Default()
	}
	return cfg
}

// newLogger builds the diagnostics logger on env.Stderr.
func newLogger(env *Env, cfg config.Config) (*log.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    env.Stderr,
	})
}

// requireDir checks that path is an existing directory.
func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}

// requireFile checks that path is an existing regular file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory: %s", path)
	}
	return nil
}
