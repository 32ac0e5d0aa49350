package cli

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/enhance"
	"github.com/openvpi/MakeDiffSinger/internal/format"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
)

// checkOptions holds the parsed flags of the check command.
type checkOptions struct {
	wavDir   string
	tgDir    string
	dictPath string
	multi    bool

	lengths   bool
	minLength float64 // seconds
	maxLength float64 // seconds
}

// segmentLength is the duration of one recording outside the length bounds.
type segmentLength struct {
	name    string
	seconds float64
	tooLong bool
}

// checkReport collects the problems found in a dataset.
type checkReport struct {
	recordings    int
	missingTG     []string
	missingLabels []string
	emptyLabels   []string
	oov           map[string]int // syllable -> occurrences
	uncovered     []string

	// Filled by --lengths. Length warnings do not fail the check.
	measured    bool
	unreadable  []string
	outOfRange  []segmentLength
	totalLength time.Duration
}

func (r checkReport) failed() bool {
	return len(r.missingTG) > 0 || len(r.missingLabels) > 0 || len(r.emptyLabels) > 0 ||
		len(r.oov) > 0 || len(r.uncovered) > 0 || len(r.unreadable) > 0
}

// CheckCmd creates the check command.
func CheckCmd(env *Env) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a dataset before refinement",
		Long: `Check that every WAV file has a TextGrid of the same name.

With --dictionary, the .lab transcription next to every WAV file is also
checked: missing or empty transcriptions, syllables missing from the
dictionary and phonemes never used by any transcription fail the check.

With --lengths, every WAV file is measured: recordings shorter than
--min-length or longer than --max-length are listed as warnings, followed
by the total length of the dataset.`,
		Example: `  tgenhance check --wavs wavs --tg textgrids
  tgenhance check --wavs wavs --tg textgrids --dictionary opencpop.txt
  tgenhance check --wavs wavs --tg textgrids --lengths --max-length 15`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.wavDir, "wavs", "", "Directory of WAV recordings")
	cmd.Flags().StringVar(&opts.tgDir, "tg", "", "Directory of TextGrids")
	cmd.Flags().StringVar(&opts.dictPath, "dictionary", "", "Dictionary file to check transcriptions against")
	cmd.Flags().BoolVar(&opts.multi, "multi", false, "Keep every pronunciation of repeated dictionary symbols")
	cmd.Flags().BoolVar(&opts.lengths, "lengths", false, "Measure recording lengths and report the dataset total")
	cmd.Flags().Float64Var(&opts.minLength, "min-length", 2, "Shortest recording length in seconds without a warning")
	cmd.Flags().Float64Var(&opts.maxLength, "max-length", 20, "Longest recording length in seconds without a warning")

	_ = cmd.MarkFlagRequired("wavs")
	_ = cmd.MarkFlagRequired("tg")

	return cmd
}

func runCheck(env *Env, opts checkOptions) error {
	if opts.lengths {
		if math.IsNaN(opts.minLength) || math.IsNaN(opts.maxLength) ||
			opts.minLength < 0 || opts.maxLength <= opts.minLength {
			return fmt.Errorf("%w: need 0 <= --min-length < --max-length, got %g and %g",
				ErrInvalidFlag, opts.minLength, opts.maxLength)
		}
	}
	if err := requireDir(opts.wavDir); err != nil {
		return err
	}
	if err := requireDir(opts.tgDir); err != nil {
		return err
	}

	recs, err := enhance.Discover(opts.wavDir, opts.tgDir, opts.tgDir)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: no .wav files in %s", ErrNoRecordings, opts.wavDir)
	}

	report := checkReport{recordings: len(recs), missingTG: enhance.MissingTextGrids(recs)}

	if opts.dictPath != "" {
		if err := requireFile(opts.dictPath); err != nil {
			return err
		}
		dict, err := lexicon.LoadFile(opts.dictPath, dictMode(opts.multi))
		if err != nil {
			return err
		}
		if err := checkLabels(recs, dict, &report); err != nil {
			return err
		}
	}

	if opts.lengths {
		checkLengths(recs, opts, &report)
	}

	printCheckReport(env, report)
	if report.failed() {
		return ErrCheckFailed
	}
	return nil
}

// checkLabels reads the .lab transcriptions of recs against dict.
func checkLabels(recs []enhance.Recording, dict *lexicon.Dictionary, report *checkReport) error {
	cov := lexicon.NewCoverage(dict)
	report.oov = make(map[string]int)
	for _, r := range recs {
		lab := enhance.LabelPath(r.WavPath)
		syllables, err := enhance.ReadLabel(lab)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				report.missingLabels = append(report.missingLabels, lab)
				continue
			}
			return fmt.Errorf("read %s: %w", lab, err)
		}
		if len(syllables) == 0 {
			report.emptyLabels = append(report.emptyLabels, lab)
			continue
		}
		for _, s := range cov.Add(syllables) {
			report.oov[s]++
		}
	}
	report.uncovered = cov.Uncovered()
	return nil
}

// checkLengths measures every recording against the length bounds.
func checkLengths(recs []enhance.Recording, opts checkOptions, report *checkReport) {
	report.measured = true
	for _, r := range recs {
		d, err := acoustic.WAVDuration(r.WavPath)
		if err != nil {
			report.unreadable = append(report.unreadable, filepath.Base(r.WavPath))
			continue
		}
		report.totalLength += d
		s := d.Seconds()
		if s < opts.minLength || s > opts.maxLength {
			report.outOfRange = append(report.outOfRange, segmentLength{
				name: r.Name, seconds: s, tooLong: s > opts.maxLength,
			})
		}
	}
}

func printCheckReport(env *Env, r checkReport) {
	fmt.Fprintf(env.Stdout, "Checked %s\n", format.Count(r.recordings, "recording"))

	if len(r.missingTG) > 0 {
		fmt.Fprintf(env.Stdout, "\nMissing TextGrids (%d):\n", len(r.missingTG))
		for _, p := range r.missingTG {
			fmt.Fprintf(env.Stdout, "  %s\n", filepath.Base(p))
		}
	}
	if len(r.missingLabels) > 0 {
		fmt.Fprintf(env.Stdout, "\nMissing transcriptions (%d):\n", len(r.missingLabels))
		for _, p := range r.missingLabels {
			fmt.Fprintf(env.Stdout, "  %s\n", filepath.Base(p))
		}
	}
	if len(r.emptyLabels) > 0 {
		fmt.Fprintf(env.Stdout, "\nEmpty transcriptions (%d):\n", len(r.emptyLabels))
		for _, p := range r.emptyLabels {
			fmt.Fprintf(env.Stdout, "  %s\n", filepath.Base(p))
		}
	}
	if len(r.oov) > 0 {
		rows := make([][]string, 0, len(r.oov))
		for _, s := range slices.Sorted(maps.Keys(r.oov)) {
			rows = append(rows, []string{s, strconv.Itoa(r.oov[s])})
		}
		fmt.Fprintf(env.Stdout, "\nSyllables not in dictionary:\n%s\n",
			renderTable([]string{"Syllable", "Occurrences"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	if len(r.uncovered) > 0 {
		fmt.Fprintf(env.Stdout, "\nPhonemes not covered by any transcription: %s\n", strings.Join(r.uncovered, " "))
	}
	if r.measured {
		printLengths(env, r)
	}
	if !r.failed() {
		fmt.Fprintln(env.Stdout, "No problems found.")
	}
}

func printLengths(env *Env, r checkReport) {
	if len(r.unreadable) > 0 {
		fmt.Fprintf(env.Stdout, "\nUnreadable WAV files (%d):\n", len(r.unreadable))
		for _, name := range r.unreadable {
			fmt.Fprintf(env.Stdout, "  %s\n", name)
		}
	}
	if len(r.outOfRange) > 0 {
		rows := make([][]string, 0, len(r.outOfRange))
		for _, s := range r.outOfRange {
			problem := "too short"
			if s.tooLong {
				problem = "too long"
			}
			rows = append(rows, []string{s.name, strconv.FormatFloat(s.seconds, 'f', 1, 64) + "s", problem})
		}
		fmt.Fprintf(env.Stdout, "\nRecordings with unusual length:\n%s\n",
			renderTable([]string{"Recording", "Length", "Problem"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	}
	measured := r.recordings - len(r.unreadable)
	fmt.Fprintf(env.Stdout, "\nTotal length: %s in %.2f hours\n",
		format.Count(measured, "recording"), r.totalLength.Hours())
}
