package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/enhance"
	"github.com/openvpi/MakeDiffSinger/internal/format"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
)

// alignOptions holds the parsed flags of the align-words command.
type alignOptions struct {
	tgDir     string
	dictPath  string
	outDir    string
	multi     bool
	overwrite bool
}

// AlignWordsCmd creates the align-words command.
func AlignWordsCmd(env *Env) *cobra.Command {
	var opts alignOptions

	cmd := &cobra.Command{
		Use:   "align-words",
		Short: "Rebuild word tiers from phone tiers",
		Long: `Rebuild the word tier of every TextGrid in --tg so that each word spans
exactly the phones of its pronunciation. SP and AP become words of their own.

Without --out the TextGrids are rewritten in place, which requires --overwrite.`,
		Example: `  tgenhance align-words --tg textgrids --dictionary opencpop.txt --out aligned
  tgenhance align-words --tg textgrids --dictionary dict.txt --overwrite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlignWords(env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tgDir, "tg", "", "Directory of TextGrids")
	cmd.Flags().StringVar(&opts.dictPath, "dictionary", "", "Dictionary file (symbol<TAB>phonemes)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Output directory (default: rewrite in place)")
	cmd.Flags().BoolVar(&opts.multi, "multi", false, "Keep every pronunciation of repeated dictionary symbols")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing TextGrids")

	_ = cmd.MarkFlagRequired("tg")
	_ = cmd.MarkFlagRequired("dictionary")

	return cmd
}

func runAlignWords(env *Env, opts alignOptions) error {
	if err := requireDir(opts.tgDir); err != nil {
		return err
	}
	if err := requireFile(opts.dictPath); err != nil {
		return err
	}

	outDir := opts.outDir
	if outDir == "" {
		if !opts.overwrite {
			return fmt.Errorf("%w: in-place rewrite needs --overwrite (or use --out)", enhance.ErrOutputExists)
		}
		outDir = opts.tgDir
	} else if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	dict, err := lexicon.LoadFile(opts.dictPath, dictMode(opts.multi))
	if err != nil {
		return err
	}
	files, err := enhance.ListTextGrids(opts.tgDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no TextGrids in %s", ErrFileNotFound, opts.tgDir)
	}

	aligner := enhance.NewWordAligner(dict, opts.overwrite)
	failed := 0
	for _, src := range files {
		dst := filepath.Join(outDir, filepath.Base(src))
		if err := aligner.Align(src, dst); err != nil {
			fmt.Fprintf(env.Stderr, "  %s: %v\n", filepath.Base(src), err)
			failed++
		}
	}

	fmt.Fprintf(env.Stderr, "Aligned %s\n", format.Count(len(files)-failed, "TextGrid"))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d TextGrids", ErrPartialFailure, failed, len(files))
	}
	return nil
}
