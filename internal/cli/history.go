package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/ledger"
)

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	limit      int
	ledgerPath string
	run        string
}

// HistoryCmd creates the history command.
func HistoryCmd(env *Env) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past enhance runs",
		Long: `List the enhance runs recorded in the run history, newest first.

With --run, show the recordings of one run. The run ID may be abbreviated
to any unique prefix, such as the one shown in the list.`,
		Example: `  tgenhance history
  tgenhance history --limit 50
  tgenhance history --run 3f2a9c1e`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, env, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&opts.ledgerPath, "ledger", "", "Run history database (default: batch.ledger)")
	cmd.Flags().StringVar(&opts.run, "run", "", "Show the recordings of this run")

	return cmd
}

func runHistory(cmd *cobra.Command, env *Env, opts historyOptions) error {
	ctx := cmd.Context()

	path := config.ExpandPath(opts.ledgerPath)
	if path == "" {
		path = loadConfig(env).Batch.Ledger
	}
	if path == "" {
		return fmt.Errorf("%w: no run history configured (set %s)", ErrFileNotFound, config.KeyLedger)
	}

	store, err := env.LedgerOpener.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.run != "" {
		return showRun(cmd, env, store, opts.run)
	}

	runs, err := store.Runs(ctx, opts.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(env.Stdout, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(env.Stdout, renderRuns(runs))
	return nil
}

// showRun prints the recordings of the run whose ID starts with prefix.
func showRun(cmd *cobra.Command, env *Env, store Ledger, prefix string) error {
	ctx := cmd.Context()

	runs, err := store.Runs(ctx, 0)
	if err != nil {
		return err
	}
	var match []ledger.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return fmt.Errorf("%w: %s", ledger.ErrRunNotFound, prefix)
	case 1:
	default:
		return errors.New("ambiguous run ID prefix: " + prefix)
	}

	run := match[0]
	entries, err := store.Entries(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, renderRuns([]ledger.Run{run}))
	fmt.Fprintf(env.Stdout, "Sources: %s\nWAVs:    %s\n", run.SrcDir, run.WavDir)
	if len(entries) == 0 {
		fmt.Fprintln(env.Stdout, "No recordings recorded.")
		return nil
	}
	fmt.Fprintln(env.Stdout, renderEntries(entries))
	return nil
}
