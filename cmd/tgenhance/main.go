package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/cli"
	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/enhance"
	"github.com/openvpi/MakeDiffSinger/internal/interrupt"
	"github.com/openvpi/MakeDiffSinger/internal/lexicon"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitPartial    = 5
	ExitInterrupt  = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation. The enhance command installs its
	// own two-step handler on top of this one.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:   "tgenhance",
		Short: "Refine forced-aligned TextGrids for singing datasets",
		Long: `tgenhance refines the word and phone tiers of forced-aligned TextGrids
using acoustic evidence from the recordings: it extends words into voiced
silence, labels breaths as AP and cleans up the remaining silences as SP.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.EnhanceCmd(env))
	rootCmd.AddCommand(cli.AlignWordsCmd(env))
	rootCmd.AddCommand(cli.CheckCmd(env))
	rootCmd.AddCommand(cli.HistoryCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, cli.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so usage errors are matched on
	// their messages.
	if isCobraUsageError(err) || errors.Is(err, cli.ErrInvalidFlag) {
		return ExitUsage
	}

	// Setup errors: the environment prevents a run.
	if errors.Is(err, enhance.ErrDestinationLocked) || errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrUnknownKey) || errors.Is(err, acoustic.ErrInvalidSettings) {
		return ExitSetup
	}

	// Validation errors: the inputs are wrong.
	if errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrNoRecordings) ||
		errors.Is(err, cli.ErrNoDestination) || errors.Is(err, cli.ErrCheckFailed) ||
		errors.Is(err, lexicon.ErrSyntax) || errors.Is(err, textgrid.ErrSyntax) ||
		errors.Is(err, refine.ErrInvalidParams) || errors.Is(err, enhance.ErrOutputExists) {
		return ExitValidation
	}

	if errors.Is(err, cli.ErrPartialFailure) {
		return ExitPartial
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
