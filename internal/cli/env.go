package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/interrupt"
	"github.com/openvpi/MakeDiffSinger/internal/ledger"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have defaults via DefaultEnv(). Tests override specific fields
// using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer // reports and tables
	Stderr io.Writer // progress, warnings and logs
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ConfigLoader     ConfigLoader
	ProviderFactory  ProviderFactory
	LedgerOpener     LedgerOpener
	InterruptFactory InterruptFactory
}

// ConfigLoader loads the effective configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// ProviderFactory creates the acoustic evidence provider.
type ProviderFactory interface {
	NewProvider(s acoustic.Settings) (acoustic.Provider, error)
}

// Ledger is the run history store.
type Ledger interface {
	StartRun(ctx context.Context, info ledger.RunInfo) (string, error)
	Record(ctx context.Context, runID string, entries []ledger.Entry) error
	Runs(ctx context.Context, limit int) ([]ledger.Run, error)
	Entries(ctx context.Context, runID string) ([]ledger.Entry, error)
	Close() error
}

// LedgerOpener opens the run history store.
type LedgerOpener interface {
	Open(ctx context.Context, path string) (Ledger, error)
}

// Interrupter reports and resolves Ctrl+C during a batch.
type Interrupter interface {
	Interrupted() bool
	Decide() interrupt.Behavior
	Stop()
}

// InterruptFactory installs an interrupt handler and returns the context
// canceled on the first interrupt.
type InterruptFactory interface {
	NewHandler(ctx context.Context, stderr io.Writer) (Interrupter, context.Context)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithProviderFactory sets the acoustic provider factory.
func WithProviderFactory(f ProviderFactory) EnvOption {
	return func(e *Env) {
		e.ProviderFactory = f
	}
}

// WithLedgerOpener sets the ledger opener.
func WithLedgerOpener(o LedgerOpener) EnvOption {
	return func(e *Env) {
		e.LedgerOpener = o
	}
}

// WithInterruptFactory sets the interrupt handler factory.
func WithInterruptFactory(f InterruptFactory) EnvOption {
	return func(e *Env) {
		e.InterruptFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		Getenv:           os.Getenv,
		Now:              time.Now,
		ConfigLoader:     &defaultConfigLoader{},
		ProviderFactory:  &defaultProviderFactory{},
		LedgerOpener:     &defaultLedgerOpener{},
		InterruptFactory: &defaultInterruptFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultProviderFactory implements ProviderFactory with the built-in analyzer.
type defaultProviderFactory struct{}

func (defaultProviderFactory) NewProvider(s acoustic.Settings) (acoustic.Provider, error) {
	return acoustic.NewAnalyzer(s)
}

// defaultLedgerOpener implements LedgerOpener with the SQLite ledger.
type defaultLedgerOpener struct{}

func (defaultLedgerOpener) Open(ctx context.Context, path string) (Ledger, error) {
	return ledger.Open(ctx, path)
}

// defaultInterruptFactory implements InterruptFactory with real signals.
type defaultInterruptFactory struct{}

func (defaultInterruptFactory) NewHandler(ctx context.Context, stderr io.Writer) (Interrupter, context.Context) {
	return interrupt.NewHandler(ctx, interrupt.Options{Stderr: stderr})
}

// Compile-time interface verification.
var (
	_ ConfigLoader     = (*defaultConfigLoader)(nil)
	_ ProviderFactory  = (*defaultProviderFactory)(nil)
	_ LedgerOpener     = (*defaultLedgerOpener)(nil)
	_ InterruptFactory = (*defaultInterruptFactory)(nil)
	_ Ledger           = (*ledger.Store)(nil)
	_ Interrupter      = (*interrupt.Handler)(nil)
)
