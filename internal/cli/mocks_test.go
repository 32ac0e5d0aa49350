package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/openvpi/MakeDiffSinger/internal/acoustic"
	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/interrupt"
	"github.com/openvpi/MakeDiffSinger/internal/ledger"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return testConfig(), nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// testConfig is the default config without a ledger path, so tests never
// touch the user's data directory.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Batch.Ledger = ""
	cfg.Log.Level = "error"
	return cfg
}

// ---------------------------------------------------------------------------
// Mock ProviderFactory + Provider
// ---------------------------------------------------------------------------

type mockProvider struct {
	AnalyzeFunc func(ctx context.Context, wavPath string) (*acoustic.Evidence, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockProvider) Analyze(ctx context.Context, wavPath string) (*acoustic.Evidence, error) {
	m.mu.Lock()
	m.calls = append(m.calls, wavPath)
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, wavPath)
	}
	return silentEvidence(), nil
}

func (m *mockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockProviderFactory struct {
	NewProviderFunc func(s acoustic.Settings) (acoustic.Provider, error)
	provider        *mockProvider

	mu       sync.Mutex
	settings []acoustic.Settings
}

func (m *mockProviderFactory) NewProvider(s acoustic.Settings) (acoustic.Provider, error) {
	m.mu.Lock()
	m.settings = append(m.settings, s)
	m.mu.Unlock()

	if m.NewProviderFunc != nil {
		return m.NewProviderFunc(s)
	}
	if m.provider == nil {
		m.provider = &mockProvider{}
	}
	return m.provider, nil
}

// LastSettings returns the settings of the last NewProvider call.
func (m *mockProviderFactory) LastSettings() (acoustic.Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.settings) == 0 {
		return acoustic.Settings{}, false
	}
	return m.settings[len(m.settings)-1], true
}

// silentEvidence is one second of unvoiced silence.
func silentEvidence() *acoustic.Evidence {
	return &acoustic.Evidence{
		TimeStep:    0.005,
		VowelPitch:  make(acoustic.Curve, 201),
		BreathPitch: make(acoustic.Curve, 201),
		Centroid:    make(acoustic.Curve, 201),
		Samples:     make([]float64, 16000),
		SampleRate:  16000,
	}
}

// ---------------------------------------------------------------------------
// Mock LedgerOpener + in-memory Ledger
// ---------------------------------------------------------------------------

type memLedger struct {
	mu      sync.Mutex
	runs    map[string]*ledger.Run
	entries map[string][]ledger.Entry
	nextID  int
	closed  bool
	now     time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{
		runs:    make(map[string]*ledger.Run),
		entries: make(map[string][]ledger.Entry),
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (l *memLedger) StartRun(_ context.Context, info ledger.RunInfo) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := fmt.Sprintf("a%d000000-run", l.nextID)
	l.now = l.now.Add(time.Minute)
	l.runs[id] = &ledger.Run{
		ID:        id,
		StartedAt: l.now,
		WavDir:    info.WavDir,
		SrcDir:    info.SrcDir,
		DstDir:    info.DstDir,
		Params:    info.Params,
	}
	return id, nil
}

func (l *memLedger) Record(_ context.Context, runID string, entries []ledger.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[runID]
	if !ok {
		return ledger.ErrRunNotFound
	}
	l.entries[runID] = append(l.entries[runID], entries...)
	run.Total = len(l.entries[runID])
	run.Failed = 0
	for _, e := range l.entries[runID] {
		if e.Err != "" {
			run.Failed++
		}
	}
	l.now = l.now.Add(time.Second)
	run.FinishedAt = l.now
	return nil
}

func (l *memLedger) Runs(_ context.Context, limit int) ([]ledger.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	runs := make([]ledger.Run, 0, len(l.runs))
	for _, r := range l.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (l *memLedger) Entries(_ context.Context, runID string) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]ledger.Entry(nil), l.entries[runID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *memLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// onlyRun returns the single recorded run.
func (l *memLedger) onlyRun() (ledger.Run, []ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.runs) != 1 {
		return ledger.Run{}, nil, errors.New("expected exactly one run")
	}
	for id, r := range l.runs {
		return *r, l.entries[id], nil
	}
	return ledger.Run{}, nil, nil
}

type mockLedgerOpener struct {
	OpenFunc func(ctx context.Context, path string) (Ledger, error)
	ledger   *memLedger

	mu    sync.Mutex
	paths []string
}

func (m *mockLedgerOpener) Open(ctx context.Context, path string) (Ledger, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, path)
	}
	if m.ledger == nil {
		m.ledger = newMemLedger()
	}
	return m.ledger, nil
}

func (m *mockLedgerOpener) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// ---------------------------------------------------------------------------
// Mock InterruptFactory + Interrupter
// ---------------------------------------------------------------------------

type mockInterrupter struct {
	interrupted bool
	behavior    interrupt.Behavior

	mu      sync.Mutex
	stopped bool
}

func (m *mockInterrupter) Interrupted() bool          { return m.interrupted }
func (m *mockInterrupter) Decide() interrupt.Behavior { return m.behavior }

func (m *mockInterrupter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockInterrupter) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// mockInterruptFactory simulates Ctrl+C: when interrupter.interrupted is
// set, the returned context is already canceled.
type mockInterruptFactory struct {
	interrupter *mockInterrupter
}

func (m *mockInterruptFactory) NewHandler(ctx context.Context, _ io.Writer) (Interrupter, context.Context) {
	if m.interrupter == nil {
		m.interrupter = &mockInterrupter{}
	}
	if m.interrupter.interrupted {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		return m.interrupter, canceled
	}
	return m.interrupter, ctx
}

// Compile-time interface verification.
var (
	_ ConfigLoader      = (*mockConfigLoader)(nil)
	_ ProviderFactory   = (*mockProviderFactory)(nil)
	_ acoustic.Provider = (*mockProvider)(nil)
	_ LedgerOpener      = (*mockLedgerOpener)(nil)
	_ Ledger            = (*memLedger)(nil)
	_ InterruptFactory  = (*mockInterruptFactory)(nil)
	_ Interrupter       = (*mockInterrupter)(nil)
)
