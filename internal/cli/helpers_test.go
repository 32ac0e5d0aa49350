package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/openvpi/MakeDiffSinger/internal/textgrid"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	provider     *mockProviderFactory
	ledger       *mockLedgerOpener
	interrupt    *mockInterruptFactory
	stdout       *syncBuffer
	stderr       *syncBuffer
}

func newTestMocks() *testMocks {
	return &testMocks{
		configLoader: &mockConfigLoader{},
		provider:     &mockProviderFactory{},
		ledger:       &mockLedgerOpener{},
		interrupt:    &mockInterruptFactory{},
		stdout:       &syncBuffer{},
		stderr:       &syncBuffer{},
	}
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv(getenv map[string]string) (*Env, *testMocks) {
	mocks := newTestMocks()
	env := &Env{
		Stdout: mocks.stdout,
		Stderr: mocks.stderr,
		Getenv: func(key string) string { return getenv[key] },
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		},
		ConfigLoader:     mocks.configLoader,
		ProviderFactory:  mocks.provider,
		LedgerOpener:     mocks.ledger,
		InterruptFactory: mocks.interrupt,
	}
	return env, mocks
}

// execute runs cmd with args the way the root command would.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

// ---------------------------------------------------------------------------
// Dataset fixture
// ---------------------------------------------------------------------------

const testDictionary = "ge\tg e\nchang\tch ang\nhao\th ao\n"

// dataset is a temp directory laid out as wavs/, src/ and dst/ with a
// dictionary file.
type dataset struct {
	dir  string
	wavs string
	src  string
	dst  string
	dict string
}

func newDataset(t *testing.T) dataset {
	t.Helper()
	dir := t.TempDir()
	d := dataset{
		dir:  dir,
		wavs: filepath.Join(dir, "wavs"),
		src:  filepath.Join(dir, "src"),
		dst:  filepath.Join(dir, "dst"),
		dict: filepath.Join(dir, "dict.txt"),
	}
	require.NoError(t, os.MkdirAll(d.wavs, 0o750))
	require.NoError(t, os.MkdirAll(d.src, 0o750))
	require.NoError(t, os.WriteFile(d.dict, []byte(testDictionary), 0o600))
	return d
}

// addRecording creates an empty WAV file and, if tg is not nil, its
// TextGrid.
func (d dataset) addRecording(t *testing.T, name string, tg *textgrid.TextGrid) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(d.wavs, name+".wav"), nil, 0o600))
	if tg != nil {
		require.NoError(t, textgrid.WriteFile(filepath.Join(d.src, name+".TextGrid"), tg))
	}
}

// addWAV replaces the WAV file of a recording with silence of the given length.
func (d dataset) addWAV(t *testing.T, name string, seconds float64) {
	t.Helper()
	const rate = 1000
	f, err := os.Create(filepath.Join(d.wavs, name+".wav"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, int(seconds*rate)),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

// addLabel writes the .lab transcription of a recording.
func (d dataset) addLabel(t *testing.T, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(d.wavs, name+".lab"), []byte(text), 0o600))
}

func iv(from, to float64, mark string) textgrid.Interval {
	return textgrid.Interval{MinTime: from, MaxTime: to, Mark: mark}
}

// geChang is a one-second aligned TextGrid: a leading 0.3 s gap and a
// 0.02 s gap between the two words.
func geChang() *textgrid.TextGrid {
	return &textgrid.TextGrid{MinTime: 0, MaxTime: 1, Tiers: []textgrid.Tier{
		textgrid.NewIntervalTier("words", []textgrid.Interval{
			iv(0, 0.3, ""), iv(0.3, 0.7, "ge"), iv(0.7, 0.72, ""), iv(0.72, 1, "chang"),
		}),
		textgrid.NewIntervalTier("phones", []textgrid.Interval{
			iv(0, 0.3, ""), iv(0.3, 0.5, "g"), iv(0.5, 0.7, "e"),
			iv(0.7, 0.72, ""), iv(0.72, 0.85, "ch"), iv(0.85, 1, "ang"),
		}),
	}}
}

// unaligned has word boundaries that disagree with the phone boundaries.
func unaligned() *textgrid.TextGrid {
	return &textgrid.TextGrid{MinTime: 0, MaxTime: 1, Tiers: []textgrid.Tier{
		textgrid.NewIntervalTier("words", []textgrid.Interval{
			iv(0, 0.25, "SP"), iv(0.25, 0.6, "ge"), iv(0.6, 1, "chang"),
		}),
		textgrid.NewIntervalTier("phones", []textgrid.Interval{
			iv(0, 0.3, "SP"), iv(0.3, 0.5, "g"), iv(0.5, 0.7, "e"),
			iv(0.7, 0.85, "ch"), iv(0.85, 1, "ang"),
		}),
	}}
}
