package config_test

// Notes:
// - Uses t.TempDir() + t.Setenv("XDG_CONFIG_HOME") for I/O isolation.
// - Tests using t.Setenv are NOT parallel (incompatible with t.Parallel).
// - Pure functions (Get, Set, EnvName, ResolveOutputDir) use t.Parallel().

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvpi/MakeDiffSinger/internal/config"
	"github.com/openvpi/MakeDiffSinger/internal/refine"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// isolate points the config and data directories at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

// writeConfigFile creates config.toml under the isolated config dir.
func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config", "tgenhance")
	require.NoError(t, os.MkdirAll(configDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o600))
}

// ---------------------------------------------------------------------------
// TestDefault
// ---------------------------------------------------------------------------

func TestDefault_MatchesRefineDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, refine.DefaultParams(), cfg.Params())
	assert.Equal(t, 1, cfg.Batch.Parallel)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, config.FormatAuto, cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

// ---------------------------------------------------------------------------
// TestLoad - precedence: defaults < file < env
// ---------------------------------------------------------------------------

func TestLoad_NoFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, refine.DefaultParams(), cfg.Params())
	assert.Equal(t, filepath.Join(dir, "data", "tgenhance", "ledger.db"), cfg.Batch.Ledger)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	writeConfigFile(t, dir, `
[refine]
min_space = 0.06
breath_db = -55.0

[batch]
parallel = 4

[log]
format = "json"
`)
	t.Setenv("TGENHANCE_REFINE_MIN_SPACE", "0.08")
	t.Setenv("TGENHANCE_BATCH_OUTPUT_DIR", "/data/out")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.08, cfg.Refine.MinSpace, "env overrides file")
	assert.Equal(t, -55.0, cfg.Refine.BreathDB, "file overrides default")
	assert.Equal(t, 40.0, cfg.Refine.F0Min, "default kept")
	assert.Equal(t, 4, cfg.Batch.Parallel)
	assert.Equal(t, "/data/out", cfg.Batch.OutputDir)
	assert.Equal(t, config.FormatJSON, cfg.Log.Format)

	fileOnly, err := config.LoadFile()
	require.NoError(t, err)
	assert.Equal(t, 0.06, fileOnly.Refine.MinSpace, "LoadFile ignores env")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr error
	}{
		{name: "bad toml", file: "[refine\nmin_space = 1"},
		{name: "unknown key", file: "[refine]\nbogus = 1\n"},
		{name: "invalid params", file: "[refine]\nf0_min = 500.0\nf0_max = 100.0\n", wantErr: config.ErrInvalidValue},
		{name: "bad log level", file: "[log]\nlevel = \"loud\"\n", wantErr: config.ErrInvalidValue},
		{name: "bad env value", env: map[string]string{"TGENHANCE_BATCH_PARALLEL": "many"}, wantErr: config.ErrInvalidValue},
		{name: "zero parallel from env", env: map[string]string{"TGENHANCE_BATCH_PARALLEL": "0"}, wantErr: config.ErrInvalidValue},
		{name: "infinite time step from env", env: map[string]string{"TGENHANCE_REFINE_TIME_STEP": "+Inf"}, wantErr: config.ErrInvalidValue},
		{name: "NaN min space in file", file: "[refine]\nmin_space = nan\n", wantErr: config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			if tt.file != "" {
				writeConfigFile(t, dir, tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestSaveKey - round trip through the file
// ---------------------------------------------------------------------------

func TestSaveKey(t *testing.T) {
	isolate(t)

	require.NoError(t, config.SaveKey(config.KeyMinSpace, "0.05"))
	require.NoError(t, config.SaveKey(config.KeyParallel, "8"))

	cfg, err := config.LoadFile()
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Refine.MinSpace)
	assert.Equal(t, 8, cfg.Batch.Parallel)
	assert.Equal(t, 40.0, cfg.Refine.F0Min)

	p, err := config.Path()
	require.NoError(t, err)
	assert.FileExists(t, p)
	assert.NoFileExists(t, p+".tmp")
}

func TestSaveKey_Rejects(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "unknown key", key: "output-dir", value: "x", wantErr: config.ErrUnknownKey},
		{name: "not a number", key: config.KeyF0Min, value: "low", wantErr: config.ErrInvalidValue},
		{name: "bad format", key: config.KeyLogFormat, value: "xml", wantErr: config.ErrInvalidValue},
		{name: "breaks params", key: config.KeyTimeStep, value: "0", wantErr: config.ErrInvalidValue},
		{name: "NaN", key: config.KeyMinSpace, value: "NaN", wantErr: config.ErrInvalidValue},
		{name: "infinite", key: config.KeyF0Max, value: "Inf", wantErr: config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.SaveKey(tt.key, tt.value)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	p, err := config.Path()
	require.NoError(t, err)
	assert.NoFileExists(t, p, "rejected values are never written")
}

func TestSaveKey_ExpandsHome(t *testing.T) {
	isolate(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.NoError(t, config.SaveKey(config.KeyLedger, "~/runs.db"))

	cfg, err := config.LoadFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "runs.db"), cfg.Batch.Ledger)
}

// ---------------------------------------------------------------------------
// TestRegistry - pure functions
// ---------------------------------------------------------------------------

func TestGetSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key   string
		value string
	}{
		{key: config.KeyF0Max, value: "900"},
		{key: config.KeyBreathWindow, value: "0.025"},
		{key: config.KeyParallel, value: "3"},
		{key: config.KeyOutputDir, value: "/tmp/out"},
		{key: config.KeyLogLevel, value: "debug"},
		{key: config.KeyLogFormat, value: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			require.NoError(t, config.Set(&cfg, tt.key, tt.value))
			got, err := config.Get(cfg, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
			assert.Equal(t, tt.value, config.List(cfg)[tt.key])
		})
	}
}

func TestGet_UnknownKey(t *testing.T) {
	t.Parallel()

	_, err := config.Get(config.Default(), "refine.nope")
	require.ErrorIs(t, err, config.ErrUnknownKey)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	keys := config.Keys()
	assert.Len(t, keys, 15)
	assert.IsNonDecreasing(t, keys)
	assert.Len(t, config.List(config.Default()), len(keys))
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TGENHANCE_REFINE_F0_MIN", config.EnvName(config.KeyF0Min))
	assert.Equal(t, "TGENHANCE_BATCH_OUTPUT_DIR", config.EnvName(config.KeyOutputDir))
}

func TestEnvName_MatchesLoad(t *testing.T) {
	isolate(t)

	values := map[string]string{
		config.KeyF0Min:           "41.5",
		config.KeyBreathDB:        "-41.5",
		config.KeyBreathMinLength: "0.15",
		config.KeyVoicingBreath:   "0.5",
		config.KeyLogLevel:        "warning",
	}
	for key, v := range values {
		t.Setenv(config.EnvName(key), v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	for key, want := range values {
		got, err := config.Get(cfg, key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestResolveOutputDir(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Batch.OutputDir = "/configured/"

	tests := []struct {
		name string
		flag string
		cfg  config.Config
		want string
	}{
		{name: "flag wins", flag: "out/", cfg: cfg, want: "out"},
		{name: "config fallback", cfg: cfg, want: "/configured"},
		{name: "nothing set", cfg: config.Default(), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, config.ResolveOutputDir(tt.flag, tt.cfg))
		})
	}
}
