package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"

	"github.com/openvpi/MakeDiffSinger/internal/refine"
)

// appName names the configuration and data directories.
const appName = "tgenhance"

// EnvPrefix prefixes every environment override, e.g. TGENHANCE_BATCH_PARALLEL.
const EnvPrefix = "TGENHANCE"

// Log formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// ErrUnknownKey indicates a key missing from the registry.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalidValue indicates a value that does not parse or validate.
	ErrInvalidValue = errors.New("invalid config value")
)

// Config holds user configuration loaded from
// $XDG_CONFIG_HOME/tgenhance/config.toml and TGENHANCE_* variables.
type Config struct {
	Refine RefineConfig `toml:"refine"`
	Batch  BatchConfig  `toml:"batch"`
	Log    LogConfig    `toml:"log"`
}

// RefineConfig mirrors refine.Params.
type RefineConfig struct {
	F0Min           float64 `toml:"f0_min" split_words:"true"`
	F0Max           float64 `toml:"f0_max" split_words:"true"`
	BreathMinLength float64 `toml:"breath_min_length" split_words:"true"`
	BreathDB        float64 `toml:"breath_db" split_words:"true"`
	BreathCentroid  float64 `toml:"breath_centroid" split_words:"true"`
	TimeStep        float64 `toml:"time_step" split_words:"true"`
	MinSpace        float64 `toml:"min_space" split_words:"true"`
	VoicingVowel    float64 `toml:"voicing_vowel" split_words:"true"`
	VoicingBreath   float64 `toml:"voicing_breath" split_words:"true"`
	BreathWindow    float64 `toml:"breath_window" split_words:"true"`
}

// BatchConfig controls batch runs.
type BatchConfig struct {
	Parallel  int    `toml:"parallel" split_words:"true"`
	Ledger    string `toml:"ledger" split_words:"true"` // "" disables the ledger
	OutputDir string `toml:"output_dir" split_words:"true"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level  string `toml:"level" split_words:"true"`
	Format string `toml:"format" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := refine.DefaultParams()
	return Config{
		Refine: RefineConfig{
			F0Min:           p.F0Min,
			F0Max:           p.F0Max,
			BreathMinLength: p.BreathMinLength,
			BreathDB:        p.BreathDB,
			BreathCentroid:  p.BreathCentroid,
			TimeStep:        p.TimeStep,
			MinSpace:        p.MinSpace,
			VoicingVowel:    p.VoicingVowel,
			VoicingBreath:   p.VoicingBreath,
			BreathWindow:    p.BreathWindow,
		},
		Batch: BatchConfig{
			Parallel: 1,
			Ledger:   defaultLedgerPath(),
		},
		Log: LogConfig{
			Level:  log.InfoLevel.String(),
			Format: FormatAuto,
		},
	}
}

// Params converts the refine section to refine.Params.
func (c Config) Params() refine.Params {
	r := c.Refine
	return refine.Params{
		F0Min:           r.F0Min,
		F0Max:           r.F0Max,
		BreathMinLength: r.BreathMinLength,
		BreathDB:        r.BreathDB,
		BreathCentroid:  r.BreathCentroid,
		TimeStep:        r.TimeStep,
		MinSpace:        r.MinSpace,
		VoicingVowel:    r.VoicingVowel,
		VoicingBreath:   r.VoicingBreath,
		BreathWindow:    r.BreathWindow,
	}
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/tgenhance.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.toml"), nil
}

// defaultLedgerPath returns $XDG_DATA_HOME/tgenhance/ledger.db, or "" when
// no home directory is known.
func defaultLedgerPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "ledger.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName, "ledger.db")
}

// Load returns the effective configuration.
// Precedence: defaults, then the config file, then environment variables.
// A missing config file is not an error.
func Load() (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return cfg, err
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: environment: %w", ErrInvalidValue, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the config file only.
func LoadFile() (Config, error) {
	cfg := Default()

	p, err := Path()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", p, err)
	}
	return cfg, nil
}

// Validate checks the values that the registry cannot check one at a time.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	for _, key := range []string{KeyParallel, KeyLogLevel, KeyLogFormat} {
		v, _ := Get(c, key)
		if err := registry[key].check(v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
	}
	return nil
}

// Save writes cfg to the config file, creating the directory if needed.
func Save(cfg Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key registry
// ---------------------------------------------------------------------------

// Config keys.
const (
	KeyF0Min           = "refine.f0_min"
	KeyF0Max           = "refine.f0_max"
	KeyBreathMinLength = "refine.breath_min_length"
	KeyBreathDB        = "refine.breath_db"
	KeyBreathCentroid  = "refine.breath_centroid"
	KeyTimeStep        = "refine.time_step"
	KeyMinSpace        = "refine.min_space"
	KeyVoicingVowel    = "refine.voicing_vowel"
	KeyVoicingBreath   = "refine.voicing_breath"
	KeyBreathWindow    = "refine.breath_window"
	KeyParallel        = "batch.parallel"
	KeyLedger          = "batch.ledger"
	KeyOutputDir       = "batch.output_dir"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

type entry struct {
	get   func(*Config) string
	set   func(*Config, string) error
	check func(string) error
}

func floatEntry(field func(*Config) *float64) entry {
	return entry{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
		check: func(string) error { return nil },
	}
}

func stringEntry(field func(*Config) *string, check func(string) error) entry {
	return entry{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if err := check(v); err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
		check: check,
	}
}

func anyString(string) error { return nil }

func checkParallel(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func checkLevel(v string) error {
	_, err := log.ParseLevel(v)
	return err
}

func checkFormat(v string) error {
	if !slices.Contains([]string{FormatAuto, FormatText, FormatJSON}, v) {
		return fmt.Errorf("must be one of %s, %s, %s", FormatAuto, FormatText, FormatJSON)
	}
	return nil
}

var registry = map[string]entry{
	KeyF0Min:           floatEntry(func(c *Config) *float64 { return &c.Refine.F0Min }),
	KeyF0Max:           floatEntry(func(c *Config) *float64 { return &c.Refine.F0Max }),
	KeyBreathMinLength: floatEntry(func(c *Config) *float64 { return &c.Refine.BreathMinLength }),
	KeyBreathDB:        floatEntry(func(c *Config) *float64 { return &c.Refine.BreathDB }),
	KeyBreathCentroid:  floatEntry(func(c *Config) *float64 { return &c.Refine.BreathCentroid }),
	KeyTimeStep:        floatEntry(func(c *Config) *float64 { return &c.Refine.TimeStep }),
	KeyMinSpace:        floatEntry(func(c *Config) *float64 { return &c.Refine.MinSpace }),
	KeyVoicingVowel:    floatEntry(func(c *Config) *float64 { return &c.Refine.VoicingVowel }),
	KeyVoicingBreath:   floatEntry(func(c *Config) *float64 { return &c.Refine.VoicingBreath }),
	KeyBreathWindow:    floatEntry(func(c *Config) *float64 { return &c.Refine.BreathWindow }),
	KeyParallel: {
		get: func(c *Config) string { return strconv.Itoa(c.Batch.Parallel) },
		set: func(c *Config, v string) error {
			if err := checkParallel(v); err != nil {
				return err
			}
			c.Batch.Parallel, _ = strconv.Atoi(v)
			return nil
		},
		check: checkParallel,
	},
	KeyLedger:    stringEntry(func(c *Config) *string { return &c.Batch.Ledger }, anyString),
	KeyOutputDir: stringEntry(func(c *Config) *string { return &c.Batch.OutputDir }, anyString),
	KeyLogLevel:  stringEntry(func(c *Config) *string { return &c.Log.Level }, checkLevel),
	KeyLogFormat: stringEntry(func(c *Config) *string { return &c.Log.Format }, checkFormat),
}

// Keys returns all supported keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get returns the value of key in cfg.
func Get(cfg Config, key string) (string, error) {
	e, ok := registry[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return e.get(&cfg), nil
}

// Set parses value into key of cfg.
func Set(cfg *Config, key, value string) error {
	e, ok := registry[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := e.set(cfg, value); err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
	return nil
}

// List returns every key with its value in cfg.
func List(cfg Config) map[string]string {
	out := make(map[string]string, len(registry))
	for k, e := range registry {
		out[k] = e.get(&cfg)
	}
	return out
}

// SaveKey sets one key in the config file, keeping the other values.
// The resulting file must still validate.
func SaveKey(key, value string) error {
	cfg, err := LoadFile()
	if err != nil {
		return err
	}
	if err := Set(&cfg, key, value); err != nil {
		return err
	}
	if key == KeyLedger || key == KeyOutputDir {
		cfg.Batch.Ledger = ExpandPath(cfg.Batch.Ledger)
		cfg.Batch.OutputDir = ExpandPath(cfg.Batch.OutputDir)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Save(cfg)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// ResolveOutputDir picks the destination directory: the flag if set,
// otherwise the configured output directory.
func ResolveOutputDir(flag string, cfg Config) string {
	if flag != "" {
		return filepath.Clean(ExpandPath(flag))
	}
	if cfg.Batch.OutputDir != "" {
		return filepath.Clean(ExpandPath(cfg.Batch.OutputDir))
	}
	return ""
}
