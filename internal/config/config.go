package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	slerrors "github.com/lblanes25/smartlookup/internal/errors"
)

// Default tuning values. These match the behavior the engine is calibrated
// for; override them in a .smartlookup.toml file.
const (
	DefaultLazyThresholdMB     = 50.0
	DefaultMaxCacheSize        = 10000
	DefaultUniquenessThreshold = 0.9
	DefaultSuggestionCutoff    = 0.6
	DefaultMaxSuggestions      = 3
	DefaultMaxProbeFiles       = 5
	DefaultWatchDebounceMs     = 500
)

type Config struct {
	Engine    Engine
	Discovery Discovery
	Suggest   Suggest
	Watch     Watch
}

type Engine struct {
	// Files larger than this register lazily: metadata now, full parse on
	// the first lookup that needs them.
	LazyThresholdMB float64

	// Upper bound on resolved-lookup cache entries. Exceeding it prunes
	// the oldest 10% of entries.
	MaxCacheSize int

	// Columns whose distinct/total ratio exceeds this get an exact-match
	// index at load time.
	UniquenessThreshold float64
}

type Discovery struct {
	// Directories scanned for candidate data files when a formula
	// references a column no registered file has.
	SearchDirs []string

	// Doublestar globs applied inside each search dir.
	Patterns []string

	// Cap on how many discovered files get their headers probed.
	MaxProbeFiles int
}

type Suggest struct {
	// Minimum similarity (0..1) for a column name to be offered as a
	// "did you mean" suggestion.
	SimilarityCutoff float64

	// Maximum number of similar columns named in one suggestion.
	MaxSuggestions int
}

type Watch struct {
	DebounceMs int
}

// DefaultConfig returns the configuration the engine runs with when no
// config file is present.
func DefaultConfig() *Config {
	return &Config{
		Engine: Engine{
			LazyThresholdMB:     DefaultLazyThresholdMB,
			MaxCacheSize:        DefaultMaxCacheSize,
			UniquenessThreshold: DefaultUniquenessThreshold,
		},
		Discovery: Discovery{
			SearchDirs:    []string{".", "./data"},
			Patterns:      []string{"**/*.csv", "**/*.tsv"},
			MaxProbeFiles: DefaultMaxProbeFiles,
		},
		Suggest: Suggest{
			SimilarityCutoff: DefaultSuggestionCutoff,
			MaxSuggestions:   DefaultMaxSuggestions,
		},
		Watch: Watch{
			DebounceMs: DefaultWatchDebounceMs,
		},
	}
}

// Load reads a TOML config file and applies it over the defaults. A missing
// file is not an error: it returns the defaults so callers can run with
// zero configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, slerrors.NewConfigError("file", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, slerrors.NewConfigError("file", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and normalizes empty slices back to the
// defaults.
func (c *Config) Validate() error {
	if c.Engine.LazyThresholdMB < 0 {
		return slerrors.NewConfigError("engine.lazy_threshold_mb",
			fmt.Sprintf("%v", c.Engine.LazyThresholdMB), errors.New("must be >= 0"))
	}
	if c.Engine.MaxCacheSize < 1 {
		return slerrors.NewConfigError("engine.max_cache_size",
			fmt.Sprintf("%d", c.Engine.MaxCacheSize), errors.New("must be >= 1"))
	}
	if c.Engine.UniquenessThreshold <= 0 || c.Engine.UniquenessThreshold > 1 {
		return slerrors.NewConfigError("engine.uniqueness_threshold",
			fmt.Sprintf("%v", c.Engine.UniquenessThreshold), errors.New("must be in (0, 1]"))
	}
	if c.Suggest.SimilarityCutoff < 0 || c.Suggest.SimilarityCutoff > 1 {
		return slerrors.NewConfigError("suggest.similarity_cutoff",
			fmt.Sprintf("%v", c.Suggest.SimilarityCutoff), errors.New("must be in [0, 1]"))
	}
	if c.Suggest.MaxSuggestions < 1 {
		c.Suggest.MaxSuggestions = DefaultMaxSuggestions
	}
	if c.Discovery.MaxProbeFiles < 0 {
		c.Discovery.MaxProbeFiles = DefaultMaxProbeFiles
	}
	if len(c.Discovery.Patterns) == 0 {
		c.Discovery.Patterns = []string{"**/*.csv", "**/*.tsv"}
	}
	if c.Watch.DebounceMs < 0 {
		c.Watch.DebounceMs = DefaultWatchDebounceMs
	}
	return nil
}
