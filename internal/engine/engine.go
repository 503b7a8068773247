// Package engine exposes the smart lookup engine: register tabular files,
// resolve LOOKUP references against them by column name alone, and validate
// formula text before it runs.
//
// One mutex serializes every entry point, so a multi-threaded host can call
// the engine directly; there is no internal concurrency beyond that. A lazy
// load blocks its caller for the duration of the parse; cancellation, if
// needed, belongs in the host's Loader.
package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lblanes25/smartlookup/internal/cache"
	"github.com/lblanes25/smartlookup/internal/config"
	"github.com/lblanes25/smartlookup/internal/formula"
	"github.com/lblanes25/smartlookup/internal/index"
	"github.com/lblanes25/smartlookup/internal/loader"
	"github.com/lblanes25/smartlookup/internal/registry"
	"github.com/lblanes25/smartlookup/internal/tracker"
	"github.com/lblanes25/smartlookup/internal/types"
)

// Engine is the facade over the registry, cache, tracker and resolver.
// Construct one per validation session; it holds no process-wide state.
type Engine struct {
	mu sync.Mutex

	cfg       *config.Config
	log       zerolog.Logger
	registry  *registry.Registry
	cache     *cache.ResultCache
	tracker   *tracker.Tracker
	validator *formula.Validator
}

// New creates an engine using the given loader as its file I/O collaborator.
func New(cfg *config.Config, l loader.Loader, log zerolog.Logger) *Engine {
	builder := index.NewBuilder(cfg.Engine.UniquenessThreshold, log)
	reg := registry.New(l, builder, cfg.Engine.LazyThresholdMB, log)
	disc := loader.NewDiscovery(cfg.Discovery, l, log)
	return &Engine{
		cfg:       cfg,
		log:       log,
		registry:  reg,
		cache:     cache.New(cfg.Engine.MaxCacheSize, log),
		tracker:   tracker.New(),
		validator: formula.NewValidator(reg, disc, cfg.Suggest, log),
	}
}

// AddFile registers a file for lookups. See registry.Registry.Add for the
// lazy-loading rules. Registration failures are returned to the caller;
// nothing is registered on error. Re-registering a path replaces its entry
// and drops every cache entry referencing it, so a reloaded file cannot
// serve stale results.
func (e *Engine) AddFile(path string, opts registry.AddOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, replacing := e.registry.Entry(path)
	if err := e.registry.Add(path, opts); err != nil {
		return err
	}
	if replacing {
		e.cache.PurgeFile(path)
	}
	return nil
}

// UnloadFile releases a file: its table, indices, aliases, column index
// slots and every cache entry referencing it. Unknown paths are a no-op.
func (e *Engine) UnloadFile(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registry.Unload(path) {
		e.cache.PurgeFile(path)
	}
}

// SmartLookup resolves a value reference against the registered files.
// Strategies, in strict priority order: the hinted source if a hint
// resolves; files carrying both columns when both are given; the
// cross-file smart search when only the return column is given. Returns
// null when nothing matches; a failed file load or probe on this path
// degrades to null rather than an error, because one bad file must not
// abort a whole row batch.
func (e *Engine) SmartLookup(value types.Value, searchCol, returnCol, sourceHint string) types.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(value, searchCol, returnCol, sourceHint)
}

// ValidateLookupFormula checks every LOOKUP(...) call site in the formula
// against the registered columns. It performs no lookups and never forces
// a lazy load.
func (e *Engine) ValidateLookupFormula(text string) formula.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validator.Validate(text)
}

// ClearCache empties the result cache and resets its statistics.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Clear()
	e.log.Info().Msg("lookup cache cleared")
}

// EnableTracking starts recording lookup operations, discarding any
// previously recorded ones.
func (e *Engine) EnableTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Enable()
}

// DisableTracking stops recording. Recorded operations stay readable.
func (e *Engine) DisableTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Disable()
}

// SetCurrentRow sets the caller's row context for subsequent tracked
// operations.
func (e *Engine) SetCurrentRow(row int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.SetCurrentRow(row)
}

// TrackedOperations returns a copy of the recorded operations.
func (e *Engine) TrackedOperations() []tracker.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Operations()
}

// ClearTrackedOperations drops recorded operations and the row context.
func (e *Engine) ClearTrackedOperations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Clear()
}

// Statistics reports a snapshot of engine state and cache performance.
type Statistics struct {
	FilesLoaded    int     `json:"files_loaded"`
	FilesLazy      int     `json:"files_lazy"`
	TotalColumns   int     `json:"total_columns"`
	TotalRows      int     `json:"total_rows"`
	CacheSize      int     `json:"cache_size"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	IndicesCreated int     `json:"indices_created"`
}

// Statistics snapshots the current counters.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Statistics{
		FilesLoaded:    e.registry.LoadedCount(),
		FilesLazy:      e.registry.LazyCount(),
		TotalColumns:   e.registry.TotalColumns(),
		TotalRows:      e.registry.TotalRows(),
		CacheSize:      e.cache.Len(),
		CacheHits:      e.cache.Hits(),
		CacheMisses:    e.cache.Misses(),
		CacheHitRate:   e.cache.HitRate(),
		IndicesCreated: e.registry.IndicesCreated(),
	}
}
