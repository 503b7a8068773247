// Package registry tracks every file registered for lookups: metadata, the
// column-to-files index used for discovery and disambiguation, friendly
// aliases, and the lazy-load bookkeeping that defers full parses of large
// files until a lookup actually needs them.
package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	slerrors "github.com/lblanes25/smartlookup/internal/errors"
	"github.com/lblanes25/smartlookup/internal/index"
	"github.com/lblanes25/smartlookup/internal/loader"
	"github.com/lblanes25/smartlookup/internal/types"
)

const bytesPerMB = 1024 * 1024

// FileEntry is everything the registry knows about one registered file.
// Table and Indices are nil while the entry is lazy; once a lookup forces
// the load they are owned here and released together on unload.
type FileEntry struct {
	Path     string
	Columns  []string
	RowCount int
	SizeMB   float64
	Lazy     bool
	Table    *types.Table
	Indices  map[string]*index.ValueIndex
}

// AddOptions modify registration. Data skips the parse for already-loaded
// tables; Alias overrides the default (file stem); Lazy forces the loading
// mode instead of deriving it from file size.
type AddOptions struct {
	Data  *types.Table
	Alias string
	Lazy  *bool
}

// Registry owns file entries and the column index. Iteration and tie-break
// order is always registration order, never map order, so ambiguous
// lookups resolve deterministically.
type Registry struct {
	loader          loader.Loader
	builder         *index.Builder
	lazyThresholdMB float64
	log             zerolog.Logger

	entries     map[string]*FileEntry
	paths       []string            // registration order
	columnIndex map[string][]string // column -> paths, first-registered first
	columnOrder []string            // first-appearance order of column names
	aliases     map[string]string   // alias -> path
	aliasOrder  []string            // alias registration order
}

// New creates an empty registry.
func New(l loader.Loader, b *index.Builder, lazyThresholdMB float64, log zerolog.Logger) *Registry {
	return &Registry{
		loader:          l,
		builder:         b,
		lazyThresholdMB: lazyThresholdMB,
		log:             log,
		entries:         make(map[string]*FileEntry),
		columnIndex:     make(map[string][]string),
		aliases:         make(map[string]string),
	}
}

// Add registers a file for lookups. Large files (or registrations without
// data) are registered lazily: a header/row-count probe now, the full parse
// deferred to the first lookup. Registration is fail-fast: an unreadable
// file returns a LoadError instead of a half-registered entry.
//
// Re-registering a path replaces the previous entry completely: its columns
// are unwound from the column index before the new ones are recorded.
func (r *Registry) Add(path string, opts AddOptions) error {
	info, err := os.Stat(path)
	if err != nil {
		return slerrors.NewLoadError("stat", path, err)
	}
	sizeMB := float64(info.Size()) / bytesPerMB

	lazy := sizeMB > r.lazyThresholdMB || opts.Data == nil
	if opts.Lazy != nil {
		lazy = *opts.Lazy
	}

	entry := &FileEntry{Path: path, SizeMB: sizeMB, Lazy: lazy}
	if lazy {
		columns, err := r.loader.PeekColumns(path)
		if err != nil {
			return err
		}
		rows, err := r.loader.CountRows(path)
		if err != nil {
			return err
		}
		entry.Columns = columns
		entry.RowCount = rows
	} else {
		table := opts.Data
		if table == nil {
			table, err = r.loader.Load(path)
			if err != nil {
				return err
			}
		}
		entry.Table = table
		entry.Columns = append([]string(nil), table.Columns...)
		entry.RowCount = table.NumRows()
		entry.Indices = r.builder.Build(path, table)
	}

	// Replace, not append, if the path was already registered.
	replaced := r.Unload(path)

	r.entries[path] = entry
	r.paths = append(r.paths, path)
	for _, col := range entry.Columns {
		if _, known := r.columnIndex[col]; !known {
			r.columnOrder = append(r.columnOrder, col)
		}
		r.columnIndex[col] = append(r.columnIndex[col], path)
	}

	alias := opts.Alias
	if alias == "" {
		alias = Stem(path)
	}
	if _, known := r.aliases[alias]; !known {
		r.aliasOrder = append(r.aliasOrder, alias)
	}
	r.aliases[alias] = path

	evt := r.log.Info().Str("alias", alias).Str("path", path).
		Float64("size_mb", sizeMB).Int("rows", entry.RowCount)
	if lazy {
		evt.Msg("registered for lazy loading")
	} else if replaced {
		evt.Msg("reloaded")
	} else {
		evt.Msg("loaded")
	}
	return nil
}

// Unload removes a file and every trace of it: entry, column index slots,
// aliases. Unknown paths are a no-op. Returns whether anything was removed.
// Cache purging is the engine's job; the registry does not see the cache.
func (r *Registry) Unload(path string) bool {
	entry, ok := r.entries[path]
	if !ok {
		return false
	}
	delete(r.entries, path)

	for i, p := range r.paths {
		if p == path {
			r.paths = append(r.paths[:i], r.paths[i+1:]...)
			break
		}
	}

	for _, col := range entry.Columns {
		files := r.columnIndex[col]
		kept := files[:0]
		for _, f := range files {
			if f != path {
				kept = append(kept, f)
			}
		}
		if len(kept) == 0 {
			delete(r.columnIndex, col)
			for i, c := range r.columnOrder {
				if c == col {
					r.columnOrder = append(r.columnOrder[:i], r.columnOrder[i+1:]...)
					break
				}
			}
		} else {
			r.columnIndex[col] = kept
		}
	}

	keptAliases := r.aliasOrder[:0]
	for _, alias := range r.aliasOrder {
		if r.aliases[alias] == path {
			delete(r.aliases, alias)
			continue
		}
		keptAliases = append(keptAliases, alias)
	}
	r.aliasOrder = keptAliases

	r.log.Info().Str("path", path).Msg("unloaded file")
	return true
}

// EnsureLoaded returns the materialized table for a registered path,
// performing the deferred parse on first call. Subsequent calls return the
// same table without touching the loader. Blocks for the duration of the
// load; cancellation is the host's concern, around its own Loader.
func (r *Registry) EnsureLoaded(path string) (*types.Table, error) {
	entry, ok := r.entries[path]
	if !ok {
		return nil, slerrors.NewLoadError("ensure", path, os.ErrNotExist)
	}
	if entry.Table != nil {
		return entry.Table, nil
	}

	r.log.Info().Str("path", path).Msg("loading for first lookup")
	table, err := r.loader.Load(path)
	if err != nil {
		return nil, err
	}
	entry.Table = table
	entry.Indices = r.builder.Build(path, table)
	entry.Lazy = false
	return table, nil
}

// Entry returns the registered entry for a path.
func (r *Registry) Entry(path string) (*FileEntry, bool) {
	e, ok := r.entries[path]
	return e, ok
}

// Paths returns registered paths in registration order.
func (r *Registry) Paths() []string {
	return append([]string(nil), r.paths...)
}

// FilesWithColumn returns the paths listing a column, first-registered
// first.
func (r *Registry) FilesWithColumn(col string) []string {
	return append([]string(nil), r.columnIndex[col]...)
}

// FilesWithColumns returns the paths that carry every given column. Order
// follows the first column's index order, which is registration order, so
// ambiguity always breaks toward the earliest-registered file.
func (r *Registry) FilesWithColumns(cols ...string) []string {
	if len(cols) == 0 {
		return nil
	}
	candidates := r.columnIndex[cols[0]]
	for _, col := range cols[1:] {
		members := make(map[string]bool, len(r.columnIndex[col]))
		for _, f := range r.columnIndex[col] {
			members[f] = true
		}
		kept := make([]string, 0, len(candidates))
		for _, f := range candidates {
			if members[f] {
				kept = append(kept, f)
			}
		}
		candidates = kept
	}
	return append([]string(nil), candidates...)
}

// AllColumns returns every known column name in first-appearance order.
func (r *Registry) AllColumns() []string {
	return append([]string(nil), r.columnOrder...)
}

// HasColumn reports whether any registered file carries the column.
func (r *Registry) HasColumn(col string) bool {
	_, ok := r.columnIndex[col]
	return ok
}

// ResolveHint maps a caller-supplied source hint to a registered path:
// exact alias match first, then substring match against file base names in
// registration order.
func (r *Registry) ResolveHint(hint string) (string, bool) {
	if path, ok := r.aliases[hint]; ok {
		return path, true
	}
	for _, path := range r.paths {
		if strings.Contains(filepath.Base(path), hint) {
			return path, true
		}
	}
	return "", false
}

// AliasFor returns the friendly name for a path: the earliest-registered
// alias pointing at it, or the file stem when none does.
func (r *Registry) AliasFor(path string) string {
	for _, alias := range r.aliasOrder {
		if r.aliases[alias] == path {
			return alias
		}
	}
	return Stem(path)
}

// LoadedCount counts entries with a materialized table.
func (r *Registry) LoadedCount() int {
	n := 0
	for _, e := range r.entries {
		if e.Table != nil {
			n++
		}
	}
	return n
}

// LazyCount counts entries still waiting on their first load.
func (r *Registry) LazyCount() int {
	n := 0
	for _, e := range r.entries {
		if e.Lazy {
			n++
		}
	}
	return n
}

// TotalRows sums metadata row counts across all entries.
func (r *Registry) TotalRows() int {
	n := 0
	for _, e := range r.entries {
		n += e.RowCount
	}
	return n
}

// TotalColumns counts distinct column names.
func (r *Registry) TotalColumns() int { return len(r.columnIndex) }

// IndicesCreated sums built value indices across all entries.
func (r *Registry) IndicesCreated() int {
	n := 0
	for _, e := range r.entries {
		n += len(e.Indices)
	}
	return n
}

// Stem returns the file name without directory or extension, the default
// alias form.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
