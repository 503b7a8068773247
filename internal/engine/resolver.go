package engine

import (
	"fmt"

	"github.com/lblanes25/smartlookup/internal/cache"
	slerrors "github.com/lblanes25/smartlookup/internal/errors"
	"github.com/lblanes25/smartlookup/internal/tracker"
	"github.com/lblanes25/smartlookup/internal/types"
)

// resolve runs the three lookup strategies in priority order, returning on
// the first non-null result. Caller holds the engine mutex.
func (e *Engine) resolve(value types.Value, searchCol, returnCol, sourceHint string) types.Value {
	// Strategy 1: hinted source. A hint that resolves restricts the
	// attempt to that one file; a hint that misses falls through.
	if sourceHint != "" {
		if path, ok := e.registry.ResolveHint(sourceHint); ok && searchCol != "" && returnCol != "" {
			if result := e.lookupInFile(path, value, searchCol, returnCol); !result.IsNull() {
				return result
			}
		}
	}

	// Strategy 2: files carrying both columns, earliest-registered first.
	if searchCol != "" && returnCol != "" {
		for _, path := range e.registry.FilesWithColumns(searchCol, returnCol) {
			if result := e.lookupInFile(path, value, searchCol, returnCol); !result.IsNull() {
				return result
			}
		}
		return types.Null()
	}

	// Strategy 3: only the return column given. Search the value across
	// every file that could answer.
	if returnCol != "" {
		return e.smartValueLookup(value, returnCol)
	}

	return types.Null()
}

// lookupInFile answers one (file, search, return, value) question through
// the cache. A cached null is a confirmed absence and is returned without
// touching the file. Load failures and unexpected probe panics degrade to
// null; only genuine "no matching row" results are cached.
func (e *Engine) lookupInFile(path string, value types.Value, searchCol, returnCol string) (result types.Value) {
	key := cache.PairKey(path, searchCol, returnCol, value)
	if cached, ok := e.cache.Get(key); ok {
		e.track(value, searchCol, returnCol, path, cached, !cached.IsNull(), true, "")
		return cached
	}

	defer func() {
		if p := recover(); p != nil {
			err := slerrors.NewLookupError(path, searchCol, returnCol,
				fmt.Errorf("%v", p))
			e.log.Warn().Err(err).Msg("lookup failed")
			e.track(value, searchCol, returnCol, path, types.Null(), false, false, err.Error())
			result = types.Null()
		}
	}()

	table, err := e.registry.EnsureLoaded(path)
	if err != nil {
		e.log.Warn().Str("path", path).Err(err).Msg("load failed during lookup")
		e.track(value, searchCol, returnCol, path, types.Null(), false, false, err.Error())
		return types.Null()
	}

	searchPos := table.ColumnIndexOf(searchCol)
	retPos := table.ColumnIndexOf(returnCol)
	if searchPos < 0 || retPos < 0 {
		// Possible via a stale hint; the column index never offers such
		// a file. Not cached: a reload may fix the header.
		e.track(value, searchCol, returnCol, path, types.Null(), false, false,
			"column not present in file")
		return types.Null()
	}

	result = types.Null()
	found := false
	entry, _ := e.registry.Entry(path)
	if ix, ok := entry.Indices[searchCol]; ok {
		if row, hit := ix.Lookup(value); hit {
			result = table.Cell(row, retPos)
			found = true
		}
	} else {
		for row := range table.Rows {
			if table.Cell(row, searchPos).Equal(value) {
				result = table.Cell(row, retPos)
				found = true
				break
			}
		}
	}

	e.cache.Put(key, result)
	if !found {
		e.log.Debug().Str("path", path).Str("search", searchCol).
			Str("value", value.String()).Msg("lookup not found")
	}
	e.track(value, searchCol, returnCol, path, result, found, false, "")
	return result
}

// smartValueLookup handles the single-column mode: find the value in any
// column of any file that carries the return column. Indexed columns are
// probed first; only non-indexed columns are scanned. The result is cached
// under the smart namespace, including confirmed absences.
func (e *Engine) smartValueLookup(value types.Value, returnCol string) types.Value {
	key := cache.SmartKey(returnCol, value)
	if cached, ok := e.cache.Get(key); ok {
		e.track(value, "", returnCol, "", cached, !cached.IsNull(), true, "")
		return cached
	}

	for _, path := range e.registry.FilesWithColumn(returnCol) {
		table, err := e.registry.EnsureLoaded(path)
		if err != nil {
			e.log.Warn().Str("path", path).Err(err).Msg("load failed during smart lookup")
			continue
		}
		retPos := table.ColumnIndexOf(returnCol)
		if retPos < 0 {
			continue
		}
		entry, _ := e.registry.Entry(path)

		// Indexed columns first, in the table's column order so repeated
		// runs probe identically.
		for _, col := range table.Columns {
			ix, ok := entry.Indices[col]
			if !ok {
				continue
			}
			if row, hit := ix.Lookup(value); hit {
				result := table.Cell(row, retPos)
				e.cache.Put(key, result)
				e.track(value, col, returnCol, path, result, true, false, "")
				return result
			}
		}

		// Fallback: scan the non-indexed columns for an exact match.
		for colPos, col := range table.Columns {
			if col == returnCol {
				continue
			}
			if _, indexed := entry.Indices[col]; indexed {
				continue
			}
			for row := range table.Rows {
				if table.Cell(row, colPos).Equal(value) {
					result := table.Cell(row, retPos)
					e.cache.Put(key, result)
					e.track(value, col, returnCol, path, result, true, false, "")
					return result
				}
			}
		}
	}

	e.cache.Put(key, types.Null())
	e.track(value, "", returnCol, "", types.Null(), false, false, "")
	return types.Null()
}

// track records one resolved lookup when tracking is on. The enabled check
// lives here so the disabled path allocates nothing.
func (e *Engine) track(value types.Value, searchCol, returnCol, path string, result types.Value, success, fromCache bool, errText string) {
	if !e.tracker.Enabled() {
		return
	}
	alias := ""
	if path != "" {
		alias = e.registry.AliasFor(path)
	}
	e.tracker.Record(tracker.Operation{
		LookupValue:  value,
		SearchColumn: searchCol,
		ReturnColumn: returnCol,
		SourceFile:   path,
		SourceAlias:  alias,
		Result:       result,
		Success:      success,
		FromCache:    fromCache,
		Error:        errText,
	})
}
