// Package index builds per-column exact-match indices for columns that look
// like keys. A column qualifies when its distinct/total ratio exceeds the
// uniqueness threshold; everything else stays on the linear-scan path.
package index

import (
	"errors"

	"github.com/rs/zerolog"

	slerrors "github.com/lblanes25/smartlookup/internal/errors"
	"github.com/lblanes25/smartlookup/internal/types"
)

// ValueIndex maps the canonical key form of a cell value to the first row
// holding it. First-row wins on duplicates, matching linear-scan semantics.
type ValueIndex struct {
	Column string
	rows   map[string]int
}

// Lookup returns the row number for a value, if indexed.
func (ix *ValueIndex) Lookup(v types.Value) (int, bool) {
	key, ok := v.Key()
	if !ok {
		return 0, false
	}
	row, ok := ix.rows[key]
	return row, ok
}

// Len returns the number of distinct indexed values.
func (ix *ValueIndex) Len() int { return len(ix.rows) }

// Builder decides which columns of a table deserve an exact-match index
// and builds them. A failure on one column is logged and skipped; it never
// aborts the remaining columns or the surrounding load.
type Builder struct {
	threshold float64
	log       zerolog.Logger
}

// NewBuilder creates a builder with the given uniqueness threshold.
func NewBuilder(threshold float64, log zerolog.Logger) *Builder {
	return &Builder{threshold: threshold, log: log}
}

// Build indexes every qualifying column of the table. The path is only
// used for log context.
func (b *Builder) Build(path string, t *types.Table) map[string]*ValueIndex {
	indices := make(map[string]*ValueIndex)
	if t == nil || t.NumRows() == 0 {
		return indices
	}

	for col, name := range t.Columns {
		ix, err := b.buildColumn(name, col, t)
		if err != nil {
			b.log.Warn().Str("path", path).Str("column", name).Err(err).
				Msg("column not indexed")
			continue
		}
		if ix != nil {
			indices[name] = ix
			b.log.Debug().Str("path", path).Str("column", name).
				Int("distinct", ix.Len()).Msg("created value index")
		}
	}
	return indices
}

// buildColumn returns nil, nil when the column does not qualify.
func (b *Builder) buildColumn(name string, col int, t *types.Table) (*ValueIndex, error) {
	distinct := make(map[string]struct{}, t.NumRows())
	keyable := 0
	for row := range t.Rows {
		key, ok := t.Cell(row, col).Key()
		if !ok {
			continue
		}
		keyable++
		distinct[key] = struct{}{}
	}
	if keyable == 0 {
		return nil, slerrors.NewIndexBuildError("", name, errors.New("no indexable values"))
	}

	ratio := float64(len(distinct)) / float64(t.NumRows())
	if ratio <= b.threshold {
		return nil, nil
	}

	rows := make(map[string]int, len(distinct))
	for row := range t.Rows {
		key, ok := t.Cell(row, col).Key()
		if !ok {
			continue
		}
		if _, exists := rows[key]; !exists {
			rows[key] = row
		}
	}
	return &ValueIndex{Column: name, rows: rows}, nil
}
