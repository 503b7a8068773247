// Package loader is the file I/O seam of the lookup engine. The engine
// never parses bytes itself; it talks to a Loader, and hosts may substitute
// their own connector for formats this package does not cover.
package loader

import "github.com/lblanes25/smartlookup/internal/types"

// Loader parses tabular files. Load materializes the whole table;
// PeekColumns and CountRows are cheap metadata probes that must not require
// a full parse, so lazily registered files stay cheap until first use.
type Loader interface {
	Load(path string) (*types.Table, error)
	PeekColumns(path string) ([]string, error)
	CountRows(path string) (int, error)
}
