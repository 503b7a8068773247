package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lblanes25/smartlookup/internal/config"
)

// probeWorkers caps concurrent header reads during candidate probing.
const probeWorkers = 4

// Discovery finds data files that are not registered yet but might hold a
// column a formula references. It walks the configured search directories
// with glob patterns, prefers files whose name relates to the column, and
// probes headers in parallel.
type Discovery struct {
	cfg    config.Discovery
	loader Loader
	log    zerolog.Logger
}

// NewDiscovery creates a Discovery over the given search configuration.
func NewDiscovery(cfg config.Discovery, l Loader, log zerolog.Logger) *Discovery {
	return &Discovery{cfg: cfg, loader: l, log: log}
}

// Column-term to file-stem associations. A column like "VendorStatus"
// makes vendor_master.csv a better probe candidate than products.csv.
var stemTerms = map[string][]string{
	"employee":   {"hr", "employee", "staff", "personnel"},
	"manager":    {"hr", "employee", "staff", "personnel"},
	"reviewer":   {"hr", "employee", "staff", "personnel"},
	"department": {"hr", "employee", "staff", "personnel"},
	"level":      {"hr", "employee", "staff", "personnel"},
	"vendor":     {"vendor", "supplier", "procurement"},
	"supplier":   {"vendor", "supplier", "procurement"},
	"product":    {"product", "inventory", "catalog"},
	"item":       {"product", "inventory", "catalog"},
	"sku":        {"product", "inventory", "catalog"},
}

func termsFor(column string) []string {
	lower := strings.ToLower(column)
	var terms []string
	for needle, stems := range stemTerms {
		if strings.Contains(lower, needle) {
			terms = append(terms, stems...)
		}
	}
	sort.Strings(terms)
	return terms
}

// CandidateFiles returns data files worth probing for the given column,
// best candidates first, capped at MaxProbeFiles. Files whose base name
// shares a term with the column name sort ahead of the rest.
func (d *Discovery) CandidateFiles(column string) []string {
	seen := make(map[string]bool)
	var preferred, rest []string
	terms := termsFor(column)

	for _, dir := range d.cfg.SearchDirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		fsys := os.DirFS(dir)
		for _, pattern := range d.cfg.Patterns {
			matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
			if err != nil {
				d.log.Warn().Str("pattern", pattern).Err(err).Msg("bad discovery pattern")
				continue
			}
			for _, m := range matches {
				full := filepath.Join(dir, filepath.FromSlash(m))
				if seen[full] {
					continue
				}
				seen[full] = true
				if matchesTerm(filepath.Base(full), terms) {
					preferred = append(preferred, full)
				} else {
					rest = append(rest, full)
				}
			}
		}
	}

	candidates := append(preferred, rest...)
	if d.cfg.MaxProbeFiles > 0 && len(candidates) > d.cfg.MaxProbeFiles {
		candidates = candidates[:d.cfg.MaxProbeFiles]
	}
	return candidates
}

func matchesTerm(base string, terms []string) bool {
	lower := strings.ToLower(base)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// ProbeColumns peeks the header of each candidate concurrently. Files that
// fail to probe are skipped; the result maps path to its column names.
func (d *Discovery) ProbeColumns(paths []string) map[string][]string {
	var mu sync.Mutex
	result := make(map[string][]string, len(paths))

	var g errgroup.Group
	g.SetLimit(probeWorkers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			cols, err := d.loader.PeekColumns(path)
			if err != nil {
				d.log.Debug().Str("path", path).Err(err).Msg("probe skipped")
				return nil
			}
			mu.Lock()
			result[path] = cols
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // workers never return errors

	return result
}
