package loader

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	slerrors "github.com/lblanes25/smartlookup/internal/errors"
	"github.com/lblanes25/smartlookup/internal/types"
)

// CSVLoader reads .csv and .tsv files. The first record is the header;
// cells are type-inferred with types.ParseValue so numeric and date lookups
// work against text files.
type CSVLoader struct {
	log zerolog.Logger
}

// NewCSVLoader creates a CSV/TSV loader.
func NewCSVLoader(log zerolog.Logger) *CSVLoader {
	return &CSVLoader{log: log}
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func (l *CSVLoader) open(op, path string) (*os.File, *csv.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, slerrors.NewLoadError(op, path, err)
	}
	r := csv.NewReader(f)
	r.Comma = delimiterFor(path)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return f, r, nil
}

// Load parses the whole file into a typed table.
func (l *CSVLoader) Load(path string) (*types.Table, error) {
	f, r, err := l.open("load", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, slerrors.NewLoadError("load", path, errors.New("empty file, no header row"))
		}
		return nil, slerrors.NewLoadError("load", path, err)
	}
	columns := trimHeader(header)

	var rows [][]types.Value
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, slerrors.NewLoadError("load", path, err)
		}
		row := make([]types.Value, len(record))
		for i, cell := range record {
			row[i] = types.ParseValue(cell)
		}
		rows = append(rows, row)
	}

	l.log.Debug().Str("path", path).Int("rows", len(rows)).Int("columns", len(columns)).
		Msg("loaded table")
	return types.NewTable(columns, rows), nil
}

// PeekColumns reads only the header record.
func (l *CSVLoader) PeekColumns(path string) ([]string, error) {
	f, r, err := l.open("peek", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, slerrors.NewLoadError("peek", path, errors.New("empty file, no header row"))
		}
		return nil, slerrors.NewLoadError("peek", path, err)
	}
	return trimHeader(header), nil
}

// CountRows streams the file and counts data records without keeping them.
func (l *CSVLoader) CountRows(path string) (int, error) {
	f, r, err := l.open("count", path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Reuse one record buffer; the values are discarded.
	r.ReuseRecord = true

	count := -1 // first record is the header
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, slerrors.NewLoadError("count", path, err)
		}
		count++
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

func trimHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	return columns
}
