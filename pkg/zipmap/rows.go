package zipmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// headerAliases lists the accepted spellings per logical column. Source
// files vary; headers are compared case/space/underscore-insensitively.
var headerAliases = map[string][]string{
	"zip": {
		"zip", "zipcode", "zip_code", "postal", "postalcode", "zip5",
		"5-digit zip", "zip code", "zip (5)", "zip5digit",
	},
	"zone": {
		"zone", "congestionzone", "congestion zone", "loadzone",
		"ercotzone", "ercot zone", "region", "market", "load zone", "zone name",
	},
	"fromzip": {"fromzip", "from_zip", "zipfrom", "startzip", "from zip", "start zip"},
	"tozip":   {"tozip", "to_zip", "zipto", "endzip", "to zip", "end zip"},
	"prefix":  {"prefix", "zipprefix", "zip_prefix", "zip prefix"},
}

// namedRow is one source row keyed by its original header names.
type namedRow struct {
	headers []string
	values  map[string]string
}

func (r namedRow) get(col string) string {
	if col == "" {
		return ""
	}
	return strings.TrimSpace(r.values[col])
}

// standardizeHeaders maps the folded form of each header (lower-cased,
// spaces and underscores removed) back to its original spelling.
func standardizeHeaders(headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[foldHeader(h)] = h
	}
	return out
}

func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	return strings.ReplaceAll(h, "_", "")
}

// matchHeader finds the original header name for a logical field, or ""
// when no alias is present.
func matchHeader(headers map[string]string, logical string) string {
	probes := headerAliases[logical]
	if len(probes) == 0 {
		probes = []string{logical}
	}
	for _, probe := range probes {
		if orig, ok := headers[foldHeader(probe)]; ok {
			return orig
		}
	}
	return ""
}

// readRows reads the whole source file as named-field rows. The format
// is chosen by file extension: .xlsx/.xls via excelize, anything else as
// delimited text. A header row is required.
func readRows(path string) ([]namedRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readRowsXLSX(path)
	default:
		return readRowsCSV(path)
	}
}

func readRowsCSV(path string) ([]namedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv (%s): %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv (%s): %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return gridToRows(records), nil
}

func readRowsXLSX(path string) ([]namedRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook (%s): %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return gridToRows(grid), nil
}

// gridToRows converts a raw grid into named-field rows using the first
// row as the header.
func gridToRows(grid [][]string) []namedRow {
	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(h)
	}
	rows := make([]namedRow, 0, len(grid)-1)
	for _, rec := range grid[1:] {
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				values[h] = rec[i]
			}
		}
		rows = append(rows, namedRow{headers: headers, values: values})
	}
	return rows
}

// Peek describes the head of the active source file for debugging.
type Peek struct {
	Path    string              `json:"path"`
	Columns []string            `json:"columns"`
	Sample  []map[string]string `json:"sample"`
}

// Peek reads the headers and first rows of whatever file the loader
// would load, without touching the cached map.
func (l *Loader) Peek(maxRows int) (Peek, error) {
	path := l.resolvePath()
	if path == "" {
		return Peek{}, errors.New("zip map file not found")
	}
	rows, err := readRows(path)
	if err != nil {
		return Peek{}, err
	}
	p := Peek{Path: path, Sample: []map[string]string{}}
	if len(rows) > 0 {
		p.Columns = rows[0].headers
	}
	for i, row := range rows {
		if i >= maxRows {
			break
		}
		p.Sample = append(p.Sample, row.values)
	}
	return p, nil
}
