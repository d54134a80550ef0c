package rep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gridquote/gridquote/pkg/normalize"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/xuri/excelize/v2"
)

// ErrHeaderNotFound indicates no preview row contained the column names
// an adapter requires.
var ErrHeaderNotFound = errors.New("header row not found")

// defaultPreviewRows is how many leading rows are scanned for the
// header when an adapter does not configure its own limit.
const defaultPreviewRows = 10

// readSheet reads one sheet of a workbook as a raw grid of cell
// strings. An empty sheet name selects the first sheet.
func readSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook (%s): %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets (%s)", path)
		}
		sheet = sheets[0]
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	return grid, nil
}

// detectHeaderRow returns the index of the first preview row whose set
// of non-empty, trimmed, lower-cased cells is a superset of required.
func detectHeaderRow(grid [][]string, required []string, previewRows int) (int, error) {
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	for idx, row := range grid {
		if idx >= previewRows {
			break
		}
		cells := make(map[string]bool, len(row))
		for _, c := range row {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" {
				cells[c] = true
			}
		}
		found := true
		for _, want := range required {
			if !cells[want] {
				found = false
				break
			}
		}
		if found {
			return idx, nil
		}
	}
	return 0, ErrHeaderNotFound
}

// findColumn locates a header by case-insensitive trimmed name and
// returns its original spelling.
func findColumn(headers []string, name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, h := range headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return strings.TrimSpace(h), true
		}
	}
	return "", false
}

// identityColumns names the source columns that hold the four canonical
// identity values in a particular layout.
type identityColumns struct {
	startMonth string
	utility    string
	zone       string
	loadFactor string
}

// tableFromGrid builds a canonical table from a raw grid: identity
// columns are normalized, every other header becomes a rep-specific
// field carried through as-is.
func tableFromGrid(ctx context.Context, grid [][]string, headerRow int, id identityColumns) *types.Table {
	headers := make([]string, len(grid[headerRow]))
	for i, h := range grid[headerRow] {
		headers[i] = strings.TrimSpace(h)
	}

	isIdentity := func(h string) bool {
		return h == id.startMonth || h == id.utility || h == id.zone || h == id.loadFactor
	}

	columns := []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor}
	for _, h := range headers {
		if h != "" && !isIdentity(h) {
			columns = append(columns, h)
		}
	}

	cell := func(row []string, name string) string {
		for i, h := range headers {
			if h == name && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	t := &types.Table{Columns: columns}
	for _, raw := range grid[headerRow+1:] {
		row := types.Row{
			StartMonth: normalize.Month(ctx, cell(raw, id.startMonth)),
			Utility:    normalize.Utility(cell(raw, id.utility)),
			Zone:       normalize.Zone(cell(raw, id.zone)),
			LoadFactor: cell(raw, id.loadFactor),
			Fields:     make(map[string]string),
		}
		for i, h := range headers {
			if h == "" || isIdentity(h) || i >= len(raw) {
				continue
			}
			row.Fields[h] = strings.TrimSpace(raw[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
