package rep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/shopspring/decimal"
)

// atlanticRequired are the header cells that identify the Atlantic
// matrix header row. Note the different spellings from Engie.
var atlanticRequired = []string{"start date", "utility", "zone", "load factor"}

// atlanticFallbackHeaderRow is used when the header cannot be detected.
// Atlantic workbooks are less reliable than Engie's, so the adapter
// falls back to the historically observed row instead of failing.
const atlanticFallbackHeaderRow = 10

var (
	startDateHeaderRe = regexp.MustCompile(`(?i)start\s*date`)
	isoDateHeaderRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	atlanticTermColRe = regexp.MustCompile(`^(\d+)m$`)
)

// Atlantic ingests the Atlantic-style matrix: identity columns plus one
// price column per term ("6m", "12m", ...), prices in dollars per kWh.
// The wide term columns are reshaped to one row per (identity, term,
// price) at load time, so filtering is a plain equality match.
type Atlantic struct {
	// PreviewRows caps the header scan; zero means the default.
	PreviewRows int
}

// Load reads the given sheet, locates the start-month column by name
// pattern, and reshapes the term columns into long form.
func (a *Atlantic) Load(ctx context.Context, path, sheet string) (*types.Table, error) {
	grid, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	headerRow, err := detectHeaderRow(grid, atlanticRequired, a.PreviewRows)
	if err != nil {
		if len(grid) <= atlanticFallbackHeaderRow {
			return nil, fmt.Errorf("atlantic sheet %q of %s: %w", sheet, path, ErrHeaderNotFound)
		}
		log.Ctx(ctx).WarnContext(ctx, "atlantic header not detected, falling back to fixed row",
			slog.String("path", path), slog.Int("row", atlanticFallbackHeaderRow))
		headerRow = atlanticFallbackHeaderRow
	}

	headers := grid[headerRow]
	startCol, ok := findStartDateColumn(headers)
	if !ok {
		return nil, errors.New("could not find a start month column in atlantic sheet")
	}
	utilityCol, _ := findColumn(headers, "Utility")
	zoneCol, _ := findColumn(headers, "Zone")
	lfCol, _ := findColumn(headers, "Load Factor")

	wide := tableFromGrid(ctx, grid, headerRow, identityColumns{
		startMonth: startCol,
		utility:    utilityCol,
		zone:       zoneCol,
		loadFactor: lfCol,
	})
	return meltTermColumns(wide), nil
}

// findStartDateColumn locates the Atlantic start-month column: either a
// "Start Date"-style header or a header that is itself a date (some
// exports put the month value in the header cell).
func findStartDateColumn(headers []string) (string, bool) {
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if startDateHeaderRe.MatchString(h) || isoDateHeaderRe.MatchString(h) {
			return h, true
		}
	}
	return "", false
}

// meltTermColumns reshapes wide per-term price columns into one row per
// (identity, Term, Price). Rows with non-numeric prices are dropped.
func meltTermColumns(wide *types.Table) *types.Table {
	var termCols []string
	for _, c := range wide.Columns {
		if atlanticTermColRe.MatchString(c) {
			termCols = append(termCols, c)
		}
	}

	long := &types.Table{
		Columns: []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor, "Term", "Price"},
	}
	for _, row := range wide.Rows {
		for _, col := range termCols {
			priceRaw := row.Field(col)
			if priceRaw == "" {
				continue
			}
			if _, err := decimal.NewFromString(priceRaw); err != nil {
				continue
			}
			months := atlanticTermColRe.FindStringSubmatch(col)[1]
			long.Rows = append(long.Rows, types.Row{
				StartMonth: row.StartMonth,
				Utility:    row.Utility,
				Zone:       row.Zone,
				LoadFactor: row.LoadFactor,
				Fields:     map[string]string{"Term": months, "Price": priceRaw},
			})
		}
	}
	return long
}

// Offers converts the reshaped rows to results. Atlantic prices are in
// dollars per kWh and convert to cents here.
func (a *Atlantic) Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error) {
	var results []types.PriceResult
	for _, row := range rows {
		term, err := strconv.Atoi(row.Field("Term"))
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(row.Field("Price"))
		if err != nil || price.IsZero() {
			continue
		}
		results = append(results, types.PriceResult{
			Rep:              repName,
			Term:             term,
			PriceCentsPerKWH: price.Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64(),
		})
	}
	return results, nil
}
