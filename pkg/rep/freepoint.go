package rep

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/shopspring/decimal"
)

// freepointRequired are the header cells that identify the Freepoint
// matrix header row.
var freepointRequired = []string{"start month", "utility", "congestion zone", "load factor"}

// freepointVolumeCol is the column holding the annual-volume bucket
// label each block-rate row belongs to.
const freepointVolumeCol = "kWh/Year"

// Freepoint annual-volume buckets, labeled exactly as in the sheet.
const (
	freepointBucketLow  = "0-100,000"
	freepointBucketMid  = "100,000-250,000"
	freepointBucketHigh = "250,000-1,000,000"
)

var freepointTermColRe = regexp.MustCompile(`^(\d+) Month$`)

// Freepoint ingests the Freepoint block-rate matrix: rows are grouped
// into three discrete annual-volume buckets and priced in wide term
// columns named like "12 Month". Prices are in cents per kWh.
type Freepoint struct {
	// PreviewRows caps the header scan; zero means the default.
	PreviewRows int
}

// Load reads the given sheet (the first sheet when empty) into the
// canonical table. A missing header is an error.
func (f *Freepoint) Load(ctx context.Context, path, sheet string) (*types.Table, error) {
	grid, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	headerRow, err := detectHeaderRow(grid, freepointRequired, f.PreviewRows)
	if err != nil {
		return nil, fmt.Errorf("freepoint sheet of %s: %w", path, err)
	}

	headers := grid[headerRow]
	startCol, _ := findColumn(headers, "Start Month")
	utilityCol, _ := findColumn(headers, "Utility")
	zoneCol, _ := findColumn(headers, "Congestion Zone")
	lfCol, _ := findColumn(headers, "Load Factor")

	return tableFromGrid(ctx, grid, headerRow, identityColumns{
		startMonth: startCol,
		utility:    utilityCol,
		zone:       zoneCol,
		loadFactor: lfCol,
	}), nil
}

// freepointBucket selects the volume bucket by strict range test.
func freepointBucket(annualVolume float64) string {
	switch {
	case annualVolume < 100_000:
		return freepointBucketLow
	case annualVolume < 250_000:
		return freepointBucketMid
	default:
		return freepointBucketHigh
	}
}

// Offers emits one offer per term column with a positive price, for the
// rows in the request's volume bucket.
func (f *Freepoint) Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error) {
	bucket := freepointBucket(req.AnnualVolume)

	var results []types.PriceResult
	termColsSeen := false
	for _, row := range rows {
		if row.Field(freepointVolumeCol) != bucket {
			continue
		}
		for _, tc := range termColumns(row) {
			termColsSeen = true
			price, err := decimal.NewFromString(row.Field(tc.column))
			if err != nil || !price.IsPositive() {
				continue
			}
			results = append(results, types.PriceResult{
				Rep:              repName,
				Term:             tc.term,
				PriceCentsPerKWH: price.Round(4).InexactFloat64(),
			})
		}
	}
	if len(rows) > 0 && !termColsSeen {
		log.Ctx(ctx).WarnContext(ctx, "no term columns found in freepoint rows",
			slog.String("rep", repName))
	}
	return results, nil
}

type termColumn struct {
	column string
	term   int
}

// termColumns lists a row's "N Month" columns in ascending term order.
func termColumns(row types.Row) []termColumn {
	var cols []termColumn
	for col := range row.Fields {
		m := freepointTermColRe.FindStringSubmatch(col)
		if m == nil {
			continue
		}
		term, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cols = append(cols, termColumn{column: col, term: term})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].term < cols[j].term })
	return cols
}
