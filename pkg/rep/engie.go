package rep

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/shopspring/decimal"
)

// engieRequired are the header cells that identify the Engie matrix
// header row.
var engieRequired = []string{"start month", "utility", "congestion zone", "load factor"}

// engieBrackets are the volume brackets of the Engie matrix, ascending
// by threshold. The bracket whose threshold is the highest value still
// at or below the requested annual volume wins.
var engieBrackets = []struct {
	threshold float64
	column    string
}{
	{0, "0 - 199,999"},
	{200_000, "200,000 - 399,999"},
	{400_000, "400,000 - 599,999"},
	{600_000, "600,000 - 799,999"},
	{800_000, "800,000 - 999,999"},
}

// Engie ingests the Engie-style matrix: one row per (start month,
// utility, zone, load factor, term) with one price column per volume
// bracket. Prices are already in cents per kWh. The same adapter serves
// the "All In Matrix" and "X-Con Matrix" sheets.
type Engie struct {
	// PreviewRows caps the header scan; zero means the default.
	PreviewRows int
}

// Load reads the given sheet into the canonical table. A workbook whose
// preview rows never contain the required columns is an error; Engie
// sheets carry a reliable header.
func (e *Engie) Load(ctx context.Context, path, sheet string) (*types.Table, error) {
	grid, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	headerRow, err := detectHeaderRow(grid, engieRequired, e.PreviewRows)
	if err != nil {
		return nil, fmt.Errorf("engie sheet %q of %s: %w", sheet, path, err)
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

// Offers reads the Term column and the one bracket column selected by
// the request's annual volume. Zero or missing prices yield no offer.
func (e *Engie) Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error) {
	bracket := ""
	for _, b := range engieBrackets {
		if req.AnnualVolume >= b.threshold {
			bracket = b.column
		}
	}
	if bracket == "" {
		return nil, nil
	}

	var results []types.PriceResult
	for _, row := range rows {
		termRaw := row.Field("Term")
		priceRaw := row.Field(bracket)
		if termRaw == "" || priceRaw == "" {
			continue
		}
		term, err := strconv.Atoi(strings.TrimSpace(termRaw))
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping row with unparsable term",
				slog.String("rep", repName), slog.String("term", termRaw))
			continue
		}
		price, err := decimal.NewFromString(priceRaw)
		if err != nil || price.IsZero() {
			continue
		}
		results = append(results, types.PriceResult{
			Rep:              repName,
			Term:             term,
			PriceCentsPerKWH: price.Round(4).InexactFloat64(),
		})
	}
	return results, nil
}
