package pricing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/rep"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/gridquote/gridquote/pkg/zipmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

func writeZipCSV(t *testing.T, content string) *zipmap.Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ZipCodeMap.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return zipmap.NewLoader(path)
}

func engieTable() *types.Table {
	return &types.Table{
		Columns: []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor, "Term", "0 - 199,999", "200,000 - 399,999"},
		Rows: []types.Row{
			{StartMonth: "August 2025", Utility: "oncor", Zone: "NORTH", LoadFactor: "HI", Fields: map[string]string{
				"Term": "12", "0 - 199,999": "4.10", "200,000 - 399,999": "4.25",
			}},
			{StartMonth: "September 2025", Utility: "oncor", Zone: "NORTH", LoadFactor: "HI", Fields: map[string]string{
				"Term": "12", "0 - 199,999": "9.99", "200,000 - 399,999": "9.99",
			}},
			{StartMonth: "August 2025", Utility: "centerpoint", Zone: "HOUSTON", LoadFactor: "LO", Fields: map[string]string{
				"Term": "12", "0 - 199,999": "9.99", "200,000 - 399,999": "9.99",
			}},
		},
	}
}

func TestGetPricesEndToEnd(t *testing.T) {
	ctx := context.Background()
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	reps := rep.NewMap(rep.Source{Name: "Engie", Adapter: &rep.Engie{}})

	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Engie": engieTable()}})

	results, err := e.GetPrices(ctx, types.PriceRequest{
		StartMonth:   "August 2025",
		Utility:      "Oncor",
		ZipCode:      "75078",
		LoadFactor:   "HI",
		AnnualVolume: 300_000,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.PriceResult{Rep: "Engie", Term: 12, PriceCentsPerKWH: 4.25}, results[0])
}

func TestGetPricesUnknownZip(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	e := NewEngine(rep.NewMap(), zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{}})

	_, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "99999", LoadFactor: "HI",
	})
	assert.ErrorIs(t, err, ErrUnknownZip)
}

func TestGetPricesExplicitZoneSkipsZipLookup(t *testing.T) {
	// the zip map knows nothing, but the request names the zone directly
	zones := writeZipCSV(t, "Zip,Zone\n")
	reps := rep.NewMap(rep.Source{Name: "Engie", Adapter: &rep.Engie{}})
	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Engie": engieTable()}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", Zone: "north", LoadFactor: "HI", AnnualVolume: 100,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4.10, results[0].PriceCentsPerKWH)
}

func TestGetPricesAliasPerRep(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n77002,HOUSTON\n")
	reps := rep.NewMap(rep.Source{Name: "Engie", Adapter: &rep.Engie{}})
	e := NewEngine(reps, zones, nil)

	// Engie spells CenterPoint as CPT; the table holds the rep's spelling
	table := engieTable()
	table.Rows[2].Utility = "cpt"
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Engie": table}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "CenterPoint", ZipCode: "77002", LoadFactor: "lo", AnnualVolume: 100,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 9.99, results[0].PriceCentsPerKWH)
}

func TestGetPricesBeforeFirstRefresh(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	e := NewEngine(rep.NewMap(), zones, nil)

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

type staticAdapter struct {
	table  *types.Table
	offers []types.PriceResult
	err    error
}

func (a *staticAdapter) Load(ctx context.Context, path, sheet string) (*types.Table, error) {
	return a.table, a.err
}

func (a *staticAdapter) Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.offers, nil
}

func TestGetPricesMergesAndSortsAcrossReps(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	row := types.Row{StartMonth: "August 2025", Utility: "oncor", Zone: "NORTH", LoadFactor: "HI"}
	table := &types.Table{
		Columns: []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor},
		Rows:    []types.Row{row},
	}

	a := &staticAdapter{table: table, offers: []types.PriceResult{
		{Rep: "B", Term: 24, PriceCentsPerKWH: 5},
		{Rep: "B", Term: 12, PriceCentsPerKWH: 4},
	}}
	b := &staticAdapter{table: table, offers: []types.PriceResult{
		{Rep: "A", Term: 12, PriceCentsPerKWH: 3},
	}}
	reps := rep.NewMap(
		rep.Source{Name: "B", Adapter: a},
		rep.Source{Name: "A", Adapter: b},
	)
	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"A": table, "B": table}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "A", results[0].Rep)
	assert.Equal(t, 12, results[0].Term)
	assert.Equal(t, "B", results[1].Rep)
	assert.Equal(t, 12, results[1].Term)
	assert.Equal(t, 24, results[2].Term)
}

// swapAdapter replaces the engine's snapshot from inside Offers, the
// way a concurrent refresh would land mid-query.
type swapAdapter struct {
	engine *Engine
	next   *Snapshot
	offers []types.PriceResult
}

func (a *swapAdapter) Load(ctx context.Context, path, sheet string) (*types.Table, error) {
	return nil, nil
}

func (a *swapAdapter) Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error) {
	a.engine.SetSnapshot(a.next)
	return a.offers, nil
}

func TestGetPricesUnaffectedByMidQuerySwap(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	row := types.Row{StartMonth: "August 2025", Utility: "oncor", Zone: "NORTH", LoadFactor: "HI"}
	table := &types.Table{
		Columns: []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor},
		Rows:    []types.Row{row},
	}

	// the first rep's extraction swaps in a snapshot where the second
	// rep has nothing; the query must still price the second rep from
	// the snapshot it started on
	swapper := &swapAdapter{
		next:   &Snapshot{Tables: map[string]*types.Table{}},
		offers: []types.PriceResult{{Rep: "First", Term: 12, PriceCentsPerKWH: 4}},
	}
	second := &staticAdapter{offers: []types.PriceResult{{Rep: "Second", Term: 12, PriceCentsPerKWH: 5}}}
	reps := rep.NewMap(
		rep.Source{Name: "First", Adapter: swapper},
		rep.Source{Name: "Second", Adapter: second},
	)
	e := NewEngine(reps, zones, nil)
	swapper.engine = e
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"First": table, "Second": table}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].Rep)
	assert.Equal(t, "Second", results[1].Rep)

	// later queries see the new snapshot
	assert.Same(t, swapper.next, e.Snapshot())
	results, err = e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetPricesOneRepFailureDoesNotAbort(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	row := types.Row{StartMonth: "August 2025", Utility: "oncor", Zone: "NORTH", LoadFactor: "HI"}
	table := &types.Table{
		Columns: []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor},
		Rows:    []types.Row{row},
	}

	failing := &staticAdapter{err: errors.New("boom")}
	healthy := &staticAdapter{offers: []types.PriceResult{{Rep: "OK", Term: 12, PriceCentsPerKWH: 4}}}
	reps := rep.NewMap(
		rep.Source{Name: "Bad", Adapter: failing},
		rep.Source{Name: "OK", Adapter: healthy},
	)
	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Bad": table, "OK": table}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "OK", results[0].Rep)
}

func TestGetPricesTableMissingColumns(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	bad := &types.Table{Columns: []string{types.ColStartMonth}, Rows: []types.Row{{}}}
	reps := rep.NewMap(rep.Source{Name: "Bad", Adapter: &staticAdapter{}})
	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Bad": bad}})

	results, err := e.GetPrices(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatchCounts(t *testing.T) {
	zones := writeZipCSV(t, "Zip,Zone\n75078,NORTH\n")
	reps := rep.NewMap(rep.Source{Name: "Engie", Adapter: &rep.Engie{}})
	e := NewEngine(reps, zones, nil)
	e.SetSnapshot(&Snapshot{Tables: map[string]*types.Table{"Engie": engieTable()}})

	counts, err := e.MatchCounts(context.Background(), types.PriceRequest{
		StartMonth: "August 2025", Utility: "Oncor", ZipCode: "75078", LoadFactor: "HI",
	}, 5)
	require.NoError(t, err)
	require.Contains(t, counts, "Engie")
	assert.Equal(t, 1, counts["Engie"].MatchCount)
	require.Len(t, counts["Engie"].Sample, 1)
}
