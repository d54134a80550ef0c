// Package rep contains one schema adapter per supplier price-sheet
// format. An adapter knows how to find the header row in that rep's
// workbook, reshape the sheet into the canonical table, and extract
// priced offers for a request's volume and term conventions.
package rep

import (
	"context"

	"github.com/gridquote/gridquote/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// Adapter is implemented once per ingestion convention.
type Adapter interface {
	// Load reads one sheet of a rep's workbook into a canonical table.
	Load(ctx context.Context, path, sheet string) (*types.Table, error)

	// Offers extracts priced offers from rows already filtered down to
	// the request's start month, utility, zone and load factor.
	Offers(ctx context.Context, repName string, rows []types.Row, req types.PriceRequest) ([]types.PriceResult, error)
}

// Source binds a rep name to the workbook it is loaded from: a file
// glob pattern, the sheet within the workbook, and the adapter that
// understands the layout. One adapter may serve several sources (Engie
// publishes two matrices in the same workbook).
type Source struct {
	Name    string
	Sheet   string
	Pattern string
	Adapter Adapter
}

// Map is the registry of configured pricing sources.
type Map struct {
	sources []Source
}

// Configured sets up the default sources and registers their flags.
func Configured() *Map {
	m := &Map{}
	engiePattern := lflag.String("engie-pattern", "TX_MATRIX_*.xlsx", "File glob for the Engie matrix workbook")
	atlanticPattern := lflag.String("atlantic-pattern", "* - AE TEXAS.xlsx", "File glob for the Atlantic matrix workbook")
	freepointPattern := lflag.String("freepoint-pattern", "*_Freepoint_Matrix_Offer_ERCOT_Adj.xlsx", "File glob for the Freepoint matrix workbook")
	freepointEnabled := lflag.Bool("freepoint-enabled", true, "Load the Freepoint matrix")

	lflag.Do(func() {
		engie := &Engie{}
		m.sources = []Source{
			{Name: "Engie", Sheet: "All In Matrix", Pattern: *engiePattern, Adapter: engie},
			{Name: "X-Con", Sheet: "X-Con Matrix", Pattern: *engiePattern, Adapter: engie},
			{Name: "Atlantic", Sheet: "AE Texas Matrix", Pattern: *atlanticPattern, Adapter: &Atlantic{}},
		}
		if *freepointEnabled {
			m.sources = append(m.sources, Source{Name: "Freepoint", Pattern: *freepointPattern, Adapter: &Freepoint{}})
		}
	})
	return m
}

// NewMap creates a registry with explicit sources, for tests and
// callers that bypass flags.
func NewMap(sources ...Source) *Map {
	return &Map{sources: sources}
}

// Sources returns the configured sources in load order.
func (m *Map) Sources() []Source {
	return m.sources
}

// Source looks a source up by rep name.
func (m *Map) Source(name string) (Source, bool) {
	for _, s := range m.sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
