package types

import "time"

// Canonical column names shared by every rep's table after ingestion.
const (
	ColStartMonth = "Start Month"
	ColUtility    = "Utility"
	ColZone       = "Congestion Zone"
	ColLoadFactor = "Load Factor"
)

// UnknownStartMonth is the sentinel used when a source start-month value
// could not be parsed by any recognized format.
const UnknownStartMonth = "Unknown Start Month"

// Load factor classes.
const (
	LoadFactorHigh   = "HI"
	LoadFactorMedium = "MED"
	LoadFactorLow    = "LO"
)

// PriceRequest is a price query as received from the API layer.
// Zone takes precedence when set; otherwise ZipCode is resolved to a zone.
type PriceRequest struct {
	StartMonth   string  `json:"start_month"`
	Utility      string  `json:"utility"`
	Zone         string  `json:"zone,omitempty"`
	ZipCode      string  `json:"zipcode,omitempty"`
	LoadFactor   string  `json:"load_factor"`
	AnnualVolume float64 `json:"annual_volume"`
}

// PriceResult is a single priced offer from one rep.
type PriceResult struct {
	Rep string `json:"rep"`
	// Term is the contract length in months.
	Term             int     `json:"term"`
	PriceCentsPerKWH float64 `json:"price_cents_per_kwh"`
}

// Row is one canonical pricing row. The four identity columns are
// normalized at load time; everything else (bracket prices, Term,
// kWh/Year, reshaped Term/Price pairs) stays in Fields keyed by the
// source column name.
type Row struct {
	StartMonth string            `json:"start_month"`
	Utility    string            `json:"utility"`
	Zone       string            `json:"zone"`
	LoadFactor string            `json:"load_factor"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Field returns the named rep-specific field, or "" when absent.
func (r Row) Field(name string) string {
	return r.Fields[name]
}

// Table is a rep's price list reshaped into the canonical column schema.
// Tables are built whole by an adapter and never mutated afterwards.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumns reports whether every named column is present.
func (t *Table) HasColumns(names ...string) bool {
	if t == nil {
		return false
	}
	for _, want := range names {
		found := false
		for _, c := range t.Columns {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RefreshStatus records the outcome of the most recent pricing refresh.
type RefreshStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}
