// Package normalize converts the free-text values found in rep price
// sheets (start months, utility names, zone codes, ZIP codes) into
// canonical forms so that differently formatted sources compare equal.
package normalize

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/types"
)

var (
	startWordRe = regexp.MustCompile(`(?i)\bstart\b`)
	// everything outside word chars, whitespace, slash and hyphen
	monthJunkRe = regexp.MustCompile(`[^\w\s/-]`)
)

// monthLayouts are tried in order; the first layout that parses wins.
var monthLayouts = []string{
	"January 2006",
	"Jan 2006",
	"1/2/2006",
	"2006-01-02",
}

// monthFallbackLayouts are the flexible fallback for values none of the
// primary layouts recognize. Spreadsheet cells render dates in a variety
// of region-dependent shapes.
var monthFallbackLayouts = []string{
	"1/2/06",
	"01-02-06",
	"2006/01/02",
	"2006-01",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan-06",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Month normalizes a raw start-month value to the canonical
// "Month YYYY" form. Values that cannot be parsed by any recognized
// format normalize to types.UnknownStartMonth; the failure is logged,
// never returned.
func Month(ctx context.Context, val string) string {
	cleaned := strings.TrimSpace(val)
	// already-normalized sentinels pass through without re-logging
	if cleaned == "" || cleaned == types.UnknownStartMonth {
		return types.UnknownStartMonth
	}
	cleaned = strings.TrimSpace(startWordRe.ReplaceAllString(cleaned, ""))
	cleaned = strings.TrimSpace(monthJunkRe.ReplaceAllString(cleaned, ""))

	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("January 2006")
		}
	}
	for _, layout := range monthFallbackLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("January 2006")
		}
	}

	log.Ctx(ctx).WarnContext(ctx, "failed to normalize start month", slog.String("value", val))
	return types.UnknownStartMonth
}

// Utility normalizes a utility name: lower-cased, trimmed, internal
// spaces removed.
func Utility(val string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(val)), " ", "")
}

// Zone normalizes a zone code: trimmed and upper-cased.
func Zone(val string) string {
	return strings.ToUpper(strings.TrimSpace(val))
}

// Zip normalizes a ZIP code for lookup: non-digits stripped, first five
// digits kept. Inputs with fewer than five digits are rejected.
func Zip(val string) (string, bool) {
	digits := digitsOf(val)
	if len(digits) < 5 {
		return "", false
	}
	return digits[:5], true
}

// digitsOf returns only the decimal digits of s.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LoadFactorError is returned by ClassifyLoadFactor when the inputs
// produce a load factor outside the physically possible range.
const LoadFactorError = "LF ERROR - CHECK INPUTS"

// ClassifyLoadFactor derives the HI/MED/LO load-factor class from a
// bill's peak demand (kW), usage (kWh) and billing period length.
func ClassifyLoadFactor(kw, kwh float64, daysOnBill int) string {
	if kw == 0 || daysOnBill == 0 {
		return LoadFactorError
	}
	lf := kwh / (kw * float64(daysOnBill) * 24)
	switch {
	case lf < 0 || lf > 1:
		return LoadFactorError
	case lf >= 0.6:
		return types.LoadFactorHigh
	case lf >= 0.4:
		return types.LoadFactorMedium
	default:
		return types.LoadFactorLow
	}
}
