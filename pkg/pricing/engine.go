// Package pricing holds the query engine and the snapshot lifecycle:
// every rep's canonical table is rebuilt by the refresher as one
// immutable snapshot and swapped in atomically, so queries never see a
// half-updated view.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/normalize"
	"github.com/gridquote/gridquote/pkg/rep"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/gridquote/gridquote/pkg/zipmap"
	"github.com/levenlabs/go-lflag"
)

// ErrUnknownZip is returned when a request's ZIP code does not resolve
// to a zone at any tier. A price query cannot proceed without a zone,
// so this is the one place absence becomes a client-visible error.
var ErrUnknownZip = errors.New("unknown zip code")

// Snapshot is the set of all reps' canonical tables as of the last
// successful refresh, keyed by rep name. Snapshots are immutable.
type Snapshot struct {
	Tables map[string]*types.Table
}

// Engine answers price queries against the current snapshot.
type Engine struct {
	reps    *rep.Map
	zones   *zipmap.Loader
	aliases *normalize.AliasTable

	snap atomic.Pointer[Snapshot]
}

// Configured sets up the engine and registers its flags.
func Configured(reps *rep.Map, zones *zipmap.Loader) *Engine {
	e := &Engine{reps: reps, zones: zones, aliases: normalize.DefaultAliases()}
	aliasPath := lflag.String("utility-aliases-path", "", "Optional TOML file replacing the builtin utility alias table")
	lflag.Do(func() {
		if *aliasPath != "" {
			a, err := normalize.LoadAliases(*aliasPath)
			if err != nil {
				panic(err)
			}
			e.aliases = a
		}
	})
	return e
}

// NewEngine creates an engine with explicit dependencies, for tests and
// callers that bypass flags.
func NewEngine(reps *rep.Map, zones *zipmap.Loader, aliases *normalize.AliasTable) *Engine {
	if aliases == nil {
		aliases = normalize.DefaultAliases()
	}
	return &Engine{reps: reps, zones: zones, aliases: aliases}
}

// Snapshot returns the snapshot current queries should read. Nil until
// the first successful refresh.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// SetSnapshot swaps in a new complete snapshot.
func (e *Engine) SetSnapshot(s *Snapshot) {
	e.snap.Store(s)
}

// requiredColumns must exist in a rep's table for it to be queried.
var requiredColumns = []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor}

// GetPrices matches the request against every loaded rep table and
// returns the merged offers sorted by (term, rep). One rep's failure
// never aborts the whole query; the rep is skipped and logged.
func (e *Engine) GetPrices(ctx context.Context, req types.PriceRequest) ([]types.PriceResult, error) {
	zone, err := e.resolveZone(ctx, req)
	if err != nil {
		return nil, err
	}
	startMonth := normalize.Month(ctx, req.StartMonth)
	loadFactor := strings.ToUpper(strings.TrimSpace(req.LoadFactor))

	snap := e.Snapshot()
	if snap == nil {
		log.Ctx(ctx).WarnContext(ctx, "price query before first refresh")
		return []types.PriceResult{}, nil
	}

	results := []types.PriceResult{}
	for _, src := range e.reps.Sources() {
		table := snap.Tables[src.Name]
		if table == nil {
			continue
		}
		if !table.HasColumns(requiredColumns...) {
			log.Ctx(ctx).WarnContext(ctx, "rep table missing required columns",
				slog.String("rep", src.Name), slog.Any("columns", table.Columns))
			continue
		}

		utility := normalize.Utility(e.aliases.ResolveForRep(req.Utility, src.Name))
		matched := matchRows(ctx, table, startMonth, utility, zone, loadFactor)
		if len(matched) == 0 {
			log.Ctx(ctx).DebugContext(ctx, "no matching rows for rep",
				slog.String("rep", src.Name),
				slog.String("startMonth", startMonth),
				slog.String("utility", utility),
				slog.String("zone", zone))
			continue
		}

		offers, err := src.Adapter.Offers(ctx, src.Name, matched, req)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "rep offer extraction failed",
				slog.String("rep", src.Name), slog.Any("error", err))
			continue
		}
		results = append(results, offers...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Term != results[j].Term {
			return results[i].Term < results[j].Term
		}
		return results[i].Rep < results[j].Rep
	})
	return results, nil
}

// resolveZone takes the zone directly from the request when present,
// otherwise resolves the ZIP code.
func (e *Engine) resolveZone(ctx context.Context, req types.PriceRequest) (string, error) {
	if zone := normalize.Zone(req.Zone); zone != "" {
		return zone, nil
	}
	zone, ok := e.zones.Zone(ctx, req.ZipCode)
	if !ok {
		return "", ErrUnknownZip
	}
	return normalize.Zone(zone), nil
}

// matchRows builds the equality row mask: re-normalized start month,
// utility and zone plus case-insensitive trimmed load factor.
func matchRows(ctx context.Context, table *types.Table, startMonth, utility, zone, loadFactor string) []types.Row {
	var matched []types.Row
	for _, row := range table.Rows {
		if normalize.Month(ctx, row.StartMonth) != startMonth {
			continue
		}
		if normalize.Utility(row.Utility) != utility {
			continue
		}
		if normalize.Zone(row.Zone) != zone {
			continue
		}
		if strings.ToUpper(strings.TrimSpace(row.LoadFactor)) != loadFactor {
			continue
		}
		matched = append(matched, row)
	}
	return matched
}

// MatchCounts reports per-rep match counts and a small sample for the
// debug endpoint; it runs the same mask as GetPrices without the offer
// extraction step.
func (e *Engine) MatchCounts(ctx context.Context, req types.PriceRequest, sampleSize int) (map[string]MatchSample, error) {
	zone, err := e.resolveZone(ctx, req)
	if err != nil {
		return nil, err
	}
	startMonth := normalize.Month(ctx, req.StartMonth)
	loadFactor := strings.ToUpper(strings.TrimSpace(req.LoadFactor))

	out := map[string]MatchSample{}
	snap := e.Snapshot()
	if snap == nil {
		return out, nil
	}
	for _, src := range e.reps.Sources() {
		table := snap.Tables[src.Name]
		if table == nil || !table.HasColumns(requiredColumns...) {
			continue
		}
		utility := normalize.Utility(e.aliases.ResolveForRep(req.Utility, src.Name))
		matched := matchRows(ctx, table, startMonth, utility, zone, loadFactor)
		sample := matched
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}
		out[src.Name] = MatchSample{MatchCount: len(matched), Sample: sample}
	}
	return out, nil
}

// MatchSample is one rep's entry in the debug filter output.
type MatchSample struct {
	MatchCount int         `json:"match_count"`
	Sample     []types.Row `json:"sample"`
}
