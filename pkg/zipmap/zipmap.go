// Package zipmap loads the ZIP-to-zone reference table and answers zone
// lookups. A lookup tries three tiers in order: exact 5-digit codes,
// numeric ranges, then ZIP prefixes.
package zipmap

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/normalize"
	"github.com/levenlabs/go-lflag"
)

const (
	defaultXLSXName = "ZipCodeMap.xlsx"
	defaultCSVName  = "ZipCodeMap.csv"
)

type zipRange struct {
	low  int
	high int
	zone string
}

type zipPrefix struct {
	prefix string
	zone   string
}

// Counts reports how many rows of each tier a load produced and how
// many rows were skipped, by reason.
type Counts struct {
	Exact            int `json:"exact"`
	Ranges           int `json:"ranges"`
	Prefixes         int `json:"prefixes"`
	SkippedNoZip     int `json:"skippedNoZip"`
	SkippedNoZone    int `json:"skippedNoZone"`
	SkippedMalformed int `json:"skippedMalformed"`
}

// Map is a fully built ZIP-to-zone table. Maps are immutable after
// construction; a reload builds a new Map and swaps it in whole.
type Map struct {
	path     string
	exact    map[string]string
	ranges   []zipRange
	prefixes []zipPrefix
	counts   Counts
}

func emptyMap(path string) *Map {
	return &Map{path: path, exact: map[string]string{}}
}

// Zone resolves a ZIP code to its zone. The second return is false when
// the ZIP does not resolve at any tier; absence is not an error here.
func (m *Map) Zone(zip string) (string, bool) {
	z5, ok := normalize.Zip(zip)
	if !ok {
		return "", false
	}
	if zone, ok := m.exact[z5]; ok {
		return zone, true
	}
	// ranges may overlap; first match in (low, high) ascending order wins
	zi, err := strconv.Atoi(z5)
	if err == nil {
		for _, r := range m.ranges {
			if r.low <= zi && zi <= r.high {
				return r.zone, true
			}
		}
	}
	// longest prefix first
	for _, p := range m.prefixes {
		if len(z5) >= len(p.prefix) && z5[:len(p.prefix)] == p.prefix {
			return p.zone, true
		}
	}
	return "", false
}

// Counts returns the row counts recorded when the map was built.
func (m *Map) Counts() Counts {
	return m.counts
}

// Status describes the currently loaded map for the debug endpoint.
type Status struct {
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
	Counts Counts `json:"counts"`
}

// Loader owns the cached Map and the source file configuration. Reads
// always observe either the previous complete map or the new complete
// one; loads replace the cached pointer wholesale.
type Loader struct {
	overridePath string
	dir          string

	mu     sync.Mutex
	cached atomic.Pointer[Map]
}

// Configured sets up the loader and registers its flags.
func Configured() *Loader {
	l := &Loader{}
	path := lflag.String("zip-map-path", "", "Explicit path to the ZIP-to-zone map file (overrides the default locations)")
	dir := lflag.String("zip-map-dir", "pricing_data", "Directory searched for ZipCodeMap.xlsx / ZipCodeMap.csv")
	lflag.Do(func() {
		l.overridePath = *path
		l.dir = *dir
	})
	return l
}

// NewLoader returns a loader for a specific file, bypassing flags.
func NewLoader(path string) *Loader {
	return &Loader{overridePath: path}
}

// resolvePath picks the source file: the explicit override when set,
// otherwise the default xlsx, otherwise the default csv. Returns "" when
// no candidate exists on disk.
func (l *Loader) resolvePath() string {
	if l.overridePath != "" {
		if fileExists(l.overridePath) {
			return l.overridePath
		}
		return ""
	}
	xlsx := filepath.Join(l.dir, defaultXLSXName)
	if fileExists(xlsx) {
		return xlsx
	}
	csv := filepath.Join(l.dir, defaultCSVName)
	if fileExists(csv) {
		return csv
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load returns the cached map, building it on first use. With force set
// the source file is re-read even when a map is already cached. A
// missing source file yields an empty map and no error; a file that
// exists but cannot be read or parsed resets the cache to an empty map
// and returns the error so an administrative caller can see it.
func (l *Loader) Load(ctx context.Context, force bool) (*Map, error) {
	if m := l.cached.Load(); m != nil && !force {
		return m, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// another goroutine may have finished the load while we waited
	if m := l.cached.Load(); m != nil && !force {
		return m, nil
	}

	path := l.resolvePath()
	if path == "" {
		log.Ctx(ctx).WarnContext(ctx, "zip map file not found",
			slog.String("override", l.overridePath), slog.String("dir", l.dir))
		m := emptyMap("")
		l.cached.Store(m)
		return m, nil
	}

	rows, err := readRows(path)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read zip map",
			slog.String("path", path), slog.Any("error", err))
		l.cached.Store(emptyMap(path))
		return nil, err
	}

	m := buildMap(ctx, path, rows)
	l.cached.Store(m)
	c := m.counts
	log.Ctx(ctx).InfoContext(ctx, "zip map loaded",
		slog.String("path", path),
		slog.Int("exact", c.Exact),
		slog.Int("ranges", c.Ranges),
		slog.Int("prefixes", c.Prefixes),
		slog.Int("skippedNoZip", c.SkippedNoZip),
		slog.Int("skippedNoZone", c.SkippedNoZone),
		slog.Int("skippedMalformed", c.SkippedMalformed),
	)
	return m, nil
}

// Zone resolves a ZIP code through the cached map, loading it lazily.
func (l *Loader) Zone(ctx context.Context, zip string) (string, bool) {
	m, err := l.Load(ctx, false)
	if err != nil || m == nil {
		return "", false
	}
	return m.Zone(zip)
}

// Status reports the loader state for the debug endpoint.
func (l *Loader) Status() Status {
	m := l.cached.Load()
	if m == nil {
		return Status{Path: l.resolvePath()}
	}
	return Status{Path: m.path, Loaded: true, Counts: m.counts}
}

// buildMap classifies every source row into one of the three tiers.
// Rows that carry no usable zip/zone information are counted by reason
// and skipped.
func buildMap(ctx context.Context, path string, rows []namedRow) *Map {
	m := emptyMap(path)
	if len(rows) == 0 {
		log.Ctx(ctx).InfoContext(ctx, "zip map is empty", slog.String("path", path))
		return m
	}

	headers := standardizeHeaders(rows[0].headers)
	zipCol := matchHeader(headers, "zip")
	zoneCol := matchHeader(headers, "zone")
	fromCol := matchHeader(headers, "fromzip")
	toCol := matchHeader(headers, "tozip")
	prefCol := matchHeader(headers, "prefix")

	for _, row := range rows {
		zRaw := row.get(zipCol)
		znRaw := row.get(zoneCol)
		aRaw := row.get(fromCol)
		bRaw := row.get(toCol)
		pRaw := row.get(prefCol)

		// 1) exact, whenever a Zip value is present
		if zRaw != "" {
			z := padZip(zRaw)
			zn := normalize.Zone(znRaw)
			switch {
			case z == "":
				m.counts.SkippedNoZip++
			case zn == "":
				m.counts.SkippedNoZone++
			default:
				m.exact[z] = zn
				m.counts.Exact++
			}
			continue
		}

		// 2) range: needs both bounds and a zone
		if aRaw != "" && bRaw != "" && znRaw != "" {
			zn := normalize.Zone(znRaw)
			low, lowOK := zipInt(aRaw)
			high, highOK := zipInt(bRaw)
			if zn != "" && lowOK && highOK && low <= high {
				m.ranges = append(m.ranges, zipRange{low: low, high: high, zone: zn})
				m.counts.Ranges++
			} else {
				m.counts.SkippedMalformed++
			}
			continue
		}

		// 3) prefix: needs a prefix with at least one digit and a zone
		if pRaw != "" && znRaw != "" {
			zn := normalize.Zone(znRaw)
			p := digitsOf(pRaw)
			if zn != "" && p != "" {
				m.prefixes = append(m.prefixes, zipPrefix{prefix: p, zone: zn})
				m.counts.Prefixes++
			} else {
				m.counts.SkippedMalformed++
			}
			continue
		}

		// 4) nothing usable
		if znRaw != "" && zRaw == "" && aRaw == "" && bRaw == "" && pRaw == "" {
			m.counts.SkippedNoZip++
		} else {
			m.counts.SkippedMalformed++
		}
	}

	sort.Slice(m.ranges, func(i, j int) bool {
		if m.ranges[i].low != m.ranges[j].low {
			return m.ranges[i].low < m.ranges[j].low
		}
		return m.ranges[i].high < m.ranges[j].high
	})
	sort.SliceStable(m.prefixes, func(i, j int) bool {
		return len(m.prefixes[i].prefix) > len(m.prefixes[j].prefix)
	})

	return m
}

// padZip normalizes a map-entry ZIP: digits only, first five, left
// padded with zeros. Returns "" when the value has no digits at all.
func padZip(val string) string {
	digits := digitsOf(val)
	if digits == "" {
		return ""
	}
	if len(digits) > 5 {
		digits = digits[:5]
	}
	for len(digits) < 5 {
		digits = "0" + digits
	}
	return digits
}

func zipInt(val string) (int, bool) {
	z := padZip(val)
	if z == "" {
		return 0, false
	}
	n, err := strconv.Atoi(z)
	if err != nil {
		return 0, false
	}
	return n, true
}

func digitsOf(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
