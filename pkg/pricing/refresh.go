package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/rep"
	"github.com/gridquote/gridquote/pkg/types"
	"github.com/gridquote/gridquote/pkg/zipmap"
	"github.com/levenlabs/go-lflag"
)

// Refresher rebuilds the engine's snapshot from the workbooks on disk.
// A refresh either produces a complete new snapshot or leaves the
// previous one untouched.
type Refresher struct {
	engine *Engine
	reps   *rep.Map
	zones  *zipmap.Loader

	dir      string
	interval time.Duration

	mu     sync.Mutex
	status atomic.Pointer[types.RefreshStatus]
}

// ConfiguredRefresher sets up the refresher and registers its flags.
func ConfiguredRefresher(engine *Engine, reps *rep.Map, zones *zipmap.Loader) *Refresher {
	r := &Refresher{engine: engine, reps: reps, zones: zones}
	dir := lflag.String("pricing-dir", "pricing_data", "Directory holding the rep matrix workbooks")
	interval := lflag.Duration("refresh-interval", 24*time.Hour, "How often to reload the matrix workbooks (0 disables the timer)")
	lflag.Do(func() {
		r.dir = *dir
		r.interval = *interval
	})
	return r
}

// NewRefresher creates a refresher with explicit configuration, for
// tests and callers that bypass flags.
func NewRefresher(engine *Engine, reps *rep.Map, zones *zipmap.Loader, dir string, interval time.Duration) *Refresher {
	return &Refresher{engine: engine, reps: reps, zones: zones, dir: dir, interval: interval}
}

// Refresh loads every configured source's latest workbook, builds one
// complete snapshot and swaps it into the engine. Any source failing to
// load fails the whole refresh and the engine keeps serving the old
// snapshot.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	err := r.refresh(ctx)
	status := &types.RefreshStatus{Timestamp: start, Success: err == nil}
	if err != nil {
		status.Error = err.Error()
		log.Ctx(ctx).ErrorContext(ctx, "pricing refresh failed",
			slog.Any("error", err), slog.Duration("took", time.Since(start)))
	} else {
		log.Ctx(ctx).InfoContext(ctx, "pricing refresh finished",
			slog.Duration("took", time.Since(start)))
	}
	r.status.Store(status)
	return err
}

func (r *Refresher) refresh(ctx context.Context) error {
	// the zone map rides along with the pricing files, so a refresh also
	// forces it to re-read; a zone-map failure is logged but does not
	// block price loading
	if _, err := r.zones.Load(ctx, true); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "zip map reload failed during refresh", slog.Any("error", err))
	}

	tables := map[string]*types.Table{}
	for _, src := range r.reps.Sources() {
		path, err := latestFile(r.dir, src.Pattern)
		if err != nil {
			return fmt.Errorf("locating workbook for %s (%s): %w", src.Name, src.Pattern, err)
		}
		table, err := src.Adapter.Load(ctx, path, src.Sheet)
		if err != nil {
			return fmt.Errorf("loading %s from %s: %w", src.Name, filepath.Base(path), err)
		}
		log.Ctx(ctx).InfoContext(ctx, "loaded rep matrix",
			slog.String("rep", src.Name),
			slog.String("file", filepath.Base(path)),
			slog.Int("rows", len(table.Rows)))
		tables[src.Name] = table
	}

	r.engine.SetSnapshot(&Snapshot{Tables: tables})
	return nil
}

// Status reports the outcome of the most recent refresh attempt.
func (r *Refresher) Status() (types.RefreshStatus, bool) {
	s := r.status.Load()
	if s == nil {
		return types.RefreshStatus{}, false
	}
	return *s, true
}

// Run performs an initial refresh and then refreshes on the configured
// interval until the context is canceled. The initial failure is not
// fatal; the server comes up and a later refresh (or the reload
// endpoint) can recover.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "initial pricing refresh failed", slog.Any("error", err))
	}
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// errors already logged and recorded in the status
			_ = r.Refresh(ctx)
		}
	}
}

// latestFile returns the most recently modified file in dir matching
// pattern.
func latestFile(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	var (
		newest     string
		newestTime time.Time
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = m
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no file matching %q in %s", pattern, dir)
	}
	return newest, nil
}
