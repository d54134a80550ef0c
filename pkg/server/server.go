// Package server exposes the pricing engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/google/uuid"
	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/pricing"
	"github.com/gridquote/gridquote/pkg/zipmap"
	"github.com/levenlabs/go-lflag"
)

// Server handles the HTTP API for price queries, ZIP-to-zone lookups and
// the administrative refresh/debug endpoints.
type Server struct {
	engine    *pricing.Engine
	refresher *pricing.Refresher
	zones     *zipmap.Loader

	listenAddr string
	corsOrigin string
	serverName string
	httpServer *http.Server
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(engine *pricing.Engine, refresher *pricing.Refresher, zones *zipmap.Loader) *Server {
	srv := &Server{
		engine:     engine,
		refresher:  refresher,
		zones:      zones,
		serverName: "gridquote",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	corsOrigin := lflag.String("cors-allow-origin", "*", "Value for the Access-Control-Allow-Origin header on API responses")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.corsOrigin = *corsOrigin
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/prices", s.handlePrices)
	apiMux.HandleFunc("POST /api/load-factor", s.handleLoadFactor)
	apiMux.HandleFunc("GET /api/zip/{zip}", s.handleZipLookup)
	apiMux.HandleFunc("GET /api/zip-map/status", s.handleZipMapStatus)
	apiMux.HandleFunc("GET /api/zip-map/peek", s.handleZipMapPeek)
	apiMux.HandleFunc("POST /api/zip-map/reload", s.handleZipMapReload)
	apiMux.HandleFunc("GET /api/status", s.handleStatus)
	apiMux.HandleFunc("GET /api/refresh-status", s.handleRefreshStatus)
	apiMux.HandleFunc("POST /api/refresh", s.handleRefresh)
	apiMux.HandleFunc("GET /api/debug/start-months", s.handleDebugStartMonths)
	apiMux.HandleFunc("GET /api/debug/columns", s.handleDebugColumns)
	apiMux.HandleFunc("GET /api/debug/unique-values", s.handleDebugUniqueValues)
	apiMux.HandleFunc("POST /api/debug/filters", s.handleDebugFilters)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.corsMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.requestIDMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// requestIDMiddleware tags every request with an ID that rides along on
// the context logger and the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := log.WithAttrs(r.Context(), slog.String("requestID", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}
