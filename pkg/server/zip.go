package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gridquote/gridquote/pkg/log"
)

func (s *Server) handleZipLookup(w http.ResponseWriter, r *http.Request) {
	zip := r.PathValue("zip")
	zone, ok := s.zones.Zone(r.Context(), zip)
	if !ok {
		writeJSONError(w, fmt.Sprintf("no zone for zip code %q", zip), http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		ZipCode string `json:"zipcode"`
		Zone    string `json:"zone"`
	}{ZipCode: zip, Zone: zone})
}

func (s *Server) handleZipMapStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.zones.Status())
}

func (s *Server) handleZipMapPeek(w http.ResponseWriter, r *http.Request) {
	maxRows := 5
	if raw := r.URL.Query().Get("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "rows must be a positive integer", http.StatusBadRequest)
			return
		}
		maxRows = n
	}
	peek, err := s.zones.Peek(maxRows)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, peek)
}

func (s *Server) handleZipMapReload(w http.ResponseWriter, r *http.Request) {
	if _, err := s.zones.Load(r.Context(), true); err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "zip map reload failed", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.zones.Status())
}
