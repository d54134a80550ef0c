package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gridquote/gridquote/pkg/pricing"
	"github.com/gridquote/gridquote/pkg/types"
)

// handleDebugStartMonths lists the distinct start months per rep, so an
// operator can see at a glance whether a matrix parsed into the month
// the request will ask for.
func (s *Server) handleDebugStartMonths(w http.ResponseWriter, r *http.Request) {
	out := map[string][]string{}
	if snap := s.engine.Snapshot(); snap != nil {
		for name, table := range snap.Tables {
			if table == nil {
				continue
			}
			seen := map[string]bool{}
			for _, row := range table.Rows {
				seen[row.StartMonth] = true
			}
			out[name] = sortedKeys(seen)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleDebugColumns(w http.ResponseWriter, r *http.Request) {
	out := map[string][]string{}
	if snap := s.engine.Snapshot(); snap != nil {
		for name, table := range snap.Tables {
			if table == nil {
				continue
			}
			out[name] = table.Columns
		}
	}
	writeJSON(w, out)
}

// handleDebugUniqueValues serves one rep's column when rep and column
// are given, or a one-shot overview of every rep's identity columns
// when called with no parameters.
func (s *Server) handleDebugUniqueValues(w http.ResponseWriter, r *http.Request) {
	repName := r.URL.Query().Get("rep")
	column := r.URL.Query().Get("column")
	if repName == "" && column == "" {
		writeJSON(w, s.identityValueOverview())
		return
	}
	if repName == "" || column == "" {
		writeJSONError(w, "rep and column query parameters are required together", http.StatusBadRequest)
		return
	}

	snap := s.engine.Snapshot()
	if snap == nil || snap.Tables[repName] == nil {
		writeJSONError(w, "rep not loaded: "+repName, http.StatusNotFound)
		return
	}

	seen := map[string]bool{}
	for _, row := range snap.Tables[repName].Rows {
		seen[columnValue(row, column)] = true
	}
	delete(seen, "")

	writeJSON(w, struct {
		Rep    string   `json:"rep"`
		Column string   `json:"column"`
		Values []string `json:"values"`
	}{Rep: repName, Column: column, Values: sortedKeys(seen)})
}

// handleDebugFilters runs the price-query row mask and reports per-rep
// match counts with a row sample, without extracting offers.
func (s *Server) handleDebugFilters(w http.ResponseWriter, r *http.Request) {
	var req types.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	counts, err := s.engine.MatchCounts(r.Context(), req, 5)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownZip) {
			writeJSONError(w, "could not resolve zip code to a zone", http.StatusUnprocessableEntity)
			return
		}
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, counts)
}

// identityValueOverview collects the distinct values of the four
// identity columns for every loaded rep.
func (s *Server) identityValueOverview() map[string]map[string][]string {
	identity := []string{types.ColStartMonth, types.ColUtility, types.ColZone, types.ColLoadFactor}
	out := map[string]map[string][]string{}
	snap := s.engine.Snapshot()
	if snap == nil {
		return out
	}
	for name, table := range snap.Tables {
		if table == nil {
			continue
		}
		values := map[string][]string{}
		for _, col := range identity {
			seen := map[string]bool{}
			for _, row := range table.Rows {
				seen[columnValue(row, col)] = true
			}
			delete(seen, "")
			values[col] = sortedKeys(seen)
		}
		out[name] = values
	}
	return out
}

func columnValue(row types.Row, column string) string {
	switch column {
	case types.ColStartMonth:
		return row.StartMonth
	case types.ColUtility:
		return row.Utility
	case types.ColZone:
		return row.Zone
	case types.ColLoadFactor:
		return row.LoadFactor
	default:
		return row.Field(column)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
