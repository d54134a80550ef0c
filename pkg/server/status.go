package server

import (
	"log/slog"
	"net/http"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/types"
)

type repStatus struct {
	Loaded bool `json:"loaded"`
	Rows   int  `json:"rows"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Loaded bool                 `json:"loaded"`
		Reps   map[string]repStatus `json:"reps"`
	}{Reps: map[string]repStatus{}}

	if snap := s.engine.Snapshot(); snap != nil {
		out.Loaded = true
		for name, table := range snap.Tables {
			rs := repStatus{Loaded: table != nil}
			if table != nil {
				rs.Rows = len(table.Rows)
			}
			out.Reps[name] = rs
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.refresher.Status()
	out := struct {
		HasRun bool                 `json:"has_run"`
		Last   *types.RefreshStatus `json:"last,omitempty"`
	}{HasRun: ok}
	if ok {
		out.Last = &status
	}
	writeJSON(w, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "manual refresh failed", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handleRefreshStatus(w, r)
}
