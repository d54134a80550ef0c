package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gridquote/gridquote/pkg/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDebugStartMonths(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/debug/start-months", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []string{"August 2025"}, resp["Engie"])
}

func TestHandleDebugColumns(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/debug/columns", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["Engie"], "Term")
}

func TestHandleDebugUniqueValues(t *testing.T) {
	_, handler := newTestServer(t)

	t.Run("identity column", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/debug/unique-values?rep=Engie&column=Utility", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Values []string `json:"values"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, []string{"oncor"}, resp.Values)
	})

	t.Run("rep-specific column", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/debug/unique-values?rep=Engie&column=Term", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Values []string `json:"values"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, []string{"12"}, resp.Values)
	})

	t.Run("no params returns the identity overview for every rep", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/debug/unique-values", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]map[string][]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Contains(t, resp, "Engie")
		assert.Equal(t, []string{"August 2025"}, resp["Engie"]["Start Month"])
		assert.Equal(t, []string{"oncor"}, resp["Engie"]["Utility"])
		assert.Equal(t, []string{"NORTH"}, resp["Engie"]["Congestion Zone"])
		assert.Equal(t, []string{"HI"}, resp["Engie"]["Load Factor"])
	})

	t.Run("one param without the other", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/debug/unique-values?rep=Engie", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown rep", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/debug/unique-values?rep=Nope&column=Term", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleDebugFilters(t *testing.T) {
	_, handler := newTestServer(t)

	w := postJSON(handler, "/api/debug/filters", `{
		"start_month": "August 2025",
		"utility": "Oncor",
		"zipcode": "75078",
		"load_factor": "HI"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]pricing.MatchSample
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Contains(t, resp, "Engie")
	assert.Equal(t, 1, resp["Engie"].MatchCount)

	t.Run("unknown zip", func(t *testing.T) {
		w := postJSON(handler, "/api/debug/filters", `{"zipcode": "99999"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Loaded bool `json:"loaded"`
		Reps   map[string]struct {
			Loaded bool `json:"loaded"`
			Rows   int  `json:"rows"`
		} `json:"reps"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Loaded)
	assert.Equal(t, 1, resp.Reps["Engie"].Rows)
}

func TestHandleRefreshStatus(t *testing.T) {
	_, handler := newTestServer(t)

	t.Run("before any refresh", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/refresh-status", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			HasRun bool `json:"has_run"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.HasRun)
	})

	t.Run("manual refresh fails without workbooks", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/refresh", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
