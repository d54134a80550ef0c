package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gridquote/gridquote/pkg/log"
	"github.com/gridquote/gridquote/pkg/normalize"
	"github.com/gridquote/gridquote/pkg/pricing"
	"github.com/gridquote/gridquote/pkg/types"
)

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var req types.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.StartMonth) == "" ||
		strings.TrimSpace(req.Utility) == "" ||
		strings.TrimSpace(req.LoadFactor) == "" {
		writeJSONError(w, "start_month, utility and load_factor are required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Zone) == "" && strings.TrimSpace(req.ZipCode) == "" {
		writeJSONError(w, "either zone or zipcode is required", http.StatusBadRequest)
		return
	}

	results, err := s.engine.GetPrices(r.Context(), req)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownZip) {
			writeJSONError(w, fmt.Sprintf("could not resolve zip code %q to a zone", req.ZipCode), http.StatusUnprocessableEntity)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "price query failed", slog.Any("error", err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		Results []types.PriceResult `json:"results"`
	}{Results: results})
}

type loadFactorRequest struct {
	KW         float64 `json:"kw"`
	KWH        float64 `json:"kwh"`
	DaysOnBill int     `json:"days_on_bill"`
}

func (s *Server) handleLoadFactor(w http.ResponseWriter, r *http.Request) {
	var req loadFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.KW <= 0 || req.KWH <= 0 || req.DaysOnBill <= 0 {
		writeJSONError(w, "kw, kwh and days_on_bill must be positive", http.StatusBadRequest)
		return
	}

	writeJSON(w, struct {
		LoadFactor string `json:"load_factor"`
	}{LoadFactor: normalize.ClassifyLoadFactor(req.KW, req.KWH, req.DaysOnBill)})
}
