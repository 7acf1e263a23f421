package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"suitcase-link/internal/adapter/history"
	"suitcase-link/internal/domain"
)

// maxHistoryLimit caps how many rows of each kind one request may return.
const maxHistoryLimit = 1000

// HistoryResponse is the JSON body returned by GET /history and the
// history.recent RPC.
type HistoryResponse struct {
	Readings []history.ReadingRecord `json:"readings"`
	Alerts   []domain.Alert          `json:"alerts"`
}

func loadHistory(ctx context.Context, h HistoryReader, limit int) (HistoryResponse, error) {
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	limit = min(limit, maxHistoryLimit)

	readings, err := h.Readings(ctx, limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	alerts, err := h.Alerts(ctx, limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	if readings == nil {
		readings = []history.ReadingRecord{}
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return HistoryResponse{Readings: readings, Alerts: alerts}, nil
}

// historyHandler serves GET /history?limit=N, newest entries first.
func historyHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var limit int
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		resp, err := loadHistory(r.Context(), deps.History, limit)
		if err != nil {
			deps.Logger.Error("history query failed", "error", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
