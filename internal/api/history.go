package api

import (
	"net/http"
	"strconv"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/history"
)

func handleListHistory(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	records, ok := loadHistory(deps, cfg, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func handleExportHistory(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	records, ok := loadHistory(deps, cfg, w, r)
	if !ok {
		return
	}
	result, err := history.EncodeRecordsToParquet(records)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_EXPORT_FAILED", "failed to encode history", true, map[string]any{"details": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="conversion_history.parquet"`)
	w.Header().Set("X-Record-Count", strconv.FormatInt(result.RecordCount, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func loadHistory(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) ([]history.Record, bool) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "conversion history is not enabled", false, nil)
		return nil, false
	}
	limit := cfg.History.ListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return nil, false
		}
		limit = parsed
	}
	records, err := deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to load conversion history", true, map[string]any{"details": err.Error()})
		return nil, false
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, true
}
