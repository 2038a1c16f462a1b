package handlers

import (
	"bytes"
	"net/http"

	"github.com/Dosada05/tournament-engine/services"
)

type HistoryHandler struct {
	historyService services.HistoryService
}

func NewHistoryHandler(hs services.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: hs}
}

// RecordHandler handles POST /history
func (h *HistoryHandler) RecordHandler(w http.ResponseWriter, r *http.Request) {
	var input services.RecordMatchInput
	if !readValidJSON(w, r, &input) {
		return
	}

	record, err := h.historyService.RecordMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": record}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /history
func (h *HistoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.historyService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": records}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /history/{matchID}
func (h *HistoryHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	record, err := h.historyService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": record}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler handles DELETE /history/{matchID}
func (h *HistoryHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.historyService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatsHandler handles GET /history/stats
func (h *HistoryHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.historyService.PlayerStats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TopPerformersHandler handles GET /history/top
func (h *HistoryHandler) TopPerformersHandler(w http.ResponseWriter, r *http.Request) {
	top, err := h.historyService.TopPerformers(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"top_performers": top}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SummaryHandler handles GET /history/summary
func (h *HistoryHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.historyService.Summary(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"summary": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportCSVHandler handles GET /history/export.csv
func (h *HistoryHandler) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.historyService.ExportCSV(r.Context(), &buf); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="match_history_export.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportHandler handles POST /history/export
func (h *HistoryHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.historyService.Export(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"export": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
