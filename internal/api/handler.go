package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/cache"
	"creative-pipeline/internal/pipeline"
	"creative-pipeline/internal/storage"
)

// Submitter queues a brief for processing; implemented by the runner.
type Submitter interface {
	Submit(b *brief.CampaignBrief) (string, error)
}

// History reads archived run summaries; implemented by the Postgres store.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]storage.RunRow, error)
}

type CampaignHandler struct {
	Runs    *storage.Registry
	Latest  *cache.Snapshot[pipeline.Report]
	Submit  Submitter
	History History // nil when no archive is configured
}

func NewCampaignHandler(runs *storage.Registry, latest *cache.Snapshot[pipeline.Report], submit Submitter) *CampaignHandler {
	return &CampaignHandler{Runs: runs, Latest: latest, Submit: submit}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// SubmitCampaign accepts a parsed campaign brief and queues it.
func (h *CampaignHandler) SubmitCampaign(w http.ResponseWriter, r *http.Request) {
	var b brief.CampaignBrief
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed brief: " + err.Error()})
		return
	}
	runID, err := h.Submit.Submit(&b)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// GetRun returns the full report for one run.
func (h *CampaignHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, ok := h.Runs.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LatestRun returns the most recently completed report.
func (h *CampaignHandler) LatestRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := h.Latest.Load()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type runSummary struct {
	RunID    string           `json:"run_id"`
	Campaign string           `json:"campaign"`
	Summary  pipeline.Summary `json:"summary"`
}

// ListRuns returns summaries of in-memory runs, newest first.
func (h *CampaignHandler) ListRuns(w http.ResponseWriter, _ *http.Request) {
	reports := h.Runs.List()
	out := make([]runSummary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, runSummary{RunID: rep.RunID, Campaign: rep.Campaign, Summary: rep.Summary})
	}
	writeJSON(w, http.StatusOK, out)
}

// ArchivedRuns returns persisted run summaries, surviving restarts.
func (h *CampaignHandler) ArchivedRuns(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "run archive not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.History.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "archive query failed"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
