package httpapi

import (
	"net/http"

	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/store"
)

// handleListRuns serves GET /runs?schedule_id=&status=&start_time=&end_time=&limit=&offset=.
// It does not include per-run attempts; fetch GET /runs/{id} for those.
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		ScheduleID: q.Get("schedule_id"),
		Status:     model.Status(q.Get("status")),
		StartTime:  q.Get("start_time"),
		EndTime:    q.Get("end_time"),
		Limit:      atoiOr(q.Get("limit"), 50),
		Offset:     atoiOr(q.Get("offset"), 0),
	}

	runs, err := h.store.ListRunsFiltered(filter)
	if err != nil {
		h.writeStoreError(w, "list_runs", err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run, nil))
	}
	writeData(w, http.StatusOK, "ok", out)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.store.GetRun(id)
	if err != nil {
		h.writeStoreError(w, "get_run", err)
		return
	}
	attempts, err := h.store.ListAttempts(id)
	if err != nil {
		h.writeStoreError(w, "list_attempts", err)
		return
	}
	writeData(w, http.StatusOK, "ok", toRunResponse(run, attempts))
}
