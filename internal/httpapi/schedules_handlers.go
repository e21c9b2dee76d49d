package httpapi

import (
	"net/http"

	"github.com/probesched/probe-scheduler/internal/controlplane/schedules"
	"github.com/probesched/probe-scheduler/internal/model"
)

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "invalid JSON body")
		return
	}

	kind := model.ScheduleInterval
	duration := 0
	if req.DurationSeconds != nil && *req.DurationSeconds > 0 {
		kind = model.ScheduleWindow
		duration = *req.DurationSeconds
	}

	created, err := h.schedules.Create(schedules.CreateInput{
		Kind:            kind,
		Name:            req.Name,
		TargetID:        req.TargetID,
		IntervalSeconds: req.IntervalSeconds,
		DurationSeconds: duration,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	writeData(w, http.StatusCreated, "schedule created", toScheduleResponse(created))
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.schedules.Get(r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "get_schedule", err)
		return
	}
	writeData(w, http.StatusOK, "ok", toScheduleResponse(s))
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	list, err := h.schedules.List()
	if err != nil {
		h.writeStoreError(w, "list_schedules", err)
		return
	}
	out := make([]scheduleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toScheduleResponse(s))
	}
	writeData(w, http.StatusOK, "ok", out)
}

func (h *Handler) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req scheduleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "invalid JSON body")
		return
	}

	updated, err := h.schedules.UpdateInterval(id, req.IntervalSeconds, req.DurationSeconds)
	if err != nil {
		h.writeStoreError(w, "update_schedule", err)
		return
	}
	writeData(w, http.StatusOK, "schedule updated", toScheduleResponse(updated))
}

func (h *Handler) handlePauseSchedule(w http.ResponseWriter, r *http.Request) {
	updated, err := h.schedules.Pause(r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "pause_schedule", err)
		return
	}
	writeData(w, http.StatusOK, "schedule paused", toScheduleResponse(updated))
}

func (h *Handler) handleResumeSchedule(w http.ResponseWriter, r *http.Request) {
	updated, err := h.schedules.Resume(r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "resume_schedule", err)
		return
	}
	writeData(w, http.StatusOK, "schedule resumed", toScheduleResponse(updated))
}

func (h *Handler) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.schedules.Delete(r.PathValue("id")); err != nil {
		h.writeStoreError(w, "delete_schedule", err)
		return
	}
	writeData(w, http.StatusOK, "schedule deleted", nil)
}
