package httpapi

import (
	"net/http"
	"strings"

	"github.com/probesched/probe-scheduler/internal/controlplane/targets"
	"github.com/probesched/probe-scheduler/internal/model"
	"go.uber.org/zap"
)

func (h *Handler) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "name is required")
		return
	}
	parsed, err := parseURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	created, err := h.targets.Create(targets.CreateInput{
		Name:              req.Name,
		URL:               parsed,
		Method:            model.Method(strings.ToUpper(req.Method)),
		Headers:           req.Headers,
		Body:              req.Body,
		TimeoutSeconds:    req.TimeoutSeconds,
		RetryCount:        req.RetryCount,
		RetryDelaySeconds: retryDelaySeconds(req.RetryDelaySeconds),
		FollowRedirects:   followRedirects(req.FollowRedirects),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	writeData(w, http.StatusCreated, "target created", h.toTargetResponse(created))
}

func (h *Handler) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.targets.Get(r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "get_target", err)
		return
	}
	writeData(w, http.StatusOK, "ok", h.toTargetResponse(t))
}

func (h *Handler) handleListTargets(w http.ResponseWriter, _ *http.Request) {
	list, err := h.targets.List()
	if err != nil {
		h.writeStoreError(w, "list_targets", err)
		return
	}
	out := make([]targetResponse, 0, len(list))
	for _, t := range list {
		out = append(out, h.toTargetResponse(t))
	}
	writeData(w, http.StatusOK, "ok", out)
}

func (h *Handler) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "invalid JSON body")
		return
	}

	var newURL *model.URL
	if req.URL != "" {
		parsed, err := parseURL(req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
		newURL = &parsed
	}

	updated, err := h.targets.Update(id, targets.UpdateInput{
		Name:              req.Name,
		URL:               newURL,
		Method:            model.Method(strings.ToUpper(req.Method)),
		Headers:           req.Headers,
		Body:              req.Body,
		TimeoutSeconds:    req.TimeoutSeconds,
		RetryCount:        req.RetryCount,
		RetryDelaySeconds: retryDelaySeconds(req.RetryDelaySeconds),
		FollowRedirects:   followRedirects(req.FollowRedirects),
	})
	if err != nil {
		h.writeStoreError(w, "update_target", err)
		return
	}
	writeData(w, http.StatusOK, "target updated", h.toTargetResponse(updated))
}

func (h *Handler) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := h.targets.Delete(r.PathValue("id")); err != nil {
		h.writeStoreError(w, "delete_target", err)
		return
	}
	writeData(w, http.StatusOK, "target deleted", nil)
}

// toTargetResponse resolves the target's owned URL row into its string form.
func (h *Handler) toTargetResponse(t model.Target) targetResponse {
	urlStr := ""
	if u, err := h.store.GetURL(t.URLID); err != nil {
		h.logger.Warn("failed to load target url", zap.String("target_id", t.ID), zap.Error(err))
	} else {
		urlStr = u.String()
	}
	return targetResponse{
		ID:                t.ID,
		Name:              t.Name,
		URL:               urlStr,
		Method:            string(t.Method),
		Headers:           t.Headers,
		Body:              t.Body,
		TimeoutSeconds:    t.TimeoutSeconds,
		RetryCount:        t.RetryCount,
		RetryDelaySeconds: t.RetryDelaySeconds,
		FollowRedirects:   t.FollowRedirects,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// followRedirects resolves the optional follow_redirects field, defaulting
// to true when the client omits it.
func followRedirects(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// retryDelaySeconds resolves the optional retry_delay_seconds field,
// defaulting to 1 when the client omits it. 0 is a valid explicit value
// and must reach targets.Service unchanged.
func retryDelaySeconds(v *int) int {
	if v == nil {
		return 1
	}
	return *v
}
