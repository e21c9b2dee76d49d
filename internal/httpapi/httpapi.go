// Package httpapi implements the Query API: the thin HTTP surface over
// targets.Service, schedules.Service and the store's read paths, wrapping
// every response in the {success, status_code, message, data, error}
// envelope.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/probesched/probe-scheduler/internal/controlplane/schedules"
	"github.com/probesched/probe-scheduler/internal/controlplane/targets"
	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/store"
	"go.uber.org/zap"
)

// Build-time version metadata, overridable via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Handler serves the Query API.
type Handler struct {
	targets   *targets.Service
	schedules *schedules.Service
	store     *store.Store
	logger    *zap.Logger
}

// New creates a Handler.
func New(t *targets.Service, s *schedules.Service, st *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{targets: t, schedules: s, store: st, logger: logger}
}

// Mux builds a *http.ServeMux with every route registered.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	h.registerRoutes(mux)
	return mux
}

func (h *Handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /version", h.handleVersion)

	mux.HandleFunc("POST /targets", h.handleCreateTarget)
	mux.HandleFunc("GET /targets", h.handleListTargets)
	mux.HandleFunc("GET /targets/{id}", h.handleGetTarget)
	mux.HandleFunc("PUT /targets/{id}", h.handleUpdateTarget)
	mux.HandleFunc("DELETE /targets/{id}", h.handleDeleteTarget)

	mux.HandleFunc("POST /schedules", h.handleCreateSchedule)
	mux.HandleFunc("GET /schedules", h.handleListSchedules)
	mux.HandleFunc("GET /schedules/{id}", h.handleGetSchedule)
	mux.HandleFunc("PUT /schedules/{id}", h.handleUpdateSchedule)
	mux.HandleFunc("DELETE /schedules/{id}", h.handleDeleteSchedule)
	mux.HandleFunc("POST /schedules/{id}/pause", h.handlePauseSchedule)
	mux.HandleFunc("POST /schedules/{id}/resume", h.handleResumeSchedule)

	mux.HandleFunc("GET /runs", h.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", h.handleGetRun)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, "ok", nil)
}

func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, "ok", map[string]string{
		"version": Version, "commit": Commit, "date": Date,
	})
}

// writeStoreError maps store.ErrNotFound to 404. Every control-plane service
// call here either looks a row up (ErrNotFound) or validates its input
// before touching storage, so anything else is the client's fault too.
func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", err.Error())
		return
	}
	h.logger.Debug("query api request rejected", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusBadRequest, "invalid request", err.Error())
}

// parseURL requires an absolute URL with a scheme, netloc, and path, and a
// netloc containing at least one dot, per spec.md §6's validation rule.
func parseURL(raw string) (model.URL, error) {
	if raw == "" {
		return model.URL{}, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.URL{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return model.URL{}, fmt.Errorf("url must be absolute")
	}
	if u.Path == "" {
		return model.URL{}, fmt.Errorf("url must have a path")
	}
	if !strings.Contains(u.Host, ".") {
		return model.URL{}, fmt.Errorf("url netloc must contain at least one dot")
	}
	return model.URL{
		Scheme:   u.Scheme,
		Netloc:   u.Host,
		Path:     u.Path,
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
