package httpapi

import (
	"time"

	"github.com/probesched/probe-scheduler/internal/model"
)

// targetRequest is the JSON body for POST/PUT /targets{,/{id}}.
type targetRequest struct {
	Name              string            `json:"name"`
	URL               string            `json:"url"`
	Method            string            `json:"method"`
	Headers           map[string]string `json:"headers"`
	Body              model.JSONValue   `json:"body"`
	TimeoutSeconds    int               `json:"timeout_seconds"`
	RetryCount        int               `json:"retry_count"`
	RetryDelaySeconds *int              `json:"retry_delay_seconds"`
	FollowRedirects   *bool             `json:"follow_redirects"`
}

type targetResponse struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	URL               string            `json:"url"`
	Method            string            `json:"method"`
	Headers           map[string]string `json:"headers"`
	Body              model.JSONValue   `json:"body"`
	TimeoutSeconds    int               `json:"timeout_seconds"`
	RetryCount        int               `json:"retry_count"`
	RetryDelaySeconds int               `json:"retry_delay_seconds"`
	FollowRedirects   bool              `json:"follow_redirects"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// scheduleRequest is the JSON body for POST /schedules. A positive
// duration_seconds selects a window schedule; its absence selects interval.
type scheduleRequest struct {
	Name            string `json:"name"`
	TargetID        string `json:"target_id"`
	IntervalSeconds int    `json:"interval_seconds"`
	DurationSeconds *int   `json:"duration_seconds"`
}

// scheduleUpdateRequest is the JSON body for PUT /schedules/{id}.
type scheduleUpdateRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
	DurationSeconds int `json:"duration_seconds"`
}

type scheduleResponse struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Name            string    `json:"name"`
	TargetID        string    `json:"target_id"`
	IntervalSeconds int       `json:"interval_seconds"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Paused          bool      `json:"paused"`
	WorkflowHandle  string    `json:"workflow_handle,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toScheduleResponse(s model.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:              s.ID,
		Kind:            string(s.Kind),
		Name:            s.Name,
		TargetID:        s.TargetID,
		IntervalSeconds: s.IntervalSeconds,
		DurationSeconds: s.DurationSeconds,
		Paused:          s.Paused,
		WorkflowHandle:  s.WorkflowHandle,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type attemptResponse struct {
	ID                string                `json:"id"`
	AttemptNumber     int                   `json:"attempt_number"`
	StartedAt         time.Time             `json:"started_at"`
	Status            string                `json:"status"`
	StatusCode        *int                  `json:"status_code,omitempty"`
	LatencyMS         *float64              `json:"latency_ms,omitempty"`
	ResponseSizeBytes *int                  `json:"response_size_bytes,omitempty"`
	ResponseHeaders   map[string]string     `json:"response_headers,omitempty"`
	ResponseBody      model.JSONValue       `json:"response_body"`
	ErrorMessage      string                `json:"error_message,omitempty"`
}

func toAttemptResponse(a model.Attempt) attemptResponse {
	return attemptResponse{
		ID:                a.ID,
		AttemptNumber:     a.AttemptNumber,
		StartedAt:         a.StartedAt,
		Status:            string(a.Status),
		StatusCode:        a.StatusCode,
		LatencyMS:         a.LatencyMS,
		ResponseSizeBytes: a.ResponseSizeBytes,
		ResponseHeaders:   a.ResponseHeaders,
		ResponseBody:      a.ResponseBody,
		ErrorMessage:      a.ErrorMessage,
	}
}

type runResponse struct {
	ID                string            `json:"id"`
	ScheduleID        string            `json:"schedule_id"`
	RunNumber         int               `json:"run_number"`
	StartedAt         time.Time         `json:"started_at"`
	Status            string            `json:"status"`
	StatusCode        *int              `json:"status_code,omitempty"`
	LatencyMS         *float64          `json:"latency_ms,omitempty"`
	ResponseSizeBytes *int              `json:"response_size_bytes,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Redirected        bool              `json:"redirected"`
	RedirectCount     int               `json:"redirect_count"`
	RedirectHistory   []model.RedirectHop `json:"redirect_history,omitempty"`
	Attempts          []attemptResponse `json:"attempts,omitempty"`
}

func toRunResponse(r model.Run, attempts []model.Attempt) runResponse {
	out := runResponse{
		ID:                r.ID,
		ScheduleID:        r.ScheduleID,
		RunNumber:         r.RunNumber,
		StartedAt:         r.StartedAt,
		Status:            string(r.Status),
		StatusCode:        r.StatusCode,
		LatencyMS:         r.LatencyMS,
		ResponseSizeBytes: r.ResponseSizeBytes,
		ErrorMessage:      r.ErrorMessage,
		Redirected:        r.Redirected,
		RedirectCount:     r.RedirectCount,
		RedirectHistory:   r.RedirectHistory,
	}
	if attempts != nil {
		out.Attempts = make([]attemptResponse, 0, len(attempts))
		for _, a := range attempts {
			out.Attempts = append(out.Attempts, toAttemptResponse(a))
		}
	}
	return out
}
