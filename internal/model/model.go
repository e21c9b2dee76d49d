// Package model defines the URL/Target/Schedule/Run/Attempt data model shared
// by the store, workflow, probe, and control-plane packages.
package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Status is the closed outcome taxonomy for a Run or Attempt.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusTimeout         Status = "timeout"
	StatusDNSError        Status = "dns_error"
	StatusConnectionError Status = "connection_error"
	StatusHTTP4xx         Status = "http_4xx"
	StatusHTTP5xx         Status = "http_5xx"
	StatusError           Status = "error"
)

// ParseStatus is tolerant: an unknown string becomes StatusError, per the
// Record activity's deserialisation contract.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusSuccess, StatusTimeout, StatusDNSError, StatusConnectionError, StatusHTTP4xx, StatusHTTP5xx, StatusError:
		return Status(s)
	default:
		return StatusError
	}
}

// Retryable reports whether a retry attempt should follow this status: any
// outcome other than success or http_4xx is retried while attempts remain.
func (s Status) Retryable() bool {
	return s != StatusSuccess && s != StatusHTTP4xx
}

// Method is the HTTP method of a Target request template.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
)

// ValidMethod reports whether m is one of the seven allowed methods.
func ValidMethod(m string) bool {
	switch Method(m) {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOptions:
		return true
	default:
		return false
	}
}

// UsesQueryBody reports whether this method sends its body as query
// parameters (true) or as a JSON request body (false).
func (m Method) UsesQueryBody() bool {
	switch m {
	case MethodGet, MethodHead, MethodDelete, MethodOptions:
		return true
	default:
		return false
	}
}

// JSONValue is the sum type `{ Json(value) | Text(string) | Null }` from the
// design notes: a response or request body that is either structured JSON,
// raw text (when the payload did not parse as JSON), or absent.
type JSONValue struct {
	Json json.RawMessage
	Text string
	Null bool
}

// NewJSONValueFromAny wraps an arbitrary decoded JSON value.
func NewJSONValueFromAny(v any) JSONValue {
	if v == nil {
		return JSONValue{Null: true}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return JSONValue{Text: fmt.Sprint(v)}
	}
	return JSONValue{Json: raw}
}

// NewJSONValueFromText wraps a raw non-JSON response/request body.
func NewJSONValueFromText(s string) JSONValue {
	if s == "" {
		return JSONValue{Null: true}
	}
	return JSONValue{Text: s}
}

// IsNull reports whether the value is absent.
func (v JSONValue) IsNull() bool {
	return v.Null || (len(v.Json) == 0 && v.Text == "")
}

// MarshalJSON implements json.Marshaler, round-tripping structured values as
// JSON and text values as JSON strings.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	switch {
	case len(v.Json) > 0:
		return v.Json, nil
	case v.Text != "":
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *JSONValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = JSONValue{Null: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = JSONValue{Text: s}
		return nil
	}
	*v = JSONValue{Json: append(json.RawMessage(nil), data...)}
	return nil
}

// URL is a parsed HTTP URL, owned 1:1 by a Target.
type URL struct {
	ID        string
	Scheme    string
	Netloc    string
	Path      string
	Params    string
	Query     string
	Fragment  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String reconstructs the URL from its parsed components, folding the
// Python-urlparse-style `params` component into the path as `path;params`.
func (u URL) String() string {
	path := u.Path
	if u.Params != "" {
		path = path + ";" + u.Params
	}
	parsed := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Netloc,
		Path:     path,
		RawQuery: u.Query,
		Fragment: u.Fragment,
	}
	return parsed.String()
}

// Target is a named, reusable HTTP request template.
type Target struct {
	ID                string
	Name              string
	URLID             string
	Method            Method
	Headers           map[string]string
	Body              JSONValue
	TimeoutSeconds    int
	RetryCount        int
	RetryDelaySeconds int
	FollowRedirects   bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const (
	DefaultTimeoutSeconds    = 30
	MinTimeoutSeconds        = 1
	MaxTimeoutSeconds        = 300
	DefaultRetryCount        = 0
	MinRetryCount            = 0
	MaxRetryCount            = 10
	DefaultRetryDelaySeconds = 1
	MinRetryDelaySeconds     = 0
	MaxRetryDelaySeconds     = 60
)

// ScheduleKind tags which disjoint table a Schedule belongs to.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleWindow   ScheduleKind = "window"
)

// Schedule is the tagged Interval/Window variant over a recurring probe.
type Schedule struct {
	ID              string
	Kind            ScheduleKind
	Name            string
	TargetID        string
	IntervalSeconds int
	DurationSeconds int // only meaningful when Kind == ScheduleWindow
	Paused          bool
	WorkflowHandle  string // empty string means null
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasHandle reports whether the schedule currently owns a workflow handle.
func (s Schedule) HasHandle() bool {
	return s.WorkflowHandle != ""
}

// RedirectHop is one entry of a Run or Attempt's redirect chain.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// Run is one end-to-end execution of a schedule tick.
type Run struct {
	ID                string
	ScheduleID        string
	RunNumber         int
	StartedAt         time.Time
	Status            Status
	StatusCode        *int
	LatencyMS         *float64
	ResponseSizeBytes *int
	RequestHeaders    map[string]string
	RequestBody       JSONValue
	ResponseHeaders   map[string]string
	ResponseBody      JSONValue
	ErrorMessage      string
	Redirected        bool
	RedirectCount     int
	RedirectHistory   []RedirectHop
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Attempt is one HTTP try within a Run.
type Attempt struct {
	ID                string
	RunID             string
	AttemptNumber     int
	StartedAt         time.Time
	Status            Status
	StatusCode        *int
	LatencyMS         *float64
	ResponseSizeBytes *int
	ResponseHeaders   map[string]string
	ResponseBody      JSONValue
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
