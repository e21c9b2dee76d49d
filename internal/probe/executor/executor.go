// Package executor implements the HTTP Probe Activity: a retry-aware,
// timeout-aware, redirect-tracking HTTP executor that classifies every
// outcome into the closed status taxonomy and never returns a domain error.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/probesched/probe-scheduler/internal/model"
	"go.uber.org/zap"
)

const maxResponseBodyBytes = 1 << 20 // 1MB, mirrors the prior output cap

// Input is the frozen snapshot a Probe activity invocation runs against.
type Input struct {
	URL               string
	Method            model.Method
	Headers           map[string]string
	Body              model.JSONValue
	TimeoutSeconds    int
	RetryCount        int
	RetryDelaySeconds int
	FollowRedirects   bool
}

// Result is the structured Run-level outcome plus its ordered Attempts.
type Result struct {
	Status            model.Status
	StatusCode        *int
	LatencyMS         *float64
	ResponseSizeBytes *int
	ResponseHeaders   map[string]string
	ResponseBody      model.JSONValue
	ErrorMessage      string
	Redirected        bool
	RedirectCount     int
	RedirectHistory   []model.RedirectHop
	StartedAt         time.Time
	Attempts          []AttemptResult
}

// AttemptResult is one HTTP try within a Probe invocation.
type AttemptResult struct {
	AttemptNumber     int
	StartedAt         time.Time
	Status            model.Status
	StatusCode        *int
	LatencyMS         *float64
	ResponseSizeBytes *int
	ResponseHeaders   map[string]string
	ResponseBody      model.JSONValue
	ErrorMessage      string
}

// Executor runs one HTTP probe to completion, including its retry loop.
type Executor struct {
	logger *zap.Logger
}

// New creates an Executor.
func New(logger *zap.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs the probe's full retry loop and returns a structured result.
// It never returns a domain error: transport failures, timeouts, and
// non-2xx responses all become part of Result. Only a canceled ctx ends the
// retry loop early; a malformed Input yields an "error" attempt, which is
// retried like any other retryable outcome.
func (e *Executor) Execute(ctx context.Context, in Input) *Result {
	probeStart := time.Now()
	result := &Result{StartedAt: probeStart.UTC()}

	maxAttempts := in.RetryCount + 1
	for attemptNumber := 1; attemptNumber <= maxAttempts; attemptNumber++ {
		attempt, redirects := e.doAttempt(ctx, in, attemptNumber)
		result.Attempts = append(result.Attempts, attempt)

		result.Status = attempt.Status
		result.StatusCode = attempt.StatusCode
		result.ResponseSizeBytes = attempt.ResponseSizeBytes
		result.ResponseHeaders = attempt.ResponseHeaders
		result.ResponseBody = attempt.ResponseBody
		result.ErrorMessage = attempt.ErrorMessage
		result.RedirectHistory = redirects
		result.RedirectCount = len(redirects)
		result.Redirected = len(redirects) > 0

		latency := time.Since(probeStart).Seconds() * 1000
		result.LatencyMS = &latency

		if !attempt.Status.Retryable() || attemptNumber == maxAttempts {
			break
		}

		e.logger.Debug("probe attempt failed, retrying",
			zap.Int("attempt", attemptNumber),
			zap.String("status", string(attempt.Status)),
			zap.Int("retry_delay_seconds", in.RetryDelaySeconds),
		)

		if in.RetryDelaySeconds > 0 {
			timer := time.NewTimer(time.Duration(in.RetryDelaySeconds) * time.Second)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	return result
}

func (e *Executor) doAttempt(ctx context.Context, in Input, attemptNumber int) (AttemptResult, []model.RedirectHop) {
	attemptStart := time.Now()
	result := AttemptResult{AttemptNumber: attemptNumber, StartedAt: attemptStart.UTC()}

	req, redirectHistory, err := buildRequest(ctx, in)
	if err != nil {
		result.Status = model.StatusError
		result.ErrorMessage = err.Error()
		return result, nil
	}

	timeout := time.Duration(in.TimeoutSeconds) * time.Second
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(attemptCtx)

	client := newClient(timeout, in.FollowRedirects, redirectHistory)

	resp, err := client.Do(req)
	latency := time.Since(attemptStart).Seconds() * 1000
	result.LatencyMS = &latency

	if err != nil {
		result.Status, result.ErrorMessage = classifyRequestError(err, in.TimeoutSeconds)
		return result, *redirectHistory
	}
	defer resp.Body.Close()

	if !in.FollowRedirects && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Header.Get("Location"); loc != "" {
			*redirectHistory = append(*redirectHistory, model.RedirectHop{URL: loc, StatusCode: resp.StatusCode})
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		result.Status = model.StatusError
		result.ErrorMessage = err.Error()
		return result, *redirectHistory
	}

	statusCode := resp.StatusCode
	result.StatusCode = &statusCode
	size := len(body)
	result.ResponseSizeBytes = &size
	result.ResponseHeaders = flattenHeaders(resp.Header)
	result.ResponseBody = decodeBody(body)
	result.Status = ClassifyStatusCode(statusCode)

	return result, *redirectHistory
}

func buildRequest(ctx context.Context, in Input) (*http.Request, *[]model.RedirectHop, error) {
	history := &[]model.RedirectHop{}

	target := in.URL
	var bodyReader io.Reader

	if in.Method.UsesQueryBody() {
		if values, ok := bodyAsQueryValues(in.Body); ok && len(values) > 0 {
			parsed, err := url.Parse(target)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid url: %w", err)
			}
			query := parsed.Query()
			for k, v := range values {
				query.Set(k, v)
			}
			parsed.RawQuery = query.Encode()
			target = parsed.String()
		}
	} else if len(in.Body.Json) > 0 {
		bodyReader = bytes.NewReader(in.Body.Json)
	}

	req, err := http.NewRequestWithContext(ctx, string(in.Method), target, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, history, nil
}

func bodyAsQueryValues(body model.JSONValue) (map[string]string, bool) {
	if len(body.Json) == 0 {
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal(body.Json, &raw); err != nil {
		return nil, false
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = fmt.Sprint(v)
	}
	return values, true
}

func newClient(timeout time.Duration, followRedirects bool, history *[]model.RedirectHop) *http.Client {
	client := &http.Client{Timeout: timeout}
	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return client
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if req.Response != nil {
			*history = append(*history, model.RedirectHop{URL: req.Response.Request.URL.String(), StatusCode: req.Response.StatusCode})
		}
		return nil
	}
	return client
}

func classifyRequestError(err error, timeoutSeconds int) (model.Status, string) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.StatusTimeout, fmt.Sprintf("Request timed out after %d seconds", timeoutSeconds)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.StatusTimeout, fmt.Sprintf("Request timed out after %d seconds", timeoutSeconds)
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "stopped after") && strings.Contains(strings.ToLower(msg), "redirect") {
		return model.StatusError, msg
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassifyConnectError(msg), fmt.Sprintf("Connection error: %s", msg)
	}
	if ClassifyConnectError(msg) == model.StatusDNSError {
		return model.StatusDNSError, fmt.Sprintf("DNS resolution failed: %s", msg)
	}

	return model.StatusError, msg
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func decodeBody(raw []byte) model.JSONValue {
	if len(raw) == 0 {
		return model.JSONValue{Null: true}
	}
	var js any
	if err := json.Unmarshal(raw, &js); err == nil {
		return model.JSONValue{Json: append(json.RawMessage(nil), raw...)}
	}
	return model.NewJSONValueFromText(string(raw))
}
