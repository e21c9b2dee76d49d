package executor

import (
	"strings"

	"github.com/probesched/probe-scheduler/internal/model"
)

// dnsErrorPatterns are case-insensitive substrings that mark a connect
// failure as DNS resolution failure rather than a generic connection error.
var dnsErrorPatterns = []string{
	"name resolution",
	"dns",
	"getaddrinfo",
	"name or service not known",
	"nodename nor servname",
}

// ClassifyConnectError determines whether a transport-level connect failure
// is a DNS failure or a generic connection error. Conservative: unmatched
// messages are connection errors, never promoted to DNS.
func ClassifyConnectError(msg string) model.Status {
	lower := strings.ToLower(msg)
	for _, pattern := range dnsErrorPatterns {
		if strings.Contains(lower, pattern) {
			return model.StatusDNSError
		}
	}
	return model.StatusConnectionError
}

// ClassifyStatusCode maps an HTTP response status code to the outcome
// taxonomy. Only called for responses that were actually received.
func ClassifyStatusCode(code int) model.Status {
	switch {
	case code >= 500:
		return model.StatusHTTP5xx
	case code >= 400:
		return model.StatusHTTP4xx
	default:
		return model.StatusSuccess
	}
}
