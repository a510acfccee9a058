// Package health tracks the liveness of the gateway's moving parts,
// chiefly the credential store, and aggregates them into one status the
// operator endpoints can report. Messages are sanitized before leaving
// the process.
package health

import (
	"regexp"
	"strings"
	"time"
)

// Pre-compiled regexes for error message sanitization
var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
	credentialTokens = []string{"password", "token", "key", "secret", "credential"}
)

// Status represents the health state of one component or the system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy.
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded.
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy.
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// NewHealthy creates a new healthy status.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status. The message is sanitized
// since unhealthy messages usually quote an error.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   SanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a new degraded status.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   SanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// Aggregate folds sub-statuses into one: any unhealthy wins, otherwise
// any degraded, otherwise healthy.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			hasUnhealthy = true
		} else if sub.IsDegraded() {
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "One or more sub-components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "One or more sub-components are degraded")
	default:
		status = NewHealthy(component, "All sub-components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// SanitizeMessage removes potentially sensitive information from a
// status message before it can leave the process:
//   - URLs (http://, https://) → [URL]
//   - File paths → [PATH]
//   - IP addresses → [IP]
//   - Port numbers (:9000) → [PORT]
//   - Credentials (password=X, token=X, key=X) → [REDACTED]
func SanitizeMessage(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := httpURLRegex.ReplaceAllString(msg, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	for _, token := range credentialTokens {
		if strings.Contains(lower, token) {
			sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
			break
		}
	}

	return sanitized
}
