package types

import "time"

// ProbeKind selects how a health probe checks its target.
type ProbeKind string

const (
	ProbeDatabase ProbeKind = "database"
	ProbeHTTP     ProbeKind = "http"
)

type HttpConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	// ExpectedStatus of 0 accepts anything below 500.
	ExpectedStatus int `json:"expected_status"`
	Timeout        int `json:"timeout"`
}

// ProbeResult is the latest outcome of one probe.
type ProbeResult struct {
	Name         string    `json:"name"`
	Kind         ProbeKind `json:"kind"`
	Target       string    `json:"target"`
	Up           bool      `json:"up"`
	ResponseTime int64     `json:"response_time_ms"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}
