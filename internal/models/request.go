package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList accepts either a JSON array or a single scalar, so clients
// may send "ids": "27" as well as "ids": ["27", "31"]. Non-string
// elements are coerced to their string form.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("expected a string or an array of strings")
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	*s = out
	return nil
}

// Clean trims whitespace and drops empty entries, preserving order.
func (s StringList) Clean() []string {
	out := make([]string, 0, len(s))
	for _, item := range s {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RunRequest is the body of POST /run.
type RunRequest struct {
	IDs          StringList `json:"ids"`
	SeasonFilter string     `json:"seasonFilter"`
	Fields       StringList `json:"fields"`

	// Force refetches rosters that already exist on disk and
	// re-enriches rows that already carry profile columns.
	Force bool `json:"force"`

	EnableParallel      bool    `json:"enableParallel"`
	MaxParallelRequests int     `json:"maxParallelRequests"`
	EnableRateLimit     bool    `json:"enableRateLimit"`
	RateLimitDelay      float64 `json:"rateLimitDelay"` // seconds
	EnableRetry         *bool   `json:"enableRetry"`    // nil means enabled
	MaxRetries          int     `json:"maxRetries"`
}
