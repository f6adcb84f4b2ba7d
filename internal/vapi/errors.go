package vapi

import (
	"fmt"
	"strings"
)

// UpstreamError reports a rejected or failed provider request.
// Body holds the provider's raw error payload for pass-through to the
// call-initiating caller; it is never surfaced to webhook senders.
type UpstreamError struct {
	StatusCode int
	Body       string
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "vapi upstream error")
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
