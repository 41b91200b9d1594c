package provider

import (
	"errors"
	"fmt"
)

// ErrUpstream matches any *UpstreamError via errors.Is.
var ErrUpstream = errors.New("upstream error")

// UpstreamError is returned when an upstream call fails, times out, or
// answers with a shape the adapter does not recognize.
type UpstreamError struct {
	Provider   Name
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Provider.DisplayName(), e.Message)
}

// Is allows comparison with the ErrUpstream sentinel.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(name Name, statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		Provider:   name,
		StatusCode: statusCode,
		Message:    message,
	}
}
