package adapters

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports a missing or malformed configuration field before any
// provider call is made.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for '%s': %s", e.Field, e.Message)
}

// UnsupportedModelError reports a model identifier outside a provider's
// allow-list.
type UnsupportedModelError struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("[%s] unsupported model: %s", e.Provider, e.Model)
}

// ResponseFormatError reports a provider response that matched none of the
// known shapes. RawBody is kept for diagnostics.
type ResponseFormatError struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
	RawBody  []byte `json:"-"`
}

func (e *ResponseFormatError) Error() string {
	if len(e.RawBody) > 0 {
		return fmt.Sprintf("[%s] unrecognized response format: %s, body: %s", e.Provider, e.Message, e.RawBody)
	}
	return fmt.Sprintf("[%s] unrecognized response format: %s", e.Provider, e.Message)
}

// TaskFailedError reports an asynchronous task the provider marked as failed.
type TaskFailedError struct {
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason"`
}

func (e *TaskFailedError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("task failed: %s", e.Reason)
}

// TimeoutError reports polling that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration `json:"timeout"`
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling timed out after %s", e.Timeout)
}

// TransportError wraps a network or HTTP-layer failure.
type TransportError struct {
	Provider string `json:"provider,omitempty"`
	Op       string `json:"op"`
	Err      error  `json:"-"`
}

func (e *TransportError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError represents an error payload returned by a provider API
type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

func (e *APIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] API error %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %s: %s", e.Code, e.Message)
}

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsTaskFailed reports whether err is a provider-side task failure.
func IsTaskFailed(err error) bool {
	var e *TaskFailedError
	return errors.As(err, &e)
}

// IsResponseFormat reports whether err is an unrecognized-response failure.
func IsResponseFormat(err error) bool {
	var e *ResponseFormatError
	return errors.As(err, &e)
}
