package mediago

import (
	"fmt"

	"github.com/coffee-tm/mediago/adapters"
)

// Error taxonomy. The concrete types live in the adapters package so
// provider code can return them; they are aliased here so callers match
// them with errors.As against a single package.
type (
	// ConfigError reports a missing or malformed configuration field.
	ConfigError = adapters.ConfigError
	// UnsupportedModelError reports a model outside a provider's allow-list.
	UnsupportedModelError = adapters.UnsupportedModelError
	// ResponseFormatError reports an unrecognized provider response shape.
	ResponseFormatError = adapters.ResponseFormatError
	// TaskFailedError reports a provider-side asynchronous task failure.
	TaskFailedError = adapters.TaskFailedError
	// TimeoutError reports polling that exceeded its deadline.
	TimeoutError = adapters.TimeoutError
	// TransportError wraps a network or HTTP-layer failure.
	TransportError = adapters.TransportError
	// APIError represents an error payload returned by a provider API.
	APIError = adapters.APIError
)

// Predicate helpers re-exported for callers.
var (
	IsTimeout        = adapters.IsTimeout
	IsTaskFailed     = adapters.IsTaskFailed
	IsResponseFormat = adapters.IsResponseFormat
)

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
