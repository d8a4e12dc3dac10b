package client

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (providerDegradedTotal).
const (
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey  ErrorCategory = "invalid_api_key"
	ErrorCategoryUpstreamStatus ErrorCategory = "upstream_status"
	ErrorCategoryMalformed      ErrorCategory = "malformed"
	ErrorCategoryProviderResult ErrorCategory = "provider_result"
	ErrorCategoryCircuitOpen    ErrorCategory = "circuit_open"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// CategorizeError maps a weather client error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrProviderResult):
		return ErrorCategoryProviderResult
	case errors.Is(err, ErrMalformedResponse):
		return ErrorCategoryMalformed
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstreamStatus
	case errors.Is(err, ErrInvalidAPIKey):
		return ErrorCategoryInvalidAPIKey
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
