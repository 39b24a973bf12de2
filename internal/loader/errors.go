package loader

import (
	"errors"
	"fmt"

	"github.com/thand-io/azurerm/internal/azure"
)

var (
	ErrUnknownFunction = errors.New("function is not available")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvocationError means the function could not be called as requested.
type InvocationError struct {
	Function string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Function, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invalid wraps a decoding or validation failure of keyword arguments.
func Invalid(function string, err error) error {
	return &InvocationError{
		Function: function,
		Err:      fmt.Errorf("%w: %v", ErrInvalidArgument, err),
	}
}

// IsFatal reports whether err must propagate to the caller instead of being
// folded into an error mapping.
func IsFatal(err error) bool {
	var invocationErr *InvocationError
	if errors.As(err, &invocationErr) {
		return true
	}
	var envErr *azure.EnvironmentError
	if errors.As(err, &envErr) {
		return true
	}
	if errors.Is(err, azure.ErrSubscriptionRequired) {
		return true
	}
	return azure.IsCredentialError(err)
}

// SoftFail logs a provider failure and converts it into an error mapping.
func SoftFail(family string, err error, level string) map[string]any {
	azure.LogCloudError(family, err, level)
	return map[string]any{
		"error": azure.ErrorMessage(err),
	}
}

// IsErrorResult reports whether a returned value is an error mapping.
func IsErrorResult(result any) (string, bool) {
	m, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}
