package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports malformed or out-of-range input. It is detected
// before any simulation step runs and names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a structurally invalid configuration, raised by
// the component that needs the missing or inconsistent data.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Component, e.Reason)
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// ComputationError is an internal invariant violation. It aborts the run and
// carries the input context needed to reproduce it.
type ComputationError struct {
	Operation string
	Reason    string
	Context   map[string]string
}

func (e *ComputationError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("computation error in %s: %s", e.Operation, e.Reason)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Context[k])
	}
	return fmt.Sprintf("computation error in %s: %s [%s]", e.Operation, e.Reason, strings.Join(parts, " "))
}

// NewComputationError creates a ComputationError with the given context.
func NewComputationError(operation, reason string, context map[string]string) *ComputationError {
	return &ComputationError{Operation: operation, Reason: reason, Context: context}
}
