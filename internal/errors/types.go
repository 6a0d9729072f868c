// Package errors defines the structured error types of the asset pipeline.
//
// Configuration-time failures (cycles, unresolved names, package conflicts)
// carry the names involved so that bootstrap can log them with full context
// and skip only the affected set.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeContentBuild     = "ERR_CONTENT_BUILD"
	ErrCodePolicyFailed     = "ERR_POLICY_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeManifestInvalid  = "ERR_MANIFEST_INVALID"
	ErrCodeFileRead         = "ERR_FILE_READ"
	ErrCodeUnknownPolicy    = "ERR_UNKNOWN_POLICY"
	ErrCodeInvalidHeader    = "ERR_INVALID_HEADER"
	ErrCodeContentCacheInit = "ERR_CONTENT_CACHE_INIT"
)

// Sentinels matched with errors.Is by the typed errors below.
var (
	ErrCycle      = errors.New("dependency cycle")
	ErrUnresolved = errors.New("unresolved asset name")
	ErrConflict   = errors.New("asset name conflict")
)

// PipelineError is a structured error type with context.
type PipelineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *PipelineError) WithComponent(component string) *PipelineError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewBuildError creates a content build error.
func NewBuildError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CycleError reports a dependency cycle. Names lists the cycle in order and
// repeats the first name at the end.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Names, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// UnresolvedError reports a name that is neither a set, an alias nor a file.
type UnresolvedError struct {
	Name string
	// Referrer is the set or asset that referenced Name, if known.
	Referrer string
}

func (e *UnresolvedError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("cannot resolve asset %q referenced by %q", e.Name, e.Referrer)
	}
	return fmt.Sprintf("cannot resolve asset %q", e.Name)
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// ConflictError reports two packages contributing the same asset name with
// no precedence rule deciding between them.
type ConflictError struct {
	Name     string
	Packages []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("asset %q is contributed by %s with no override declared",
		e.Name, strings.Join(e.Packages, " and "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// IsConfigurationError reports whether err is one of the configuration-time
// failures that exclude a single set instead of stopping the process.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrCycle) || errors.Is(err, ErrUnresolved) || errors.Is(err, ErrConflict)
}
