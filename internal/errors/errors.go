package errors

import (
	"errors"
	"sync"
)

// SetFailure records why a set was excluded from warm-up.
type SetFailure struct {
	Set string
	Err error
}

func (f SetFailure) Error() string {
	return "set " + f.Set + ": " + f.Err.Error()
}

func (f SetFailure) Unwrap() error { return f.Err }

// ErrorCollector collects configuration-time failures during bootstrap so
// they can be reported together by the server diagnostics and the check
// command.
type ErrorCollector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]error, 0),
	}
}

// AddError adds an error to the collector; nil is ignored.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// AddSetFailure records a failed set.
func (ec *ErrorCollector) AddSetFailure(set string, err error) {
	if err == nil {
		return
	}
	ec.AddError(SetFailure{Set: set, Err: err})
}

// Errors returns a copy of all collected errors.
func (ec *ErrorCollector) Errors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]error, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// SetFailures returns only the failures attached to a set.
func (ec *ErrorCollector) SetFailures() []SetFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var failures []SetFailure
	for _, err := range ec.errors {
		var sf SetFailure
		if errors.As(err, &sf) {
			failures = append(failures, sf)
		}
	}
	return failures
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Err joins every collected error, or returns nil.
func (ec *ErrorCollector) Err() error {
	return errors.Join(ec.Errors()...)
}
