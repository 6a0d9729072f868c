package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PipelineError
		expected string
	}{
		{
			name:     "code and message",
			err:      NewValidationError(ErrCodeInvalidPath, "bad path"),
			expected: "[ERR_INVALID_PATH] bad path",
		},
		{
			name: "with component and cause",
			err: NewBuildError(ErrCodeContentBuild, "combine failed", errors.New("disk")).
				WithComponent("content"),
			expected: "[ERR_CONTENT_BUILD] component:content combine failed: disk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPipelineError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewIOError(ErrCodeFileRead, "read", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, &PipelineError{Type: ErrorTypeIO, Code: ErrCodeFileRead}))
	assert.False(t, errors.Is(err, &PipelineError{Type: ErrorTypeIO, Code: ErrCodeContentBuild}))

	wrapped := fmt.Errorf("outer: %w", NewBuildError(ErrCodeContentBuild, "combine", cause))
	assert.True(t, IsRecoverable(wrapped))
	assert.False(t, IsRecoverable(err))
	assert.False(t, IsRecoverable(cause))
}

func TestTypedConfigurationErrors(t *testing.T) {
	cycle := &CycleError{Names: []string{"a.js", "b.js", "a.js"}}
	assert.Equal(t, "dependency cycle detected: a.js -> b.js -> a.js", cycle.Error())
	assert.ErrorIs(t, cycle, ErrCycle)

	unresolved := &UnresolvedError{Name: "x.js", Referrer: "setA"}
	assert.Contains(t, unresolved.Error(), `"x.js"`)
	assert.ErrorIs(t, unresolved, ErrUnresolved)

	conflict := &ConflictError{Name: "site.css", Packages: []string{"pak1", "pak2"}}
	assert.Equal(t, `asset "site.css" is contributed by pak1 and pak2 with no override declared`, conflict.Error())

	for _, err := range []error{cycle, unresolved, conflict} {
		assert.True(t, IsConfigurationError(fmt.Errorf("wrap: %w", err)))
	}
	assert.False(t, IsConfigurationError(errors.New("other")))
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Err())

	ec.AddError(nil)
	ec.AddSetFailure("setA", nil)
	assert.False(t, ec.HasErrors())

	ec.AddSetFailure("setA", &CycleError{Names: []string{"a", "b", "a"}})
	ec.AddError(&ConflictError{Name: "x", Packages: []string{"p1", "p2"}})

	require.Len(t, ec.Errors(), 2)
	failures := ec.SetFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "setA", failures[0].Set)
	assert.ErrorIs(t, ec.Err(), ErrCycle)
	assert.ErrorIs(t, ec.Err(), ErrConflict)
}
