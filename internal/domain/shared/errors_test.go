package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	e := NewDomainError("analysis", "Aggregate", ErrValidation, "empty class")
	assert.Equal(t, "analysis.Aggregate: empty class", e.Error())

	cause := errors.New("division by zero")
	wrapped := WrapError("analysis", "Aggregate", ErrValidation, "empty class", cause)
	assert.Equal(t, "analysis.Aggregate: empty class: division by zero", wrapped.Error())
}

func TestDomainError_IsMatchesCategory(t *testing.T) {
	e := WrapError("roster", "Request", ErrServiceUnavailable, "fetch failed", errors.New("connection refused"))

	assert.True(t, errors.Is(e, ErrServiceUnavailable))
	assert.False(t, errors.Is(e, ErrValidation))
}

func TestDomainError_IsMatchesCause(t *testing.T) {
	cause := errors.New("row scan failed")
	e := WrapError("student", "Find", ErrNotFound, "lookup failed", cause)

	assert.True(t, errors.Is(e, cause))
	assert.True(t, errors.Is(e, ErrNotFound))
}

func TestDomainError_SurvivesFmtWrapping(t *testing.T) {
	e := fmt.Errorf("query handler: %w", ErrInvalidStudentCode)

	assert.True(t, IsValidation(e))
	assert.False(t, IsNotFound(e))
}

func TestWellKnownInstances(t *testing.T) {
	require.True(t, IsValidation(ErrInvalidStudentCode))
	require.True(t, errors.Is(ErrRosterUnavailable, ErrServiceUnavailable))
}
