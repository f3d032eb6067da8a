package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	err := NewReferenceNotFound("r1")

	assert.True(t, stderrors.Is(err, ErrReferenceNotFound))
	assert.False(t, stderrors.Is(err, ErrPermissions))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsPermission(err))
}

func TestSentinelMatchingThroughWrapping(t *testing.T) {
	inner := NewPermissions("r2", "write")
	wrapped := fmt.Errorf("opening document: %w", inner)

	assert.True(t, stderrors.Is(wrapped, ErrPermissions))
	assert.True(t, IsPermission(wrapped))
	assert.Equal(t, ErrorTypePermission, TypeOf(wrapped))
}

func TestNotFoundAndPermissionAreDistinct(t *testing.T) {
	// The UI shows a dedicated permission dialog, not a generic 404, so the
	// two classifications must never collapse into each other.
	notFound := NewReferenceNotFound("r1")
	denied := NewPermissions("r1", "read")

	assert.False(t, stderrors.Is(notFound, ErrPermissions))
	assert.False(t, stderrors.Is(denied, ErrReferenceNotFound))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("token expired")
	err := NewSessionInvalid(cause)

	require.True(t, stderrors.Is(err, cause))
	assert.True(t, IsSessionInvalid(err))
}

func TestWrapKeepsClassification(t *testing.T) {
	err := Wrap(NewNoMigrationDefined("A", "C"), "migrate")

	assert.True(t, IsNoMigrationDefined(err))
	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, "migrate", e.Operation)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "anything"))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUnavailable("backend down", nil)))
	assert.False(t, IsRetryable(NewPermissions("r1", "read")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestErrorMessageIncludesResource(t *testing.T) {
	err := NewReferenceNotFound("r9")
	assert.Contains(t, err.Error(), "r9")
	assert.Contains(t, err.Error(), "NOT_FOUND")
}
