package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("CLASS_FULL", "Class is at full capacity", http.StatusBadRequest)
	require.Equal(t, "Class is at full capacity", err.Error())

	withInternal := err.WithInternal(errors.New("roster size 30"))
	require.Equal(t, "Class is at full capacity: roster size 30", withInternal.Error())
	// The original error must stay untouched.
	require.Nil(t, err.Internal)
}

func TestFromErrorPreservesAppError(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", ErrConflict)

	appErr := FromError(wrapped)
	require.Equal(t, ErrConflict.Code, appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.StatusCode)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("connection refused"))
	require.Equal(t, ErrInternalServer.Code, appErr.Code)
	require.EqualError(t, appErr.Internal, "connection refused")

	require.Nil(t, FromError(nil))
}

func TestUnwrapSupportsErrorsIs(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, "create student")
	require.True(t, errors.Is(err, cause))
}

func TestConstructorsCarryStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, NewBadRequest("capacity too small").StatusCode)
	require.Equal(t, http.StatusNotFound, NewNotFound("no class found with that ID").StatusCode)
	require.Equal(t, http.StatusForbidden, NewForbidden("not the recipient").StatusCode)
	require.Equal(t, http.StatusConflict, NewConflict("already responded").StatusCode)
}
