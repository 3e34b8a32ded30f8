package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHttpError_MapsWorkflowErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("approve: %w", ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("approve: %w", ErrInvalidTransition), http.StatusConflict},
		{ErrPersistenceConflict, http.StatusConflict},
		{ErrSequenceExhausted, http.StatusServiceUnavailable},
		{ErrNotFound, http.StatusNotFound},
		{NewInvalidInputError("причина отказа обязательна"), http.StatusBadRequest},
		{ErrTokenExpired, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		httpErr, ok := ToHttpError(tc.err)
		require.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.code, httpErr.Code, tc.err.Error())
	}
}

func TestToHttpError_UnknownError(t *testing.T) {
	_, ok := ToHttpError(fmt.Errorf("connection reset"))
	assert.False(t, ok)
}

func TestHttpError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := NewHttpError(http.StatusInternalServerError, "ошибка", inner, nil)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "boom")
}
