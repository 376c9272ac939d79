package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/service"
	"github.com/phrazzld/commandq/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{fmt.Errorf("%w: %q", queue.ErrUnknownQueue, "x"), http.StatusNotFound},
		{fmt.Errorf("submit: %w", service.ErrDuplicate), http.StatusConflict},
		{service.ErrUnknownKind, http.StatusBadRequest},
		{service.NewControllerError("submit", "engine stopped", service.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err), "%v", tt.err)
	}
}

func TestGetSafeErrorMessage_DoesNotLeak(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("insert into queue_commands failed: password=hunter2: %w", errors.New("boom"))
	msg := GetSafeErrorMessage(err)
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "hunter2")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("plain")))
}
