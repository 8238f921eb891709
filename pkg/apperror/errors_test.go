package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New("WH_001", "Webhook not found", http.StatusNotFound)
	assert.Equal(t, "[WH_001] Webhook not found", err.Error())

	inner := errors.New("connection refused")
	wrapped := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, inner)
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.Equal(t, inner, errors.Unwrap(wrapped))
}

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrWebhookNotFound().HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrDeadLetterNotFound().HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidServiceToken().HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, Validation("url required").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrTooManyEvents(32).HTTPStatus)
	assert.Contains(t, ErrTooManyEvents(32).Message, "32")
	assert.Equal(t, http.StatusServiceUnavailable, ErrQueueError(errors.New("redis down")).HTTPStatus)
}

func TestErrorsAs(t *testing.T) {
	var appErr *AppError
	err := error(ErrWebhookNotFound())
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "WH_001", appErr.Code)
}
