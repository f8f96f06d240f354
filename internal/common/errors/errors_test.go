package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeUnknownEventType, http.StatusBadRequest},
		{ErrCodeAuthRequired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeDeliveryFailed, http.StatusInternalServerError},
		{ErrCodeQueryExecutionFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), string(tt.code))
	}
}

func TestConstructors(t *testing.T) {
	err := NewUnknownEventTypeError("member-of-the-month")
	assert.Equal(t, ErrCodeUnknownEventType, err.Code)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "UNKNOWN_EVENT_TYPE")

	delivery := NewDeliveryFailedError(fmt.Errorf("MessageRejected"))
	assert.True(t, delivery.Retryable)
	assert.Contains(t, delivery.Details, "MessageRejected")
}
