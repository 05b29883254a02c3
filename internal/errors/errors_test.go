package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkedErrorsMatchSentinels(t *testing.T) {
	err := NewError("discount expired").
		WithHint("This discount code has expired").
		Mark(ErrRejected)

	assert.True(t, IsRejected(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, "This discount code has expired", Reason(err))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeRejected, CodeFromErr(err))
}

func TestWrappedMarkSurvives(t *testing.T) {
	base := WithError(fmt.Errorf("dial tcp: i/o timeout")).Mark(ErrTransient)
	wrapped := fmt.Errorf("validate: %w", base)

	assert.True(t, IsTransient(wrapped))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromErr(wrapped))
	assert.Empty(t, Reason(wrapped))
}

func TestUnmarkedErrorDefaultsToInternal(t *testing.T) {
	err := fmt.Errorf("boom")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeSystemError, CodeFromErr(err))
	assert.Empty(t, Reason(nil))
}

func TestInternalMessageStaysOutOfReason(t *testing.T) {
	err := WithError(fmt.Errorf("pq: connection refused")).
		WithMessage("lock discount").
		WithHint("Unable to validate the discount right now").
		WithReportableDetails(map[string]any{"code": "SAVE10"}).
		Mark(ErrTransient)

	assert.Contains(t, err.Error(), "lock discount")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Unable to validate the discount right now", Reason(err))
	assert.True(t, IsTransient(err))

	unmarked := NewError("unexpected state").WithHint("Something went wrong").Error()
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromErr(unmarked))
	assert.Equal(t, "Something went wrong", Reason(unmarked))
}
