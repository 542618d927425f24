package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad topic")))
	assert.Equal(t, KindConflict, KindOf(Conflict("sequence taken")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))

	// Wrapped errors still report their kind.
	wrapped := fmt.Errorf("outer: %w", NotFound("session not found"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("connection reset")

	assert.True(t, IsRetryable(Transient("network down", cause)))
	assert.True(t, IsRetryable(Adapter("tutor timed out", cause)))

	assert.False(t, IsRetryable(Validation("bad input")))
	assert.False(t, IsRetryable(Forbidden("not yours")))
	assert.False(t, IsRetryable(NotFound("gone")))
	assert.False(t, IsRetryable(Conflict("sequence taken")))
	assert.False(t, IsRetryable(InvalidState("session ended")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transient("could not reach the store", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "session ended", UserMessage(InvalidState("session ended")))
	assert.Equal(t, "something went wrong, please try again", UserMessage(errors.New("pq: deadlock detected")))
}
