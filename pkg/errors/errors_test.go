package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableKinds(t *testing.T) {
	assert.True(t, NewRenderTimeout("u", nil).IsRetryable())
	assert.True(t, NewNavigationRefused("u", nil).IsRetryable())
	assert.True(t, NewSessionCrashed("u", nil).IsRetryable())
	assert.False(t, NewUnparseableMarkup("u", nil).IsRetryable())
	assert.False(t, NewValidation("price", "bad").IsRetryable())
}

func TestUnwrapAndKindOfThroughWrapping(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewNavigationRefused("https://example.com", cause)
	wrapped := fmt.Errorf("fetch: %w", err)

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindNavigationRefused, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestErrorString(t *testing.T) {
	err := NewRenderTimeout("https://example.com/x", stderrors.New("deadline"))
	assert.Contains(t, err.Error(), "render_timeout")
	assert.Contains(t, err.Error(), "https://example.com/x")
	assert.Contains(t, err.Error(), "deadline")
}
