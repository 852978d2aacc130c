package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedChain(t *testing.T) {
	base := New(KindMalformedResponse, "Failed to generate poem. Please try again.")
	wrapped := fmt.Errorf("generate: %w", base)

	assert.Equal(t, KindMalformedResponse, KindOf(wrapped))
	assert.Equal(t, "Failed to generate poem. Please try again.", MessageOf(wrapped, "fallback"))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "fallback", MessageOf(err, "fallback"))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStorageUnavailable, "Saved poems are unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Saved poems are unavailable: connection refused", err.Error())
	assert.Equal(t, "STORAGE_UNAVAILABLE", err.Kind.String())
}
