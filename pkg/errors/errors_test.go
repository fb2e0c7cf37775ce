package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil in, nil out", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("preserves the cause through the chain", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "backend unreachable")

		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("fmt wrapping does not hide the code", func(t *testing.T) {
		err := fmt.Errorf("check in: %w", New(CodeQuotaExceeded, "guest limit reached"))
		assert.True(t, HasCode(err, CodeQuotaExceeded))
	})
}

func TestHasCode(t *testing.T) {
	assert.False(t, HasCode(nil, CodeInternal))
	assert.False(t, HasCode(stderrors.New("plain"), CodeInternal))
	assert.True(t, HasCode(New(CodeNotFound, "missing"), CodeNotFound))
	assert.False(t, HasCode(New(CodeNotFound, "missing"), CodeConflict))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOutOfRange, CodeOf(New(CodeOutOfRange, "too far")))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("untyped")), "untyped errors default to internal")

	// The outermost code wins when domain errors nest.
	inner := New(CodeNotFound, "missing")
	outer := Wrap(inner, CodeInternal, "lookup failed")
	assert.Equal(t, CodeInternal, CodeOf(outer))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "guest limit reached", MessageOf(New(CodeQuotaExceeded, "guest limit reached")))
	assert.Equal(t, "internal error", MessageOf(stderrors.New("sql: connection reset")),
		"untyped errors must not leak internals")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "not_found: record not found", New(CodeNotFound, "record not found").Error())

	wrapped := Wrap(stderrors.New("boom"), CodeInternal, "save failed")
	assert.Equal(t, "internal: save failed: boom", wrapped.Error())
}
