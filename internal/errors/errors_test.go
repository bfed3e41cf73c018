package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(ParseError, "read", "/p/a.jpg", nil))
}

func TestKindOfAndIs(t *testing.T) {
	inner := Wrap(BackendUnusable, "generate", "", stderrors.New("401"))
	outer := Wrap(AllBackendsExhausted, "generate", "", &ExhaustedError{Attempted: 2, Last: inner})

	assert.Equal(t, AllBackendsExhausted, KindOf(outer))
	assert.True(t, Is(outer, AllBackendsExhausted))
	assert.True(t, Is(outer, BackendUnusable))
	assert.False(t, Is(outer, WriteError))
	assert.Equal(t, Internal, KindOf(stderrors.New("plain")))

	wrapped := fmt.Errorf("batch: %w", outer)
	assert.Equal(t, AllBackendsExhausted, KindOf(wrapped))
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{Attempted: 3, Last: stderrors.New("timeout")}
	assert.Equal(t, "all 3 backends unusable, last error: timeout", err.Error())
	assert.Equal(t, "all 0 backends unusable", (&ExhaustedError{}).Error())

	var target *ExhaustedError
	require.True(t, stderrors.As(Wrap(AllBackendsExhausted, "generate", "", err), &target))
	assert.Equal(t, 3, target.Attempted)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Wrap(NotFound, "read", "/p/a.jpg", stderrors.New("no such file")), "Path not found: /p/a.jpg"},
		{Wrap(UnsupportedFormat, "detect", "/p/a.txt", stderrors.New("x")), "Unsupported image format: /p/a.txt"},
		{Wrap(WriteError, "write", "/p/a.jpg", stderrors.New("disk full")), "Write failed: /p/a.jpg: disk full"},
		{stderrors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
