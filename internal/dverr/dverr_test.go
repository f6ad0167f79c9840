package dverr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	base := New(NotFound, "no such file")
	wrapped := Wrap(IO, "stat failed", base)
	assert.True(t, IsNotFound(base))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(New(IO, "disk full")))
	assert.False(t, IsNotFound(nil))
}

func TestOf(t *testing.T) {
	assert.Equal(t, AuthFailed, Of(New(AuthFailed, "no method succeeded")))
	assert.Equal(t, Unknown, Of(nil))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(IO, "msg", nil))
}
