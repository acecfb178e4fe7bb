package e

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap("Engine.Search", ErrInvalidArgument)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "Engine.Search: invalid argument", err.Error())
}

func TestWrapfFormatsContext(t *testing.T) {
	err := Wrapf(ErrIndexCorrupt, "index size %d, id map %d", 3, 2)

	assert.True(t, errors.Is(err, ErrIndexCorrupt))
	assert.Contains(t, err.Error(), "index size 3, id map 2")
}
