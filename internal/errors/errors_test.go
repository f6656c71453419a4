package errors

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = stderrors.New("undo move corrupted the working solution")

func TestWrap(t *testing.T) {
	err := Wrapf(errSentinel, "undo of %s", "change p1 -> c2").
		WithOperation("Step").
		WithComponent("localsearch")

	assert.True(t, Is(err, errSentinel))
	assert.Equal(t, errSentinel, Unwrap(err))
	assert.Equal(t, "undo of change p1 -> c2: operation=Step, component=localsearch: undo move corrupted the working solution", err.Error())
	assert.Equal(t, "undo move corrupted the working solution", errSentinel.Error(), "wrapping leaves the sentinel alone")

	var target *Error
	assert.True(t, As(err, &target))
	assert.NotEmpty(t, target.StackTrace())
	for _, frame := range target.StackTrace() {
		assert.False(t, strings.Contains(frame, "runtime/"), frame)
	}
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
}

func TestNew(t *testing.T) {
	assert.Equal(t, "graph has a cycle", New("graph has a cycle").Error())
	assert.Equal(t, "size 0 must be positive", Errorf("size %d must be positive", 0).Error())
}
