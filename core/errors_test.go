package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinelByKind(t *testing.T) {
	err := NewError(KindRouting, "agent.router", "no specialist matched \"x\"", nil)
	wrapped := fmt.Errorf("run failed: %w", err)

	assert.ErrorIs(t, wrapped, ErrRouting)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, KindRouting, KindOf(wrapped))
	assert.Equal(t, `agent.router: routing error: no specialist matched "x"`, err.Error())
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(KindToolExecution, "tool.calc", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrToolExecution)
}

func TestKindOf_ContextErrors(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindProviderTimeout, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindInternal, KindOf(errors.New("other")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrProviderTimeout))
	assert.True(t, IsTransient(NewError(KindProviderUnavailable, "", "", nil)))
	assert.False(t, IsTransient(ErrRouting))
	assert.False(t, IsTransient(nil))
}

func TestFailure_CancellationStatus(t *testing.T) {
	r := Failure("partial", Cancelled("agent.loop", context.Canceled))
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, KindCancelled, r.Kind())
	assert.False(t, r.OK())

	r = Failure("", ErrParse)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "failed", r.Status.String())
}
