package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	notFound := New(OrderNotFound, "order %s not found", "o-1")

	testCases := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{name: "direct", err: notFound, code: OrderNotFound, want: true},
		{name: "other code", err: notFound, code: Unauthorized, want: false},
		{name: "wrapped by tracer", err: TracerFromError(notFound), code: OrderNotFound, want: true},
		{name: "wrapped by fmt", err: fmt.Errorf("cancel: %w", notFound), code: OrderNotFound, want: true},
		{name: "base error", err: NewBaseError(NewErrorDetails("bad", string(ValidationError), "quantity")), code: ValidationError, want: true},
		{name: "plain error", err: stderrors.New("boom"), code: OrderNotFound, want: false},
		{name: "nil", err: nil, code: OrderNotFound, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasCode(tc.err, tc.code))
		})
	}
}

func TestErrorDetails_IsComparesCode(t *testing.T) {
	sentinel := New(InsufficientBalance, "insufficient balance")
	err := New(InsufficientBalance, "user %s short of %s", "u-1", "EUR").WithField("amount")

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, New(OrderNotFound, "x")))
	assert.Equal(t, "amount", err.Field)
	assert.Empty(t, sentinel.Field)
}

func TestTracer_KeepsStackAndCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Tracef(cause, "store order %s", "o-1")

	var tracer *ErrorTracer
	assert.True(t, stderrors.As(err, &tracer))
	assert.NotNil(t, tracer.StackTrace())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store order o-1: connection reset", err.Error())
	assert.Nil(t, Tracef(nil, "noop"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ConcurrencyConflict, CodeOf(fmt.Errorf("x: %w", New(ConcurrencyConflict, "lock timeout"))))
	assert.Equal(t, GeneralInternalServerError, CodeOf(stderrors.New("boom")))
}
