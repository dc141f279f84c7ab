package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryGivesUp(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

type revertError struct{}

func (revertError) Error() string          { return "execution reverted: Invalid token ID" }
func (revertError) ErrorData() interface{} { return "0x08c379a0" }

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		attempts++
		return revertError{}
	})
	assert.ErrorIs(t, err, revertError{})
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("execution reverted")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
