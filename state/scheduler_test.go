package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	calls int
}

func newTestEnv(t *testing.T) (*Env[*counter], chan func(*counter) error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	dispatchChan := make(chan func(*counter) error, 10)
	env := &Env[*counter]{
		DispatchChannel: dispatchChan,
		Context:         ctx,
		Cancel: func(err error) {
			cancel()
		},
	}
	return env, dispatchChan, cancel
}

func TestDispatch(t *testing.T) {
	env, dispatchChan, cancel := newTestEnv(t)
	defer cancel()

	env.Dispatch(func(c *counter) error {
		c.calls++
		return nil
	})

	c := &counter{}
	select {
	case f := <-dispatchChan:
		require.NoError(t, f(c))
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timed out waiting for dispatched function")
	}
	assert.Equal(t, 1, c.calls)
}

func TestDispatchAfterCancelDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &Env[*counter]{
		DispatchChannel: make(chan func(*counter) error), // unbuffered, nobody reading
		Context:         ctx,
		Cancel:          func(error) { cancel() },
	}
	cancel()

	done := make(chan struct{})
	go func() {
		env.Dispatch(func(c *counter) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a cancelled env")
	}
}

func TestDispatchWait(t *testing.T) {
	env, dispatchChan, cancel := newTestEnv(t)
	defer cancel()

	c := &counter{calls: 41}
	go func() {
		f := <-dispatchChan
		_ = f(c)
	}()

	res, err := env.DispatchWait(func(c *counter) (any, error) {
		c.calls++
		return c.calls, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
}

func TestScheduleTask(t *testing.T) {
	env, dispatchChan, cancel := newTestEnv(t)
	defer cancel()

	env.ScheduleTask(func(c *counter) error {
		c.calls++
		return nil
	}, 50*time.Millisecond)

	c := &counter{}
	select {
	case f := <-dispatchChan:
		require.NoError(t, f(c))
	case <-time.After(time.Second):
		t.Fatal("No task was scheduled")
	}
	assert.Equal(t, 1, c.calls)
}
