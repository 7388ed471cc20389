package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Env runs work for one node on a single goroutine. Dispatch may be called from any goroutine,
// the dispatched functions only ever run on the node's loop.
type Env[T any] struct {
	DispatchChannel chan<- func(T) error
	Context         context.Context
	Cancel          context.CancelCauseFunc
	Log             *slog.Logger
}

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env[T]) Dispatch(fun func(T) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete
func (e *Env[T]) DispatchWait(fun func(T) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s T) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return err
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

func (e *Env[T]) ScheduleTask(fun func(T) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if e.Context.Err() != nil {
			return
		}
		e.Dispatch(fun)
	})
}
