// Package timebox bounds a blocking operation by a fixed duration.
//
// Do returns once the operation finishes or the timeout elapses, whichever
// comes first. The operation receives a context that is cancelled on
// timeout, but Do does not wait for it to notice: an operation that ignores
// its context still cannot hold the caller past the deadline.
package timebox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when the operation did not finish in time.
	ErrTimeout = errors.New("operation timed out")
	// ErrPanic is returned when the operation panicked.
	ErrPanic = errors.New("operation panicked")
)

type result[T any] struct {
	val T
	err error
}

// Do runs fn and waits at most timeout for it. A timeout <= 0 disables the
// bound and fn runs on the caller's goroutine.
func Do[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a late fn never blocks after Do has returned.
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result[T]{val: zero, err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		val, err := fn(ctx)
		done <- result[T]{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := Do(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
