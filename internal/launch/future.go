package launch

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDeadlineExceeded is returned by tasks of a WithDeadline policy which did
// not finish in time.
var ErrDeadlineExceeded = errors.New("launch: deadline exceeded")

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// Future is the pending result of a task.
type Future[T any] struct {
	start   sync.Once
	run     func()
	noSteal bool

	settle sync.Once
	done   chan struct{}
	value  T
	err    error
}

// Start schedules fn on p and returns its Future. A nil policy runs fn
// inline. A panic in fn becomes a *PanicError.
func Start[T any](p Policy, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.run = func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				value, err = zero, &PanicError{Value: r}
			}
			f.complete(value, err)
		}()
		value, err = fn()
	}

	if d, ok := p.(deadlinePolicy); ok {
		f.noSteal = true
		timer := time.AfterFunc(d.timeout, func() {
			var zero T
			f.complete(zero, ErrDeadlineExceeded)
		})
		inner := f.run
		f.run = func() {
			defer timer.Stop()
			inner()
		}
	}

	Or(p).Schedule(f.begin)
	return f
}

// Ready returns a completed Future holding value.
func Ready[T any](value T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.start.Do(func() {})
	f.complete(value, nil)
	return f
}

// Failed returns a completed Future holding err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.start.Do(func() {})
	var zero T
	f.complete(zero, err)
	return f
}

// Then schedules fn on p to run with the outcome of f.
func Then[T, U any](p Policy, f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	return Start(p, func() (U, error) {
		return fn(f.Await())
	})
}

func (f *Future[T]) begin() { f.start.Do(f.run) }

func (f *Future[T]) complete(value T, err error) {
	f.settle.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Await blocks until the task finishes. A task which has not started yet
// runs on the calling goroutine.
func (f *Future[T]) Await() (T, error) {
	if !f.noSteal {
		f.begin()
	}
	<-f.done
	return f.value, f.err
}

// Done reports whether the Future has completed.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
