package retry

import "github.com/rohmanhakim/scoutly/pkg/failure"

// Result is what Retry returns: the value on success, the terminal error on
// failure, and how many attempts were made either way.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult builds a Result for a call that succeeded on the given
// attempt.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

func (r Result[T]) Attempts() int {
	return r.attempts
}

// IsSuccess reports whether the call succeeded, i.e. Err is nil.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure reports whether the call ended with an error.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}
