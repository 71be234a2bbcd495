package services

import (
	"context"
	"time"
)

// firstMatch runs strategies in order and returns the first result a strategy
// accepts. Later strategies are not tried once one matches.
func firstMatch[In, Out any](in In, strategies ...func(In) (Out, bool)) (Out, bool) {
	for _, strategy := range strategies {
		if out, ok := strategy(in); ok {
			return out, true
		}
	}
	var zero Out
	return zero, false
}

// attempt is one fallible strategy in a firstSuccess chain
type attempt[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// firstSuccess runs attempts in order until one succeeds, waiting a flat
// backoff between failures. It returns the last error when every attempt
// fails, together with the number of attempts made.
func firstSuccess[T any](ctx context.Context, backoff time.Duration, attempts []attempt[T], onFailure func(name string, err error)) (T, int, error) {
	var zero T
	var lastErr error

	for i, a := range attempts {
		if i > 0 && backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, i, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := a.run(ctx)
		if err == nil {
			return result, i + 1, nil
		}

		lastErr = err
		if onFailure != nil {
			onFailure(a.name, err)
		}

		if ctx.Err() != nil {
			return zero, i + 1, lastErr
		}
	}

	return zero, len(attempts), lastErr
}
