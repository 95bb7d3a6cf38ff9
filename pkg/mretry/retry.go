// Package mretry implements the bounded-attempt retry loop used by
// InteractiveFlow's SQL generation step (spec §4.6.1: up to 3 attempts).
package mretry

import "context"

// Result is returned by an attempt function to tell the loop whether to
// retry, stop successfully, or stop with a terminal error.
type Result struct {
	Done  bool
	Err   error
	Final any
}

// Do calls attempt up to maxAttempts times, stopping as soon as attempt
// returns Result.Done=true or a non-nil Result.Err, or when the context is
// cancelled. attempt receives the 1-indexed attempt number.
func Do(ctx context.Context, maxAttempts int, attempt func(ctx context.Context, n int) Result) (any, error) {
	var last Result

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		last = attempt(ctx, n)

		if last.Err != nil {
			return nil, last.Err
		}

		if last.Done {
			return last.Final, nil
		}
	}

	return nil, ExhaustedError{Attempts: maxAttempts}
}

// ExhaustedError indicates every attempt was consumed without success.
type ExhaustedError struct {
	Attempts int
}

func (e ExhaustedError) Error() string {
	return "retry attempts exhausted"
}
