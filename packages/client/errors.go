package client

import (
	"errors"
	"fmt"
)

// ErrOutputLimit marks an attempt whose captured output exceeded
// MaxOutputBytes. The attempt counts as a failed execution and is retried
// like any other.
var ErrOutputLimit = errors.New("captured output exceeds limit")

// RetryError reports that every attempt of a call failed. Retries is the
// number of retries performed (attempts minus one) and Err the last
// underlying failure.
type RetryError struct {
	Retries int
	Err     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("request failed after %d retries: %v", e.Retries, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}
