package cmd

import "errors"

// Exit codes for the recurl CLI
const (
	// ExitSuccess indicates the command completed and everything passed
	ExitSuccess = 0

	// ExitRequestFailure indicates a request failed or an expectation or
	// threshold did not hold
	ExitRequestFailure = 1

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 2

	// ExitFileError indicates a collection or input file problem
	ExitFileError = 3

	// ExitInternalError indicates an unexpected internal fault
	ExitInternalError = 4
)

// exitError couples an error with the process exit code it should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func requestError(err error) error {
	return &exitError{code: ExitRequestFailure, err: err}
}

func fileError(err error) error {
	return &exitError{code: ExitFileError, err: err}
}

func internalError(err error) error {
	return &exitError{code: ExitInternalError, err: err}
}

// exitCodeFor maps an error escaping rootCmd.Execute to an exit code.
// Errors without an explicit code come from cobra's flag and argument
// parsing, which makes them usage errors.
func exitCodeFor(err error) int {
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ExitUsageError
}
