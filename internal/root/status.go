package root

import "errors"

const (
	exitFailure  = 1
	exitNoVenues = 2
)

// statusError carries the process exit status for a fatal error and the one
// line printed to stderr. It must not implement cli.ExitCoder: cmd/main.go owns os.Exit.
type statusError struct {
	status  int
	message string
	err     error
}

func (e *statusError) Error() string { return e.message }

func (e *statusError) Unwrap() error { return e.err }

// ExitStatus maps an error returned by the root command to a process exit status.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return exitFailure
}

// Diagnostic is the one-line message to print for a fatal error.
func Diagnostic(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		return se.message
	}
	return "error: " + err.Error()
}
