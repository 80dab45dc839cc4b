package zosmf

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the remote file or directory does not exist
	ErrNotFound = errors.New("remote file not found")

	// ErrUnsupportedSession is returned when a session was not created by this package
	ErrUnsupportedSession = errors.New("session is not a z/OSMF session")
)

// StatusError is a non-2xx response from the files API
type StatusError struct {
	Op         string
	Path       string
	StatusCode int
	Message    string
}

// Error is an implementation of the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %q failed with status %d", e.Op, e.Path, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is reports 404 responses as ErrNotFound
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
