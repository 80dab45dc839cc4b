package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when a node is neither a session root nor
	// attached to one
	ErrNoSession = errors.New("node is not attached to a session")

	// ErrNoLister is returned when a session root was created without a listing service
	ErrNoLister = errors.New("session has no listing service")

	// ErrEmptyPath is returned when entering an empty remote path
	ErrEmptyPath = errors.New("you must enter a path")

	// ErrNotSession is returned when a session-only operation targets another kind of node
	ErrNotSession = errors.New("operation requires a session node")
)

// InvalidNodeError indicates a listing was requested on a node without a label.
type InvalidNodeError struct {
	Label string
}

// Error is an implementation of the error interface.
func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("invalid node %q", e.Label)
}

// RemoteListError wraps a failure raised by the listing service.
type RemoteListError struct {
	Path string
	Err  error
}

// Error is an implementation of the error interface.
func (e *RemoteListError) Error() string {
	return fmt.Sprintf("retrieving response from list %q: %v", e.Path, e.Err)
}

func (e *RemoteListError) Unwrap() error {
	return e.Err
}

// UnsuccessfulResponseError indicates the listing service answered but flagged failure.
type UnsuccessfulResponseError struct {
	Path    string
	Message string
}

// Error is an implementation of the error interface.
func (e *UnsuccessfulResponseError) Error() string {
	msg := fmt.Sprintf("the response from listing %q was not successful", e.Path)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
