package explorer

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/ussfs/tree"
)

var (
	// ErrEmptyPath is returned when entering an empty remote path
	ErrEmptyPath = tree.ErrEmptyPath

	// ErrNoProfiles is returned when no profiles are configured at all
	ErrNoProfiles = errors.New("no profiles available")

	// ErrNoMoreProfiles is returned when every profile is already in the tree
	ErrNoMoreProfiles = errors.New("no more profiles to add")

	// ErrNoLocalCopy is returned when saving a file that was never opened
	ErrNoLocalCopy = errors.New("no local copy to save")

	// ErrInvalidName is returned for names that can't be a single path component
	ErrInvalidName = errors.New("invalid file name")
)

// InvalidOpenError indicates a file operation on a node whose parent is
// neither a directory nor a session.
type InvalidOpenError struct {
	Op    string
	Label string
}

// Error is an implementation of the error interface.
func (e *InvalidOpenError) Error() string {
	return fmt.Sprintf("%s() called from invalid node %q", e.Op, e.Label)
}
