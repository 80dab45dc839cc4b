// Package ussfs contains core domain types and collaborator interfaces for browsing
// z/OS Unix System Services files through a lazily listed tree.
package ussfs

import (
	"context"
	"io"
)

// Session is an opaque handle to an authenticated connection to a remote system.
// It is passed through to the remote collaborators unexamined.
type Session interface {
	// ID uniquely identifies the session for the life of the process
	ID() string
}

// Lister lists a single remote directory
type Lister interface {
	// List returns the entries of the directory at path.
	// A transport-level failure is returned as an error; a request that reached the
	// remote system but failed is reported through ListResponse.Success
	List(ctx context.Context, s Session, path string) (*ListResponse, error)
}

// FileTransferer defines the remote file operations that act on a session + path pair.
type FileTransferer interface {
	// Download writes the remote file's contents to w
	Download(ctx context.Context, s Session, path string, w io.Writer) error

	// Upload replaces the remote file's contents with r
	Upload(ctx context.Context, s Session, path string, r io.Reader) error

	// Create makes a new remote file or directory with the given permission string
	// i.e. "rwxr-xr-x"
	Create(ctx context.Context, s Session, path string, typ EntryType, mode string) error

	// Delete removes the remote file or directory
	Delete(ctx context.Context, s Session, path string, recursive bool) error
}

// RemoteFiles is implemented by clients that can both list and transfer
type RemoteFiles interface {
	Lister
	FileTransferer
}

// ProfileLoader resolves persisted connection profiles
type ProfileLoader interface {
	// Load resolves a named profile, or the default one when opts.LoadDefault is set
	Load(ctx context.Context, opts LoadOptions) (*Profile, error)

	// AllProfileNames returns every known profile name. A nil slice means no
	// profiles are configured at all.
	AllProfileNames() ([]string, error)
}

// SessionFactory opens a [Session] from a resolved [Profile]
type SessionFactory interface {
	CreateSession(p *Profile) (Session, error)
}
