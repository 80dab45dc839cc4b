// Package workspace manages the local directory holding downloaded copies of
// remote files, laid out as {dir}/session-*/{profile}/{remote path}.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/gofrs/flock"
)

const (
	sessionPrefix = "session-"
	lockName      = ".lock"
	// Unlocked session directories younger than this may still be starting up
	startupGrace = time.Minute
)

// Workspace is a per-process local copy directory created under a shared
// parent. It is locked while open and purged when closed; only session
// directories whose owner is gone are purged on open.
type Workspace struct {
	dir  string
	lock *flock.Flock
}

// Open creates a new session directory under dir after purging session
// directories left behind by processes that no longer hold their lock.
// Nothing else in dir is touched.
func Open(dir string) (*Workspace, error) {
	logger := util.GetLogger("workspace.Open")
	if dir == "" {
		return nil, errors.New("workspace directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	purgeStale(dir)

	sessionDir, err := os.MkdirTemp(dir, sessionPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(sessionDir, lockName))
	locked, err := lock.TryLock()
	if err == nil && !locked {
		err = errors.New("lock held by another process")
	}
	if err != nil {
		os.RemoveAll(sessionDir)
		return nil, fmt.Errorf("failed to lock workspace %s: %w", sessionDir, err)
	}

	logger.Debug().Str("dir", sessionDir).Msg("Opened workspace")
	return &Workspace{dir: sessionDir, lock: lock}, nil
}

// purgeStale removes the session directories in parent whose lock is free
func purgeStale(parent string) {
	logger := util.GetLogger("workspace.purgeStale")
	entries, err := os.ReadDir(parent)
	if err != nil {
		logger.Warn().Err(err).Str("dir", parent).Msg("Unable to scan workspace")
		return
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), sessionPrefix) {
			continue
		}
		sessionDir := filepath.Join(parent, e.Name())
		lockPath := filepath.Join(sessionDir, lockName)
		if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
			info, err := e.Info()
			if err != nil || time.Since(info.ModTime()) < startupGrace {
				continue
			}
		}

		lock := flock.New(lockPath)
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		if err := os.RemoveAll(sessionDir); err != nil {
			logger.Warn().Err(err).Str("dir", sessionDir).Msg("Unable to purge stale workspace")
		} else {
			logger.Debug().Str("dir", sessionDir).Msg("Purged stale workspace")
		}
		lock.Close()
	}
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the local path for a remote file of a profile. The remote path
// can never resolve outside the profile's directory.
func (w *Workspace) Path(profile, remotePath string) string {
	clean := path.Clean("/" + remotePath)
	return filepath.Join(w.dir, profile, filepath.FromSlash(clean))
}

// Exists reports whether a local copy of the remote file is present
func (w *Workspace) Exists(profile, remotePath string) bool {
	info, err := os.Stat(w.Path(profile, remotePath))
	return err == nil && info.Mode().IsRegular()
}

// Write replaces the local copy of a remote file with whatever fill writes.
// The copy only appears once fill succeeds.
func (w *Workspace) Write(profile, remotePath string, fill func(io.Writer) error) (string, error) {
	dst := w.Path(profile, remotePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := fill(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Open opens the local copy of a remote file for reading
func (w *Workspace) Open(profile, remotePath string) (*os.File, error) {
	return os.Open(w.Path(profile, remotePath))
}

// Remove deletes the local copy of a remote file or directory, if any
func (w *Workspace) Remove(profile, remotePath string) error {
	return os.RemoveAll(w.Path(profile, remotePath))
}

// Close purges the workspace and releases its lock
func (w *Workspace) Close() error {
	logger := util.GetLogger("workspace.Close")
	defer w.lock.Close()
	if err := os.RemoveAll(w.dir); err != nil {
		logger.Error().Err(err).Str("dir", w.dir).Msg("Unable to delete workspace")
		return err
	}
	logger.Debug().Str("dir", w.dir).Msg("Purged workspace")
	return nil
}
