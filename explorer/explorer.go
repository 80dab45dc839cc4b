// Package explorer implements the user-facing operations on a session tree:
// adding sessions, entering paths and working with local copies of remote files.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/brettbedarf/ussfs/tree"
	"github.com/brettbedarf/ussfs/workspace"
	"github.com/brettbedarf/ussfs/zosmf"
)

type Explorer struct {
	tree     *tree.Tree
	profiles ussfs.ProfileLoader
	remote   ussfs.FileTransferer
	ws       *workspace.Workspace
}

func New(t *tree.Tree, profiles ussfs.ProfileLoader, remote ussfs.FileTransferer, ws *workspace.Workspace) *Explorer {
	return &Explorer{tree: t, profiles: profiles, remote: remote, ws: ws}
}

func (e *Explorer) Tree() *tree.Tree {
	return e.tree
}

// AvailableProfiles returns the profile names not already shown in the tree
func (e *Explorer) AvailableProfiles() ([]string, error) {
	names, err := e.profiles.AllProfileNames()
	if err != nil {
		return nil, err
	}
	if names == nil {
		return nil, ErrNoProfiles
	}

	shown := make(map[string]bool)
	for _, root := range e.tree.Roots() {
		shown[root.SessionKey()] = true
	}
	available := slices.DeleteFunc(slices.Clone(names), func(name string) bool {
		return shown[strings.TrimSpace(name)]
	})
	if len(available) == 0 {
		return nil, ErrNoMoreProfiles
	}
	return available, nil
}

// AddSession adds the named profile, or the default profile when name is empty
func (e *Explorer) AddSession(ctx context.Context, name string) error {
	return e.tree.AddSession(ctx, name)
}

// RemoveSession removes the session node belongs to
func (e *Explorer) RemoveSession(node *tree.Node) {
	e.tree.DeleteSession(node)
}

// EnterPath points a session at a remote path and refreshes the tree
func (e *Explorer) EnterPath(node *tree.Node, remotePath string) error {
	logger := util.GetLogger("Explorer.EnterPath")
	if err := node.EnterPath(remotePath); err != nil {
		return err
	}
	logger.Debug().Str("session", node.SessionKey()).Str("path", remotePath).Msg("Entered path")
	e.tree.Refresh()
	return nil
}

// RefreshAll invalidates every session and refreshes the tree
func (e *Explorer) RefreshAll() {
	e.tree.RefreshAll()
}

// Open returns the local copy of a file node, downloading it only when no
// local copy exists yet.
func (e *Explorer) Open(ctx context.Context, node *tree.Node) (string, error) {
	logger := util.GetLogger("Explorer.Open")
	if _, err := fileLabel("open", node); err != nil {
		return "", err
	}

	profile := node.SessionKey()
	if e.ws.Exists(profile, node.FullPath()) {
		logger.Trace().Str("path", node.FullPath()).Msg("Using local copy")
		return e.ws.Path(profile, node.FullPath()), nil
	}
	return e.download(ctx, node)
}

// RefreshFile replaces the local copy of a file node with the remote contents
func (e *Explorer) RefreshFile(ctx context.Context, node *tree.Node) (string, error) {
	label, err := fileLabel("refresh", node)
	if err != nil {
		return "", err
	}

	local, err := e.download(ctx, node)
	if errors.Is(err, zosmf.ErrNotFound) {
		return "", fmt.Errorf("unable to find file: %s was probably deleted: %w", label, err)
	}
	return local, err
}

// Save uploads the local copy of a file node
func (e *Explorer) Save(ctx context.Context, node *tree.Node) error {
	logger := util.GetLogger("Explorer.Save")
	if _, err := fileLabel("save", node); err != nil {
		return err
	}

	session, err := node.Session()
	if err != nil {
		return err
	}
	profile := node.SessionKey()
	if !e.ws.Exists(profile, node.FullPath()) {
		return ErrNoLocalCopy
	}

	f, err := e.ws.Open(profile, node.FullPath())
	if err != nil {
		return err
	}
	defer f.Close()

	if err := e.remote.Upload(ctx, session, node.FullPath(), f); err != nil {
		return fmt.Errorf("failed to save %s: %w", node.FullPath(), err)
	}
	logger.Info().Str("path", node.FullPath()).Msg("Saved")
	return nil
}

// Create makes a remote file or directory named name under parent, then
// invalidates parent.
func (e *Explorer) Create(ctx context.Context, parent *tree.Node, name string, typ ussfs.EntryType) error {
	logger := util.GetLogger("Explorer.Create")

	if parent.Kind() == tree.KindFile || parent.FullPath() == "" {
		return &InvalidOpenError{Op: "create", Label: parent.Label()}
	}
	if strings.TrimSpace(name) == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return ErrInvalidName
	}
	session, err := parent.Session()
	if err != nil {
		return err
	}

	remotePath := path.Join(parent.FullPath(), name)
	if err := e.remote.Create(ctx, session, remotePath, typ, ""); err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	logger.Info().Str("path", remotePath).Str("type", string(typ)).Msg("Created")

	parent.MarkDirty()
	e.tree.Refresh()
	return nil
}

// Delete removes the remote file or directory node, its local copy, and
// invalidates its parent.
func (e *Explorer) Delete(ctx context.Context, node *tree.Node) error {
	logger := util.GetLogger("Explorer.Delete")

	parent := node.Parent()
	if parent == nil || node.Kind() == tree.KindSession {
		return &InvalidOpenError{Op: "delete", Label: node.Label()}
	}
	session, err := node.Session()
	if err != nil {
		return err
	}

	recursive := node.Kind() == tree.KindDirectory
	if err := e.remote.Delete(ctx, session, node.FullPath(), recursive); err != nil {
		return fmt.Errorf("failed to delete %s: %w", node.FullPath(), err)
	}
	if err := e.ws.Remove(node.SessionKey(), node.FullPath()); err != nil {
		logger.Warn().Err(err).Str("path", node.FullPath()).Msg("Unable to remove local copy")
	}
	logger.Info().Str("path", node.FullPath()).Bool("recursive", recursive).Msg("Deleted")

	parent.MarkDirty()
	e.tree.Refresh()
	return nil
}

func (e *Explorer) download(ctx context.Context, node *tree.Node) (string, error) {
	logger := util.GetLogger("Explorer.download")

	session, err := node.Session()
	if err != nil {
		return "", err
	}

	logger.Debug().Str("session", node.SessionKey()).Str("path", node.FullPath()).Msg("Downloading")
	return e.ws.Write(node.SessionKey(), node.FullPath(), func(w io.Writer) error {
		return e.remote.Download(ctx, session, node.FullPath(), w)
	})
}

// fileLabel validates that node's parent is a directory or session and returns
// the label used to refer to the file in messages
func fileLabel(op string, node *tree.Node) (string, error) {
	parent := node.Parent()
	if parent == nil {
		return "", &InvalidOpenError{Op: op, Label: node.Label()}
	}
	switch parent.Kind() {
	case tree.KindDirectory:
		return node.FullPath(), nil
	case tree.KindSession:
		return node.Label(), nil
	default:
		return "", &InvalidOpenError{Op: op, Label: node.Label()}
	}
}
