package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"syscall"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/config"
	"github.com/brettbedarf/ussfs/explorer"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/brettbedarf/ussfs/mount"
	"github.com/brettbedarf/ussfs/profile"
	"github.com/brettbedarf/ussfs/tree"
	"github.com/brettbedarf/ussfs/workspace"
	"github.com/brettbedarf/ussfs/zosmf"
)

// usageError marks bad command line arguments
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// app wires the explorer stack for one invocation
type app struct {
	cfg      *config.Config
	profile  string
	ws       *workspace.Workspace
	explorer *explorer.Explorer
	out      io.Writer
}

func newApp(cfg *config.Config, profileName string, out io.Writer) (*app, error) {
	ws, err := workspace.Open(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	profiles := profile.NewManager(cfg.ProfileDir, cfg.ProfileType)
	client := zosmf.NewClient()
	t := tree.New(profiles, zosmf.NewSessionFactory(cfg), client)

	return &app{
		cfg:      cfg,
		profile:  profileName,
		ws:       ws,
		explorer: explorer.New(t, profiles, client, ws),
		out:      out,
	}, nil
}

func (a *app) close() {
	_ = a.ws.Close()
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "profiles":
		return a.profiles()
	case "ls":
		return a.ls(ctx, args)
	case "tree":
		return a.tree(ctx, args)
	case "cat":
		return a.cat(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "put":
		return a.put(ctx, args)
	case "mkdir":
		return a.create(ctx, args, ussfs.DirEntryType)
	case "touch":
		return a.create(ctx, args, ussfs.FileEntryType)
	case "rm":
		return a.rm(ctx, args)
	case "mount":
		return a.mount(ctx, args)
	default:
		return usagef("unknown command %q", cmd)
	}
}

// session adds the selected profile and points its session at dir
func (a *app) session(ctx context.Context, dir string) (*tree.Node, error) {
	if err := a.explorer.AddSession(ctx, a.profile); err != nil {
		return nil, err
	}
	var root *tree.Node
	if a.profile != "" {
		root = a.explorer.Tree().FindSession(a.profile)
	} else if roots := a.explorer.Tree().Roots(); len(roots) > 0 {
		root = roots[0]
	}
	if root == nil {
		return nil, tree.ErrNoSession
	}
	if err := a.explorer.EnterPath(root, dir); err != nil {
		return nil, err
	}
	return root, nil
}

// resolve finds the node for a remote path by listing its parent directory
func (a *app) resolve(ctx context.Context, remotePath string) (*tree.Node, error) {
	remotePath = path.Clean(remotePath)
	if remotePath == "/" {
		return nil, usagef("%s is not a file or directory entry", remotePath)
	}
	root, err := a.session(ctx, path.Dir(remotePath))
	if err != nil {
		return nil, err
	}
	children, err := root.ListChildren(ctx)
	if err != nil {
		return nil, err
	}
	name := path.Base(remotePath)
	for _, c := range children {
		if c.Label() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", remotePath, zosmf.ErrNotFound)
}

func (a *app) profiles() error {
	names, err := a.explorer.AvailableProfiles()
	if errors.Is(err, explorer.ErrNoProfiles) {
		fmt.Fprintf(a.out, "no profiles found in %s\n", a.cfg.ProfileDir)
		return nil
	}
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

func (a *app) ls(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("expected <path>")
	}
	root, err := a.session(ctx, args[0])
	if err != nil {
		return err
	}
	children, err := root.ListChildren(ctx)
	if err != nil {
		return err
	}
	for _, c := range children {
		e := c.Entry()
		fmt.Fprintf(a.out, "%s %-8s %-8s %10d %s %s\n", e.Mode, e.User, e.Group, e.Size, e.Mtime, c.Label())
	}
	return nil
}

func (a *app) tree(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("tree", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	depth := flags.Int("depth", 2, "Maximum depth to descend")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if flags.NArg() != 1 {
		return usagef("expected <path>")
	}

	root, err := a.session(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, root.FullPath())
	return a.printTree(ctx, root, "", *depth)
}

func (a *app) printTree(ctx context.Context, n *tree.Node, indent string, depth int) error {
	if depth <= 0 {
		return nil
	}
	children, err := n.ListChildren(ctx)
	if err != nil {
		return err
	}
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		label := c.Label()
		if c.Kind() == tree.KindDirectory {
			label += "/"
		}
		fmt.Fprintln(a.out, indent+branch+label)
		if err := a.printTree(ctx, c, indent+next, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) cat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("expected <path>")
	}
	node, err := a.resolveFile(ctx, args[0])
	if err != nil {
		return err
	}
	local, err := a.explorer.Open(ctx, node)
	if err != nil {
		return err
	}
	return copyFile(a.out, local)
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("expected <path> <local>")
	}
	node, err := a.resolveFile(ctx, args[0])
	if err != nil {
		return err
	}
	local, err := a.explorer.RefreshFile(ctx, node)
	if err != nil {
		return err
	}

	dst, err := os.Create(args[1])
	if err != nil {
		return err
	}
	if err := copyFile(dst, local); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (a *app) put(ctx context.Context, args []string) error {
	logger := util.GetLogger("put")
	if len(args) != 2 {
		return usagef("expected <local> <path>")
	}
	src, remotePath := args[0], path.Clean(args[1])

	node, err := a.resolve(ctx, remotePath)
	if errors.Is(err, zosmf.ErrNotFound) {
		logger.Debug().Str("path", remotePath).Msg("Creating remote file")
		if err := a.createAt(ctx, remotePath, ussfs.FileEntryType); err != nil {
			return err
		}
		node, err = a.resolve(ctx, remotePath)
	}
	if err != nil {
		return err
	}
	if node.Kind() != tree.KindFile {
		return fmt.Errorf("%s is a directory", remotePath)
	}

	if _, err := a.ws.Write(node.SessionKey(), node.FullPath(), func(w io.Writer) error {
		return copyFile(w, src)
	}); err != nil {
		return err
	}
	return a.explorer.Save(ctx, node)
}

func (a *app) create(ctx context.Context, args []string, typ ussfs.EntryType) error {
	if len(args) != 1 {
		return usagef("expected <path>")
	}
	return a.createAt(ctx, path.Clean(args[0]), typ)
}

func (a *app) createAt(ctx context.Context, remotePath string, typ ussfs.EntryType) error {
	root, err := a.session(ctx, path.Dir(remotePath))
	if err != nil {
		return err
	}
	return a.explorer.Create(ctx, root, path.Base(remotePath), typ)
}

func (a *app) rm(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	recursive := flags.Bool("r", false, "Delete directories and their contents")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if flags.NArg() != 1 {
		return usagef("expected <path>")
	}

	node, err := a.resolve(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	if node.Kind() == tree.KindDirectory && !*recursive {
		return fmt.Errorf("%s is a directory; use rm -r", node.FullPath())
	}
	return a.explorer.Delete(ctx, node)
}

func (a *app) mount(ctx context.Context, args []string) error {
	logger := util.GetLogger("mount")
	flags := flag.NewFlagSet("mount", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	umount := flags.Bool("u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if flags.NArg() != 2 {
		return usagef("expected <path> <mnt>")
	}
	remotePath, mnt := flags.Arg(0), flags.Arg(1)

	if *umount {
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	if _, err := a.session(ctx, remotePath); err != nil {
		return err
	}

	srv := mount.New(a.cfg, a.explorer)
	if err := srv.Serve(mnt); err != nil {
		return fmt.Errorf("failed to mount filesystem: %w", err)
	}
	logger.Info().Str("mountpoint", mnt).Str("path", remotePath).Msg("Filesystem mounted successfully")

	// SIGHUP re-lists every directory; anything else ends the mount
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for waiting := true; waiting; {
		select {
		case <-hup:
			logger.Info().Msg("Received SIGHUP, refreshing all sessions")
			a.explorer.RefreshAll()
		case <-ctx.Done():
			waiting = false
		}
	}
	logger.Info().Msg("Received signal, unmounting filesystem")

	if err := srv.Unmount(); err != nil {
		return fmt.Errorf("failed to unmount filesystem: %w", err)
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

// resolveFile resolves a remote path that must be a file
func (a *app) resolveFile(ctx context.Context, remotePath string) (*tree.Node, error) {
	node, err := a.resolve(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	if node.Kind() != tree.KindFile {
		return nil, fmt.Errorf("%s is a directory", node.FullPath())
	}
	return node, nil
}

func copyFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

