// Package mount exposes a session tree as a read-only FUSE filesystem: one
// directory per session, holding the session's entered path.
package mount

import (
	"github.com/brettbedarf/ussfs/config"
	"github.com/brettbedarf/ussfs/explorer"
	"github.com/brettbedarf/ussfs/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server serves an explorer's tree over FUSE
type Server struct {
	cfg         *config.Config
	explorer    *explorer.Explorer
	root        *rootNode
	server      *fuse.Server
	unsubscribe func()
}

// New creates a Server for the explorer's tree given your config.
func New(cfg *config.Config, ex *explorer.Explorer) *Server {
	return &Server{
		cfg:      cfg,
		explorer: ex,
		root: &rootNode{
			explorer: ex,
			directIO: cfg.DirectIO,
			ttl:      cfg.EntryTimeoutDuration(),
		},
	}
}

// Root returns the filesystem root
func (s *Server) Root() gofs.InodeEmbedder {
	return s.root
}

// Options returns the go-fuse options the filesystem is mounted with
func (s *Server) Options() *gofs.Options {
	opts := s.cfg.MountOptions
	attrTimeout := s.cfg.AttrTimeoutDuration()
	entryTimeout := s.cfg.EntryTimeoutDuration()
	return &gofs.Options{
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug || s.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	}
}

// Serve mounts and serves the filesystem at the given mountPoint.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("mount.Serve")

	srv, err := gofs.Mount(mountPoint, s.root, s.Options())
	if err != nil {
		return err
	}
	s.server = srv

	s.unsubscribe = s.explorer.Tree().OnDidChange(func() {
		logger.Trace().Str("mountpoint", mountPoint).Msg("Tree changed; invalidating kernel cache")
		// Listeners may run inside a FUSE request, where notifying would deadlock
		go invalidate(s.root.EmbeddedInode())
	})
	return nil
}

// invalidate expires every directory below inode and drops the kernel's
// cached entries and contents for them
func invalidate(inode *gofs.Inode) {
	for name, child := range inode.Children() {
		if d, ok := child.Operations().(*dirNode); ok {
			d.expire()
		}
		invalidate(child)
		inode.NotifyEntry(name)
	}
	inode.NotifyContent(0, 0)
}

func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}

