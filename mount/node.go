package mount

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/brettbedarf/ussfs/explorer"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/brettbedarf/ussfs/tree"
	"github.com/brettbedarf/ussfs/zosmf"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// rootNode lists the session roots of the tree
type rootNode struct {
	gofs.Inode
	explorer *explorer.Explorer
	directIO bool
	ttl      time.Duration // how long a directory listing is trusted
}

// dirNode is a session root or remote directory
type dirNode struct {
	gofs.Inode
	explorer *explorer.Explorer
	node     *tree.Node
	directIO bool
	ttl      time.Duration

	mu       sync.Mutex
	listedAt time.Time // zero until listed or after expiry
}

// fileNode is a remote file, read through its local copy
type fileNode struct {
	gofs.Inode
	explorer *explorer.Explorer
	node     *tree.Node
	directIO bool
}

var (
	_ gofs.NodeReaddirer = (*rootNode)(nil)
	_ gofs.NodeLookuper  = (*rootNode)(nil)
	_ gofs.NodeGetattrer = (*rootNode)(nil)

	_ gofs.NodeReaddirer = (*dirNode)(nil)
	_ gofs.NodeLookuper  = (*dirNode)(nil)
	_ gofs.NodeGetattrer = (*dirNode)(nil)

	_ gofs.NodeOpener    = (*fileNode)(nil)
	_ gofs.NodeGetattrer = (*fileNode)(nil)
)

func (r *rootNode) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Attr = newDefaultAttr()
	out.Mode = syscall.S_IFDIR | defaultDirPerm
	return gofs.OK
}

func (r *rootNode) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	roots := r.explorer.Tree().Roots()
	entries := make([]fuse.DirEntry, 0, len(roots))
	for _, root := range roots {
		entries = append(entries, fuse.DirEntry{
			Name: root.Label(),
			Mode: syscall.S_IFDIR,
			Ino:  stableIno(root.SessionKey(), ""),
		})
	}
	return gofs.NewListDirStream(entries), gofs.OK
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	root := r.explorer.Tree().FindSession(name)
	if root == nil {
		return nil, syscall.ENOENT
	}
	out.Attr = newDefaultAttr()
	out.Mode = syscall.S_IFDIR | defaultDirPerm
	child := &dirNode{explorer: r.explorer, node: root, directIO: r.directIO, ttl: r.ttl}
	ino := stableIno(root.SessionKey(), "")
	return r.NewInode(ctx, child, gofs.StableAttr{Mode: syscall.S_IFDIR, Ino: ino}), gofs.OK
}

func (d *dirNode) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if d.node.Kind() == tree.KindSession {
		out.Attr = newDefaultAttr()
		out.Mode = syscall.S_IFDIR | defaultDirPerm
		return gofs.OK
	}
	out.Attr = entryAttr(d.node.Entry(), true)
	return gofs.OK
}

// list returns the children, re-listing the remote directory once the last
// listing is older than ttl
func (d *dirNode) list(ctx context.Context) ([]*tree.Node, error) {
	d.mu.Lock()
	if !d.listedAt.IsZero() && time.Since(d.listedAt) >= d.ttl {
		d.node.MarkDirty()
		d.listedAt = time.Time{}
	}
	d.mu.Unlock()

	children, err := d.node.ListChildren(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.listedAt.IsZero() {
		d.listedAt = time.Now()
	}
	d.mu.Unlock()
	return children, nil
}

// expire forces the next list to hit the remote
func (d *dirNode) expire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.node.MarkDirty()
	d.listedAt = time.Time{}
}

func (d *dirNode) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	children, err := d.list(ctx)
	if err != nil {
		return nil, toErrno("Readdir", d.node, err)
	}

	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, fuse.DirEntry{
			Name: c.Label(),
			Mode: fileType(c.Kind() == tree.KindDirectory),
			Ino:  stableIno(c.SessionKey(), c.FullPath()),
		})
	}
	return gofs.NewListDirStream(entries), gofs.OK
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	children, err := d.list(ctx)
	if err != nil {
		return nil, toErrno("Lookup", d.node, err)
	}

	var found *tree.Node
	for _, c := range children {
		if c.Label() == name {
			found = c
			break
		}
	}
	if found == nil {
		return nil, syscall.ENOENT
	}

	isDir := found.Kind() == tree.KindDirectory
	out.Attr = entryAttr(found.Entry(), isDir)
	stable := gofs.StableAttr{Mode: fileType(isDir), Ino: stableIno(found.SessionKey(), found.FullPath())}

	var child gofs.InodeEmbedder
	if isDir {
		child = &dirNode{explorer: d.explorer, node: found, directIO: d.directIO, ttl: d.ttl}
	} else {
		child = &fileNode{explorer: d.explorer, node: found, directIO: d.directIO}
	}
	return d.NewInode(ctx, child, stable), gofs.OK
}

func (f *fileNode) Getattr(ctx context.Context, fh gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Attr = entryAttr(f.node.Entry(), false)
	if h, ok := fh.(*fileHandle); ok {
		if info, err := h.file.Stat(); err == nil {
			out.Size = uint64(info.Size())
		}
	}
	return gofs.OK
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	local, err := f.explorer.Open(ctx, f.node)
	if err != nil {
		return nil, 0, toErrno("Open", f.node, err)
	}
	file, err := os.Open(local)
	if err != nil {
		return nil, 0, toErrno("Open", f.node, err)
	}

	var fuseFlags uint32
	if f.directIO {
		fuseFlags |= fuse.FOPEN_DIRECT_IO
	}
	return &fileHandle{file: file}, fuseFlags, gofs.OK
}

// fileHandle reads an open local copy
type fileHandle struct {
	file *os.File
}

var (
	_ gofs.FileReader   = (*fileHandle)(nil)
	_ gofs.FileReleaser = (*fileHandle)(nil)
)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.file.ReadAt(dest, off)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), gofs.OK
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.file.Close(); err != nil {
		return syscall.EIO
	}
	return gofs.OK
}

// toErrno maps tree and remote failures onto errno values and logs them
func toErrno(op string, node *tree.Node, err error) syscall.Errno {
	logger := util.GetLogger("mount." + op)

	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		errno = syscall.EINTR
	case errors.Is(err, zosmf.ErrNotFound), errors.Is(err, os.ErrNotExist):
		errno = syscall.ENOENT
	default:
		var invalid *explorer.InvalidOpenError
		if errors.As(err, &invalid) {
			errno = syscall.EINVAL
		} else {
			errno = syscall.EIO
		}
	}

	logger.Debug().Err(err).Str("path", node.FullPath()).Str("errno", errno.Error()).Msg("Request failed")
	return errno
}
