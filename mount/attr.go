package mount

import (
	"os"
	"syscall"
	"time"

	"github.com/brettbedarf/ussfs"
	"github.com/cespare/xxhash/v2"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// remote listing times carry no zone
const mtimeLayout = "2006-01-02T15:04:05"

const (
	defaultDirPerm  = 0o555
	defaultFilePerm = 0o444
	writeBits       = 0o222
)

// newDefaultAttr returns attributes owned by the mounting user with the
// current time
func newDefaultAttr() fuse.Attr {
	now := time.Now()
	return fuse.Attr{
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(now.Unix()),
		Mtime:     uint64(now.Unix()),
		Ctime:     uint64(now.Unix()),
		Atimensec: uint32(now.Nanosecond()),
		Mtimensec: uint32(now.Nanosecond()),
		Ctimensec: uint32(now.Nanosecond()),
		Blksize:   4096,
	}
}

// entryAttr converts a listing entry into read-only attributes
func entryAttr(e ussfs.FileEntry, isDir bool) fuse.Attr {
	attr := newDefaultAttr()
	attr.Mode = fileType(isDir) | (parsePerm(e.Mode, isDir) &^ writeBits)
	if !isDir {
		attr.Size = uint64(max(e.Size, 0))
		attr.Blocks = (attr.Size + 511) / 512
	}
	if t, err := time.ParseInLocation(mtimeLayout, e.Mtime, time.Local); err == nil {
		attr.Mtime = uint64(t.Unix())
		attr.Mtimensec = 0
		attr.Ctime = attr.Mtime
		attr.Ctimensec = 0
	}
	return attr
}

func fileType(isDir bool) uint32 {
	if isDir {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// parsePerm reads the nine permission characters of an "ls -l" style mode
// string such as "drwxr-xr-x". Malformed strings fall back to a default.
func parsePerm(mode string, isDir bool) uint32 {
	if len(mode) != 10 {
		if isDir {
			return defaultDirPerm
		}
		return defaultFilePerm
	}

	var perm uint32
	for i, c := range mode[1:] {
		if c != '-' {
			perm |= 1 << (8 - i)
		}
	}
	return perm
}

// stableIno derives a stable inode number from a session and remote path so
// repeated lookups of the same entry agree
func stableIno(sessionKey, path string) uint64 {
	ino := xxhash.Sum64String(sessionKey + "\x00" + path)
	if ino <= fuse.FUSE_ROOT_ID {
		ino += fuse.FUSE_ROOT_ID + 1
	}
	return ino
}
