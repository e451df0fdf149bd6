// Package backend defines the filesystem collaborator the dispatcher and
// the directory cursor engine operate through. Per spec.md §1, the backend
// (syscall wrappers: stat, open, read, write, unlink, rename, chmod,
// symlink, …) is out of scope for the core and is consumed as an external
// interface; this package names that interface and provides one concrete,
// local-disk implementation so the in-scope protocol machinery has a real
// collaborator to exercise end-to-end.
package backend

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ACCESS3 permission bits (RFC 1813 §3.3.4).
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)

// DirEntry is the subset of directory-entry information the core needs:
// enough to build a cookie, a file id, and a composed child path.
type DirEntry struct {
	Name string
}

// Dir is an open directory handle, returned by Opendir and walked with
// Readdir until it returns (nil, io.EOF) or a non-nil error.
type Dir interface {
	// Readdir returns the next entry, or nil with a non-nil error (io.EOF
	// at end of stream) if there is none.
	Readdir() (*DirEntry, error)
	Close() error
}

// FileInfo is the subset of stat(2) results the core needs.
type FileInfo struct {
	FileID  uint64
	IsDir   bool
	ModTime time.Time
}

// FsStat is the subset of statvfs(2) results FSSTAT reports.
type FsStat struct {
	TotalBytes, FreeBytes, AvailBytes uint64
	TotalFiles, FreeFiles, AvailFiles uint64
}

// Filesystem is the backend collaborator: local filesystem operations
// addressed by already-resolved absolute paths. The file-handle-to-path
// resolution itself is a separate external collaborator (the file-handle
// cache, spec.md §1) and is not part of this interface.
type Filesystem interface {
	// Opendir opens a directory for streaming iteration.
	Opendir(path string) (Dir, error)

	// Lstat stats path without following a trailing symlink, matching the
	// backend_lstat() contract used by the directory cursor engine so that
	// symbolic links are reported as themselves.
	Lstat(path string) (FileInfo, error)

	// Stat stats path, following symlinks.
	Stat(path string) (FileInfo, error)

	// Getuid reports the effective uid the backend is running as, used by
	// the -s (single-user) startup check.
	Getuid() int

	// Init prepares the backend for use; called once after the process has
	// optionally forked and detached.
	Init() error

	// Shutdown releases any backend resources; called once during the
	// graceful shutdown path.
	Shutdown() error

	// Lookup resolves name within dir, returning the child's absolute path
	// and attributes, or an error if it doesn't exist.
	Lookup(dir, name string) (string, FileInfo, error)

	// Access reports the backend's permission bits for path, to be
	// intersected against the client's requested ACCESS3 bitmap.
	Access(path string) (uint32, error)

	// Setattr applies a partial attribute change: a non-nil size truncates,
	// a non-nil mtime updates the modification time.
	Setattr(path string, size *int64, mtime *time.Time) (FileInfo, error)

	// ReadFile reads up to len(buf) bytes starting at offset, returning the
	// number of bytes read and whether the read reached end of file.
	ReadFile(path string, offset int64, buf []byte) (n int, eof bool, err error)

	// WriteFile writes data at offset, creating no new file (the target
	// must already exist via Create/Mkdir/...).
	WriteFile(path string, offset int64, data []byte) (n int, err error)

	// Sync flushes any buffered data for path to stable storage (COMMIT).
	Sync(path string) error

	// Create creates a new, empty regular file.
	Create(path string) (FileInfo, error)

	// Mkdir creates a new, empty directory.
	Mkdir(path string) (FileInfo, error)

	// Symlink creates a symbolic link at path pointing at target.
	Symlink(target, path string) (FileInfo, error)

	// Mknod creates a device or special file. dev is ignored for the fifo
	// and socket kinds.
	Mknod(path string, kind NodeKind, major, minor uint32) (FileInfo, error)

	// Readlink returns the target of a symbolic link.
	Readlink(path string) (string, error)

	// Remove unlinks a non-directory.
	Remove(path string) error

	// Rmdir removes an empty directory.
	Rmdir(path string) error

	// Rename moves oldPath to newPath, replacing newPath if it already
	// exists (matching rename(2)).
	Rename(oldPath, newPath string) error

	// Link creates newPath as a new hard link to path.
	Link(path, newPath string) error

	// Statfs reports filesystem-level capacity for FSSTAT.
	Statfs(path string) (FsStat, error)
}

// NodeKind distinguishes the kinds of special file MKNOD can create.
type NodeKind int

const (
	NodeChar NodeKind = iota
	NodeBlock
	NodeFIFO
	NodeSocket
)

// Local is the default Filesystem implementation, backed directly by the
// os package. It performs no caching of its own — the file-handle cache
// and fd cache (spec.md §1, internal/cache) sit in front of it.
type Local struct{}

// New returns the default local-disk backend.
func New() *Local { return &Local{} }

func (l *Local) Init() error     { return nil }
func (l *Local) Shutdown() error { return nil }
func (l *Local) Getuid() int     { return os.Getuid() }

func (l *Local) Opendir(path string) (Dir, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &osDir{f: f}, nil
}

func (l *Local) Lstat(path string) (FileInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return toFileInfo(fi), nil
}

func (l *Local) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return toFileInfo(fi), nil
}

type osDir struct {
	f       *os.File
	pending []os.DirEntry
}

func (d *osDir) Readdir() (*DirEntry, error) {
	if len(d.pending) == 0 {
		entries, err := d.f.ReadDir(64)
		if err != nil {
			return nil, err
		}
		d.pending = entries
	}
	next := d.pending[0]
	d.pending = d.pending[1:]
	return &DirEntry{Name: next.Name()}, nil
}

func (d *osDir) Close() error { return d.f.Close() }

func (l *Local) Lookup(dir, name string) (string, FileInfo, error) {
	child := filepath.Join(dir, name)
	info, err := l.Lstat(child)
	if err != nil {
		return "", FileInfo{}, err
	}
	return child, info, nil
}

// Access reports owner-rwx-as-everyone permission bits, the simplest
// faithful rendering of st_mode without modeling uid/gid credential
// matching, which spec.md §1 leaves to the backend collaborator.
func (l *Local) Access(path string) (uint32, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	perm := fi.Mode().Perm()
	var bits uint32
	if perm&0o400 != 0 {
		bits |= AccessRead | AccessLookup
	}
	if perm&0o200 != 0 {
		bits |= AccessModify | AccessExtend
	}
	if perm&0o100 != 0 {
		bits |= AccessExecute
	}
	if fi.IsDir() {
		bits |= AccessDelete
	}
	return bits, nil
}

func (l *Local) Setattr(path string, size *int64, mtime *time.Time) (FileInfo, error) {
	if size != nil {
		if err := os.Truncate(path, *size); err != nil {
			return FileInfo{}, err
		}
	}
	if mtime != nil {
		if err := os.Chtimes(path, *mtime, *mtime); err != nil {
			return FileInfo{}, err
		}
	}
	return l.Stat(path)
}

func (l *Local) ReadFile(path string, offset int64, buf []byte) (int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()
	n, err := f.ReadAt(buf, offset)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, true, nil
		}
		return n, false, err
	}
	fi, err := f.Stat()
	if err != nil {
		return n, false, err
	}
	return n, offset+int64(n) >= fi.Size(), nil
}

func (l *Local) WriteFile(path string, offset int64, data []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteAt(data, offset)
}

func (l *Local) Sync(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func (l *Local) Create(path string) (FileInfo, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return FileInfo{}, err
	}
	f.Close()
	return l.Lstat(path)
}

func (l *Local) Mkdir(path string) (FileInfo, error) {
	if err := os.Mkdir(path, 0o755); err != nil {
		return FileInfo{}, err
	}
	return l.Lstat(path)
}

func (l *Local) Symlink(target, path string) (FileInfo, error) {
	if err := os.Symlink(target, path); err != nil {
		return FileInfo{}, err
	}
	return l.Lstat(path)
}

func (l *Local) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (l *Local) Remove(path string) error { return os.Remove(path) }
func (l *Local) Rmdir(path string) error  { return os.Remove(path) }

func (l *Local) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (l *Local) Link(path, newPath string) error {
	return os.Link(path, newPath)
}
