//go:build unix

package backend

import "golang.org/x/sys/unix"

// Mknod creates a device or special file via the mknod(2) syscall, matching
// the original backend_mknod() contract for MKNOD3 (RFC 1813 §3.3.11).
func (l *Local) Mknod(path string, kind NodeKind, major, minor uint32) (FileInfo, error) {
	var mode uint32
	switch kind {
	case NodeChar:
		mode = unix.S_IFCHR | 0o644
	case NodeBlock:
		mode = unix.S_IFBLK | 0o644
	case NodeFIFO:
		mode = unix.S_IFIFO | 0o644
	case NodeSocket:
		mode = unix.S_IFSOCK | 0o644
	}
	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(path, mode, int(dev)); err != nil {
		return FileInfo{}, err
	}
	return l.Lstat(path)
}
