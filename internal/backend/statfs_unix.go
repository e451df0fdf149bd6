//go:build unix

package backend

import "golang.org/x/sys/unix"

// Statfs reports filesystem capacity via the statfs(2) syscall, for FSSTAT3
// (RFC 1813 §3.3.18).
func (l *Local) Statfs(path string) (FsStat, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FsStat{}, err
	}
	bsize := uint64(st.Bsize)
	return FsStat{
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bfree * bsize,
		AvailBytes: st.Bavail * bsize,
		TotalFiles: st.Files,
		FreeFiles:  st.Ffree,
		AvailFiles: st.Ffree,
	}, nil
}
