//go:build unix

package backend

import (
	"os"
	"syscall"
)

func toFileInfo(fi os.FileInfo) FileInfo {
	info := FileInfo{
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.FileID = uint64(st.Ino)
	}
	return info
}
