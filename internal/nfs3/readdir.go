package nfs3

import (
	"encoding/binary"
	"errors"
	"io"
	"path"
	"time"

	"github.com/unfsd-go/unfsd/internal/backend"
	"github.com/unfsd-go/unfsd/internal/exports"
)

// Size constants for the READDIR/READDIRPLUS reply, grounded byte-for-byte
// on the original's accounting (readdir.c): a client-supplied count caps
// the XDR-encoded size of the reply, and the server must track that size
// as it builds the entry list rather than simply capping the entry count.
const (
	// ResokSize is the size of READDIR3resok before any entries: 88 bytes
	// of post-op directory attributes, 8 bytes cookie verifier, 4 bytes
	// value_follows for the first entry, 4 bytes eof flag.
	ResokSize = 104

	// EntrySize is the fixed portion of one entry3: 8 bytes fileid, 4
	// bytes name length, 8 bytes cookie, 4 bytes value_follows.
	EntrySize = 24

	// MaxEntries bounds the number of entries the server will consider in
	// one call, independent of count: the 4096-byte count ceiling less
	// ResokSize, divided by the smallest entry3 with a non-empty name
	// (EntrySize plus 4 padded name bytes = 28), rounded up:
	// ceil(3992/28) = 143.
	MaxEntries = 143

	// MaxReadDirCount is the hard ceiling a client-supplied count is
	// clamped to before any size accounting begins.
	MaxReadDirCount = 4096
)

// CookieVerifier is the 8-byte opaque value NFS3 calls cookieverf3. This
// implementation packs the directory's modification time into it, the
// same quantity the original stores as a raw time_t (spec.md §9: "the
// verifier is the directory's modification time ... compared for exact
// equality").
type CookieVerifier [8]byte

func verifierFor(mtime time.Time) CookieVerifier {
	var v CookieVerifier
	binary.LittleEndian.PutUint64(v[:], uint64(mtime.Unix()))
	return v
}

// DirEntry is one entry of a READDIR reply window.
type DirEntry struct {
	FileID uint64
	Name   string
	Cookie uint64
}

// ReadDirResult is the outcome of one ReadDir call: either a successful
// window (Entries, EOF, Verf) or a Status naming an NFS3 error.
type ReadDirResult struct {
	Status  uint32
	Entries []DirEntry
	EOF     bool
	Verf    CookieVerifier
}

// nameSize returns the XDR-padded size of a directory entry name: the
// wire encoding pads every opaque byte string to a multiple of 4 bytes.
func nameSize(name string) uint32 {
	return uint32((len(name) + 3) / 4 * 4)
}

// ReadDir implements the directory cursor engine of spec.md §4.4: given a
// directory path, a client cookie and cookie verifier, and a client
// byte-count ceiling, it returns one window of directory entries.
//
// cookie 0 always starts a fresh scan. A non-zero cookie is checked
// against verf: if the directory's modification time no longer matches
// the verifier the client presented, the directory changed under the scan
// and ErrBadCookie is returned — the client must restart from cookie 0.
//
// Entries are numbered by position: the cookie attached to entry i (0-based
// within the directory, not within this window) is i+1, so presenting
// cookie N on the next call resumes after the Nth entry. The scan walks
// past the first N entries with no way to seek directly to N (matching
// the original, which cannot rely on telldir()/seekdir() cookies
// surviving a closedir()).
//
// count bounds the XDR-encoded size of the reply, not the entry count
// directly: entries accumulate against ResokSize + per-entry overhead
// until adding the next one would exceed count. The one exception is the
// very first entry of a window, which is always included even if it alone
// exceeds count, guaranteeing forward progress on a directory containing
// one entry with an enormous name. An entry that overflows count once at
// least one entry is already queued is dropped back out of the window
// without having advanced the directory iterator past it, so the next
// call (with the cookie of the last entry actually returned) sees it
// again.
func ReadDir(fs backend.Filesystem, exportTable *exports.Table, dirPath string, cookie uint64, verf CookieVerifier, count uint32) ReadDirResult {
	if count > MaxReadDirCount {
		count = MaxReadDirCount
	}

	info, statErr := fs.Stat(dirPath)
	var newVerf CookieVerifier
	if statErr == nil {
		newVerf = verifierFor(info.ModTime)
	}

	if cookie != 0 && statErr == nil && verf != newVerf {
		return ReadDirResult{Status: ErrBadCookie}
	}

	dir, err := fs.Opendir(dirPath)
	if err != nil {
		if exportTable != nil && exportTable.IsRemovable(dirPath) {
			// Removable-media export point with no media inserted: report
			// an empty, exhausted directory rather than an I/O error.
			return ReadDirResult{Status: OK, EOF: true}
		}
		return ReadDirResult{Status: ErrIO}
	}
	defer dir.Close()

	next, nextErr := advance(dir)
	for i := uint64(0); i < cookie && next != nil; i++ {
		next, nextErr = advance(dir)
	}
	if nextErr != nil && !errors.Is(nextErr, io.EOF) {
		return ReadDirResult{Status: ErrIO}
	}

	var entries []DirEntry
	realCount := uint32(ResokSize)

	for i := 0; next != nil && realCount < count && i < MaxEntries; i++ {
		childPath := joinDirPath(dirPath, next.Name)
		childInfo, statErr := fs.Lstat(childPath)
		if statErr != nil {
			return ReadDirResult{Status: ErrIO}
		}

		candidate := DirEntry{
			FileID: childInfo.FileID,
			Name:   next.Name,
			Cookie: cookie + 1 + uint64(i),
		}
		entrySize := EntrySize + nameSize(next.Name)
		overflow := realCount+entrySize > count && i > 0

		if overflow {
			break
		}

		realCount += entrySize
		entries = append(entries, candidate)

		next, nextErr = advance(dir)
		if nextErr != nil && !errors.Is(nextErr, io.EOF) {
			return ReadDirResult{Status: ErrIO}
		}
	}

	return ReadDirResult{
		Status:  OK,
		Entries: entries,
		EOF:     next == nil,
		Verf:    newVerf,
	}
}

// advance reads the next directory entry, treating io.EOF as a clean
// end-of-stream (nil entry, nil error) rather than a failure.
func advance(dir backend.Dir) (*backend.DirEntry, error) {
	entry, err := dir.Readdir()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func joinDirPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}
