package nfs3_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/backend"
	"github.com/unfsd-go/unfsd/internal/exports"
	"github.com/unfsd-go/unfsd/internal/nfs3"
)

// fakeDir is an in-memory backend.Dir over a fixed entry list.
type fakeDir struct {
	names []string
	pos   int
}

func (d *fakeDir) Readdir() (*backend.DirEntry, error) {
	if d.pos >= len(d.names) {
		return nil, io.EOF
	}
	e := &backend.DirEntry{Name: d.names[d.pos]}
	d.pos++
	return e, nil
}

func (d *fakeDir) Close() error { return nil }

// fakeFS is an in-memory backend.Filesystem used to drive the directory
// cursor engine deterministically, independent of the real local-disk
// backend.
type fakeFS struct {
	dirs    map[string][]string
	mtimes  map[string]time.Time
	missing map[string]bool
}

func newFakeFS() *fakeFS {
	return &fakeFS{dirs: map[string][]string{}, mtimes: map[string]time.Time{}, missing: map[string]bool{}}
}

func (f *fakeFS) Opendir(path string) (backend.Dir, error) {
	if f.missing[path] {
		return nil, errors.New("no such directory")
	}
	names, ok := f.dirs[path]
	if !ok {
		return nil, errors.New("no such directory")
	}
	cp := append([]string(nil), names...)
	return &fakeDir{names: cp}, nil
}

func (f *fakeFS) Lstat(path string) (backend.FileInfo, error) {
	return backend.FileInfo{FileID: uint64(len(path)) + hashString(path)}, nil
}

func (f *fakeFS) Stat(path string) (backend.FileInfo, error) {
	return backend.FileInfo{IsDir: true, ModTime: f.mtimes[path]}, nil
}

func (f *fakeFS) Getuid() int     { return 0 }
func (f *fakeFS) Init() error     { return nil }
func (f *fakeFS) Shutdown() error { return nil }

// The remaining Filesystem methods are unused by the directory cursor
// engine under test; they exist only so fakeFS satisfies the interface.
func (f *fakeFS) Lookup(dir, name string) (string, backend.FileInfo, error) {
	return "", backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) Access(path string) (uint32, error) { return 0, errors.New("not implemented") }
func (f *fakeFS) Setattr(path string, size *int64, mtime *time.Time) (backend.FileInfo, error) {
	return backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) ReadFile(path string, offset int64, buf []byte) (int, bool, error) {
	return 0, false, errors.New("not implemented")
}
func (f *fakeFS) WriteFile(path string, offset int64, data []byte) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeFS) Sync(path string) error { return errors.New("not implemented") }
func (f *fakeFS) Create(path string) (backend.FileInfo, error) {
	return backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) Mkdir(path string) (backend.FileInfo, error) {
	return backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) Symlink(target, path string) (backend.FileInfo, error) {
	return backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) Mknod(path string, kind backend.NodeKind, major, minor uint32) (backend.FileInfo, error) {
	return backend.FileInfo{}, errors.New("not implemented")
}
func (f *fakeFS) Readlink(path string) (string, error) { return "", errors.New("not implemented") }
func (f *fakeFS) Remove(path string) error             { return errors.New("not implemented") }
func (f *fakeFS) Rmdir(path string) error               { return errors.New("not implemented") }
func (f *fakeFS) Rename(oldPath, newPath string) error  { return errors.New("not implemented") }
func (f *fakeFS) Link(path, newPath string) error       { return errors.New("not implemented") }
func (f *fakeFS) Statfs(path string) (backend.FsStat, error) {
	return backend.FsStat{}, errors.New("not implemented")
}

func hashString(s string) uint64 {
	var h uint64 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 16777619
	}
	return h
}

func namesOf(entries []nfs3.DirEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestReadDir_EmptyDirectory(t *testing.T) {
	fs := newFakeFS()
	fs.dirs["/empty"] = nil
	fs.mtimes["/empty"] = time.Unix(1000, 0)

	result := nfs3.ReadDir(fs, nil, "/empty", 0, nfs3.CookieVerifier{}, 4096)

	require.Equal(t, uint32(nfs3.OK), result.Status)
	assert.Empty(t, result.Entries)
	assert.True(t, result.EOF)
}

func TestReadDir_TwoWindows(t *testing.T) {
	fs := newFakeFS()
	names := make([]string, 200)
	for i := range names {
		names[i] = fmt.Sprintf("entry%03d", i)
	}
	fs.dirs["/big"] = names
	fs.mtimes["/big"] = time.Unix(2000, 0)

	first := nfs3.ReadDir(fs, nil, "/big", 0, nfs3.CookieVerifier{}, 4096)
	require.Equal(t, uint32(nfs3.OK), first.Status)
	require.NotEmpty(t, first.Entries)
	require.Less(t, len(first.Entries), len(names), "count=4096 must not fit all 200 entries in one window")
	assert.LessOrEqual(t, len(first.Entries), nfs3.MaxEntries)
	assert.False(t, first.EOF)
	assert.Equal(t, uint64(1), first.Entries[0].Cookie)
	assert.Equal(t, names[:len(first.Entries)], namesOf(first.Entries))

	lastCookie := first.Entries[len(first.Entries)-1].Cookie
	assert.Equal(t, uint64(len(first.Entries)), lastCookie)

	second := nfs3.ReadDir(fs, nil, "/big", lastCookie, first.Verf, 4096)
	require.Equal(t, uint32(nfs3.OK), second.Status)
	assert.Equal(t, names[len(first.Entries):], namesOf(second.Entries))
	assert.True(t, second.EOF)
	assert.Equal(t, first.Verf, second.Verf)
}

func TestReadDir_StaleCookieAfterMutation(t *testing.T) {
	fs := newFakeFS()
	fs.dirs["/changing"] = []string{"a", "b", "c"}
	fs.mtimes["/changing"] = time.Unix(3000, 0)

	first := nfs3.ReadDir(fs, nil, "/changing", 0, nfs3.CookieVerifier{}, 4096)
	require.Equal(t, uint32(nfs3.OK), first.Status)

	// Directory mutates between windows: mtime advances.
	fs.mtimes["/changing"] = time.Unix(3001, 0)

	second := nfs3.ReadDir(fs, nil, "/changing", 1, first.Verf, 4096)
	assert.Equal(t, uint32(nfs3.ErrBadCookie), second.Status)
}

func TestReadDir_CountClippedWindow(t *testing.T) {
	fs := newFakeFS()
	// 10 entries, each an 8-byte name.
	names := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd", "eeeeeeee",
		"ffffffff", "gggggggg", "hhhhhhhh", "iiiiiiii", "jjjjjjjj"}
	fs.dirs["/clip"] = names
	fs.mtimes["/clip"] = time.Unix(4000, 0)

	result := nfs3.ReadDir(fs, nil, "/clip", 0, nfs3.CookieVerifier{}, 264)

	require.Equal(t, uint32(nfs3.OK), result.Status)
	assert.Len(t, result.Entries, 5)
	assert.False(t, result.EOF)
	assert.Equal(t, names[:5], namesOf(result.Entries))
}

func TestReadDir_RemovableMediaAbsent(t *testing.T) {
	fs := newFakeFS()
	fs.missing["/cdrom"] = true

	exportsFile := writeExportsFile(t, "/cdrom removable\n")
	table := exports.New(exportsFile)
	require.NoError(t, table.Parse())

	result := nfs3.ReadDir(fs, table, "/cdrom", 0, nfs3.CookieVerifier{}, 4096)
	assert.Equal(t, uint32(nfs3.OK), result.Status)
	assert.Empty(t, result.Entries)
	assert.True(t, result.EOF)
}

func TestReadDir_NonRemovableMediaAbsentIsError(t *testing.T) {
	fs := newFakeFS()
	fs.missing["/broken"] = true

	exportsFile := writeExportsFile(t, "/broken\n")
	table := exports.New(exportsFile)
	require.NoError(t, table.Parse())

	result := nfs3.ReadDir(fs, table, "/broken", 0, nfs3.CookieVerifier{}, 4096)
	assert.Equal(t, uint32(nfs3.ErrIO), result.Status)
}

func writeExportsFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := dir + "/exports"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}
