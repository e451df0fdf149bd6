package mount_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/cache"
	"github.com/unfsd-go/unfsd/internal/exports"
	"github.com/unfsd-go/unfsd/internal/mount"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

func newServer(t *testing.T, exportLine string) (*mount.Server, *cache.FileHandleCache) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exports")
	require.NoError(t, os.WriteFile(path, []byte(exportLine), 0o644))

	table := exports.New(path)
	require.NoError(t, table.Parse())

	handles := cache.NewFileHandleCache(16)
	return mount.NewServer(table, handles), handles
}

func TestMnt_KnownExportRegistersHandle(t *testing.T) {
	srv, handles := newServer(t, "/srv\n")
	dt := srv.NewDispatchTable()

	args, err := dt[mount.ProcMnt].Decode(xdrString(t, "/srv"))
	require.NoError(t, err)

	result, err := dt[mount.ProcMnt].Handle(&rpcsvc.CallInfo{RemoteAddr: "10.0.0.1"}, args)
	require.NoError(t, err)

	res := result.(mount.MntResult)
	assert.EqualValues(t, mount.OK, res.Status)
	assert.NotEmpty(t, res.FileHandle)

	path, ok := handles.Lookup(string(res.FileHandle))
	assert.True(t, ok)
	assert.Equal(t, "/srv", path)
}

func TestMnt_UnknownExportIsRejected(t *testing.T) {
	srv, _ := newServer(t, "/srv\n")
	dt := srv.NewDispatchTable()

	args, err := dt[mount.ProcMnt].Decode(xdrString(t, "/not-exported"))
	require.NoError(t, err)

	result, err := dt[mount.ProcMnt].Handle(&rpcsvc.CallInfo{RemoteAddr: "10.0.0.1"}, args)
	require.NoError(t, err)
	assert.EqualValues(t, mount.ErrAccess, result.(mount.MntResult).Status)
}

func TestDump_ListsMountsAfterMnt(t *testing.T) {
	srv, _ := newServer(t, "/srv\n")
	dt := srv.NewDispatchTable()

	args, err := dt[mount.ProcMnt].Decode(xdrString(t, "/srv"))
	require.NoError(t, err)
	_, err = dt[mount.ProcMnt].Handle(&rpcsvc.CallInfo{RemoteAddr: "10.0.0.1"}, args)
	require.NoError(t, err)

	result, err := dt[mount.ProcDump].Handle(&rpcsvc.CallInfo{}, nil)
	require.NoError(t, err)

	dump := result.(mount.DumpResult)
	require.Len(t, dump.Entries, 1)
}

func xdrString(t *testing.T, s string) []byte {
	t.Helper()
	var buf []byte
	n := len(s)
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	buf = append(buf, []byte(s)...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
