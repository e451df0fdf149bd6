package nfs3_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	xdr "github.com/rasky/go-xdr/xdr2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/backend"
	"github.com/unfsd-go/unfsd/internal/cache"
	"github.com/unfsd-go/unfsd/internal/nfs3"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

func newLocalServer(t *testing.T) (*nfs3.Server, string, []byte) {
	t.Helper()
	root := t.TempDir()
	handles := cache.NewFileHandleCache(64)
	rootHandle := []byte(root)
	handles.Put(string(rootHandle), root)
	srv := &nfs3.Server{FS: backend.New(), Handles: handles}
	return srv, root, rootHandle
}

// encodeDirArgs XDR-encodes a (DirHandle, Name) pair, the wire shape CREATE,
// MKDIR, REMOVE, and RMDIR all decode.
func encodeDirArgs(t *testing.T, handle []byte, name string) []byte {
	t.Helper()
	wire := struct {
		DirHandle []byte
		Name      string
	}{handle, name}
	var buf bytes.Buffer
	_, err := xdr.Marshal(&buf, &wire)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLookupGetAttr_RoundTrip(t *testing.T) {
	srv, root, rootHandle := newLocalServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644))

	lookup := srv.NewDispatchTable()[nfs3.ProcLookup]
	res, err := lookup.Handle(&rpcsvc.CallInfo{}, nfs3.LookupArgs{DirHandle: rootHandle, Name: "a.txt"})
	require.NoError(t, err)
	lr := res.(nfs3.LookupResult)
	require.EqualValues(t, nfs3.OK, lr.Status)
	assert.False(t, lr.IsDir)

	getattr := srv.NewDispatchTable()[nfs3.ProcGetAttr]
	res, err = getattr.Handle(&rpcsvc.CallInfo{}, nfs3.GetAttrArgs{FileHandle: lr.FileHandle})
	require.NoError(t, err)
	gr := res.(nfs3.GetAttrResult)
	assert.EqualValues(t, nfs3.OK, gr.Status)
}

func TestLookup_MissingNameIsNoEnt(t *testing.T) {
	srv, _, rootHandle := newLocalServer(t)

	lookup := srv.NewDispatchTable()[nfs3.ProcLookup]
	res, err := lookup.Handle(&rpcsvc.CallInfo{}, nfs3.LookupArgs{DirHandle: rootHandle, Name: "missing"})
	require.NoError(t, err)
	assert.EqualValues(t, nfs3.ErrNoEnt, res.(nfs3.LookupResult).Status)
}

func TestCreateWriteReadCommit_RoundTrip(t *testing.T) {
	srv, _, rootHandle := newLocalServer(t)
	dt := srv.NewDispatchTable()

	createArgs, err := dt[nfs3.ProcCreate].Decode(encodeDirArgs(t, rootHandle, "f.txt"))
	require.NoError(t, err)
	res, err := dt[nfs3.ProcCreate].Handle(&rpcsvc.CallInfo{}, createArgs)
	require.NoError(t, err)
	cr := res.(nfs3.ObjectResult)
	require.EqualValues(t, nfs3.OK, cr.Status)

	writeArgs := nfs3.WriteArgs{FileHandle: cr.FileHandle, Offset: 0, Count: 5, Stable: nfs3.FileSync, Data: []byte("hello")}
	res, err = dt[nfs3.ProcWrite].Handle(&rpcsvc.CallInfo{}, writeArgs)
	require.NoError(t, err)
	wr := res.(nfs3.WriteResult)
	require.EqualValues(t, nfs3.OK, wr.Status)
	assert.EqualValues(t, 5, wr.Count)
	assert.EqualValues(t, nfs3.FileSync, wr.Committed)

	readArgs := nfs3.ReadArgs{FileHandle: cr.FileHandle, Offset: 0, Count: 64}
	res, err = dt[nfs3.ProcRead].Handle(&rpcsvc.CallInfo{Protocol: rpcsvc.TCP}, readArgs)
	require.NoError(t, err)
	rr := res.(nfs3.ReadResult)
	require.EqualValues(t, nfs3.OK, rr.Status)
	assert.Equal(t, "hello", string(rr.Data))
	assert.True(t, rr.EOF)

	res, err = dt[nfs3.ProcCommit].Handle(&rpcsvc.CallInfo{}, nfs3.CommitArgs{FileHandle: cr.FileHandle})
	require.NoError(t, err)
	assert.EqualValues(t, nfs3.OK, res.(nfs3.CommitResult).Status)
}

func TestMkdirRmdir_RoundTrip(t *testing.T) {
	srv, _, rootHandle := newLocalServer(t)
	dt := srv.NewDispatchTable()

	mkdirArgs, err := dt[nfs3.ProcMkdir].Decode(encodeDirArgs(t, rootHandle, "sub"))
	require.NoError(t, err)
	res, err := dt[nfs3.ProcMkdir].Handle(&rpcsvc.CallInfo{}, mkdirArgs)
	require.NoError(t, err)
	mr := res.(nfs3.ObjectResult)
	require.EqualValues(t, nfs3.OK, mr.Status)

	rmdirArgs, err := dt[nfs3.ProcRmdir].Decode(encodeDirArgs(t, rootHandle, "sub"))
	require.NoError(t, err)
	res, err = dt[nfs3.ProcRmdir].Handle(&rpcsvc.CallInfo{}, rmdirArgs)
	require.NoError(t, err)
	assert.EqualValues(t, nfs3.OK, res.(uint32))
}
