package nfs3

import (
	"bytes"
	"path/filepath"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/backend"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// handleFor derives a file handle for path: the path's own bytes, the same
// convention package mount uses for an export's root handle (opaque to the
// client, unique and deterministic without a separate generation table).
func handleFor(path string) []byte { return []byte(path) }

// register installs path in the file-handle cache under its own handle and
// returns that handle, the step every procedure that names a new object
// (LOOKUP, CREATE, MKDIR, SYMLINK, MKNOD) performs before replying.
func (s *Server) register(path string) []byte {
	h := handleFor(path)
	s.Handles.Put(string(h), path)
	return h
}

// LookupArgs mirrors LOOKUP3args (RFC 1813 §3.3.3).
type LookupArgs struct {
	DirHandle []byte
	Name      string
}

// LookupResult mirrors LOOKUP3res for the OK case, omitting the post-op
// attributes RFC 1813 also carries (spec.md §1 scopes attribute payloads to
// the reduced shape GETATTR already establishes).
type LookupResult struct {
	Status     uint32
	FileHandle []byte
	FileID     uint64
	IsDir      bool
}

func (s *Server) lookup() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "LOOKUP",
		Decode: func(data []byte) (any, error) {
			var a LookupArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(LookupResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(LookupArgs)
			dir, ok := s.resolve(a.DirHandle)
			if !ok {
				return LookupResult{Status: ErrStale}, nil
			}
			child, info, err := s.FS.Lookup(dir, a.Name)
			if err != nil {
				return LookupResult{Status: mapErrno(err)}, nil
			}
			return LookupResult{Status: OK, FileHandle: s.register(child), FileID: info.FileID, IsDir: info.IsDir}, nil
		},
	}
}

// AccessArgs mirrors ACCESS3args (RFC 1813 §3.3.4).
type AccessArgs struct {
	FileHandle []byte
	Access     uint32
}

// AccessResult mirrors ACCESS3res for the OK case.
type AccessResult struct {
	Status uint32
	Access uint32
}

func (s *Server) access() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "ACCESS",
		Decode: func(data []byte) (any, error) {
			var a AccessArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(AccessResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(AccessArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return AccessResult{Status: ErrStale}, nil
			}
			granted, err := s.FS.Access(path)
			if err != nil {
				return AccessResult{Status: mapErrno(err)}, nil
			}
			return AccessResult{Status: OK, Access: a.Access & granted}, nil
		},
	}
}

// ReadlinkArgs mirrors READLINK3args (RFC 1813 §3.3.5).
type ReadlinkArgs struct {
	FileHandle []byte
}

// ReadlinkResult mirrors READLINK3res for the OK case.
type ReadlinkResult struct {
	Status uint32
	Target string
}

func (s *Server) readlink() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "READLINK",
		Decode: func(data []byte) (any, error) {
			var a ReadlinkArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ReadlinkResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(ReadlinkArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return ReadlinkResult{Status: ErrStale}, nil
			}
			target, err := s.FS.Readlink(path)
			if err != nil {
				return ReadlinkResult{Status: mapErrno(err)}, nil
			}
			return ReadlinkResult{Status: OK, Target: target}, nil
		},
	}
}

// dirArgs is the (DirHandle, Name) shape CREATE, MKDIR, REMOVE, and RMDIR
// all share.
type dirArgs struct {
	DirHandle []byte
	Name      string
}

func (s *Server) resolveChild(handle []byte, name string) (string, bool) {
	dir, ok := s.resolve(handle)
	if !ok {
		return "", false
	}
	return filepath.Join(dir, name), true
}

// ObjectResult is the (Status, FileHandle, FileID) shape CREATE, MKDIR,
// SYMLINK, and MKNOD all return.
type ObjectResult struct {
	Status     uint32
	FileHandle []byte
	FileID     uint64
}

func (s *Server) create() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "CREATE",
		Decode: func(data []byte) (any, error) {
			var a dirArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ObjectResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(dirArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return ObjectResult{Status: ErrStale}, nil
			}
			info, err := s.FS.Create(child)
			if err != nil {
				return ObjectResult{Status: mapErrno(err)}, nil
			}
			return ObjectResult{Status: OK, FileHandle: s.register(child), FileID: info.FileID}, nil
		},
	}
}

func (s *Server) mkdir() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "MKDIR",
		Decode: func(data []byte) (any, error) {
			var a dirArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ObjectResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(dirArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return ObjectResult{Status: ErrStale}, nil
			}
			info, err := s.FS.Mkdir(child)
			if err != nil {
				return ObjectResult{Status: mapErrno(err)}, nil
			}
			return ObjectResult{Status: OK, FileHandle: s.register(child), FileID: info.FileID}, nil
		},
	}
}

// SymlinkArgs mirrors SYMLINK3args (RFC 1813 §3.3.10).
type SymlinkArgs struct {
	DirHandle []byte
	Name      string
	Target    string
}

func (s *Server) symlink() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "SYMLINK",
		Decode: func(data []byte) (any, error) {
			var a SymlinkArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ObjectResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(SymlinkArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return ObjectResult{Status: ErrStale}, nil
			}
			info, err := s.FS.Symlink(a.Target, child)
			if err != nil {
				return ObjectResult{Status: mapErrno(err)}, nil
			}
			return ObjectResult{Status: OK, FileHandle: s.register(child), FileID: info.FileID}, nil
		},
	}
}

// MknodArgs mirrors MKNOD3args (RFC 1813 §3.3.11): the discriminated
// ftype3/specdata3 union collapsed to a plain kind-plus-device-numbers pair.
type MknodArgs struct {
	DirHandle []byte
	Name      string
	Kind      uint32
	Major     uint32
	Minor     uint32
}

func (s *Server) mknod() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "MKNOD",
		Decode: func(data []byte) (any, error) {
			var a MknodArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ObjectResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(MknodArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return ObjectResult{Status: ErrStale}, nil
			}
			info, err := s.FS.Mknod(child, backend.NodeKind(a.Kind), a.Major, a.Minor)
			if err != nil {
				return ObjectResult{Status: mapErrno(err)}, nil
			}
			return ObjectResult{Status: OK, FileHandle: s.register(child), FileID: info.FileID}, nil
		},
	}
}

func (s *Server) remove() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "REMOVE",
		Decode: func(data []byte) (any, error) {
			var a dirArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) { return simpleStatusResult(result.(uint32)) },
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(dirArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return uint32(ErrStale), nil
			}
			if err := s.FS.Remove(child); err != nil {
				return mapErrno(err), nil
			}
			return uint32(OK), nil
		},
	}
}

func (s *Server) rmdir() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "RMDIR",
		Decode: func(data []byte) (any, error) {
			var a dirArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) { return simpleStatusResult(result.(uint32)) },
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(dirArgs)
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return uint32(ErrStale), nil
			}
			if err := s.FS.Rmdir(child); err != nil {
				return mapErrno(err), nil
			}
			return uint32(OK), nil
		},
	}
}

// RenameArgs mirrors RENAME3args (RFC 1813 §3.3.14).
type RenameArgs struct {
	FromDirHandle []byte
	FromName      string
	ToDirHandle   []byte
	ToName        string
}

func (s *Server) rename() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "RENAME",
		Decode: func(data []byte) (any, error) {
			var a RenameArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) { return simpleStatusResult(result.(uint32)) },
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(RenameArgs)
			from, ok := s.resolveChild(a.FromDirHandle, a.FromName)
			if !ok {
				return uint32(ErrStale), nil
			}
			to, ok := s.resolveChild(a.ToDirHandle, a.ToName)
			if !ok {
				return uint32(ErrStale), nil
			}
			if err := s.FS.Rename(from, to); err != nil {
				return mapErrno(err), nil
			}
			return uint32(OK), nil
		},
	}
}

// LinkArgs mirrors LINK3args (RFC 1813 §3.3.15).
type LinkArgs struct {
	FileHandle []byte
	DirHandle  []byte
	Name       string
}

func (s *Server) link() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "LINK",
		Decode: func(data []byte) (any, error) {
			var a LinkArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) { return simpleStatusResult(result.(uint32)) },
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(LinkArgs)
			target, ok := s.resolve(a.FileHandle)
			if !ok {
				return uint32(ErrStale), nil
			}
			child, ok := s.resolveChild(a.DirHandle, a.Name)
			if !ok {
				return uint32(ErrStale), nil
			}
			if err := s.FS.Link(target, child); err != nil {
				return mapErrno(err), nil
			}
			return uint32(OK), nil
		},
	}
}
