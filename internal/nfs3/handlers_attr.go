package nfs3

import (
	"bytes"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// SetAttrArgs mirrors SETATTR3args (RFC 1813 §3.3.2), collapsing sattr3's
// set_it-discriminated union members this server honors (size, mtime) down
// to explicit flag/value pairs; the remaining members (mode, uid, gid,
// atime) have no field in this shape and are never applied, matching
// GETATTR's reduced attribute shape.
type SetAttrArgs struct {
	FileHandle []byte
	SetSize    bool
	Size       uint64
	SetMtime   bool
	Mtime      int64
}

func (s *Server) setAttr() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "SETATTR",
		Decode: func(data []byte) (any, error) {
			var a SetAttrArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) { return simpleStatusResult(result.(uint32)) },
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(SetAttrArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return uint32(ErrStale), nil
			}
			var size *int64
			if a.SetSize {
				v := int64(a.Size)
				size = &v
			}
			var mtime *time.Time
			if a.SetMtime {
				v := time.Unix(a.Mtime, 0)
				mtime = &v
			}
			if _, err := s.FS.Setattr(path, size, mtime); err != nil {
				return mapErrno(err), nil
			}
			return uint32(OK), nil
		},
	}
}
