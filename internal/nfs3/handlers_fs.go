package nfs3

import (
	"bytes"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// handleOnlyArgs is the (FileHandle) shape FSSTAT, FSINFO, and PATHCONF
// all take.
type handleOnlyArgs struct {
	FileHandle []byte
}

func decodeHandleOnly(data []byte) (any, error) {
	var a handleOnlyArgs
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
		return nil, err
	}
	return a, nil
}

// FsStatResult mirrors FSSTAT3res for the OK case (RFC 1813 §3.3.18).
type FsStatResult struct {
	Status   uint32
	TBytes   uint64
	FBytes   uint64
	ABytes   uint64
	TFiles   uint64
	FFiles   uint64
	AFiles   uint64
	Invarsec uint32
}

func (s *Server) fsStat() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "FSSTAT",
		Decode: decodeHandleOnly,
		Encode: func(result any) ([]byte, error) {
			r := result.(FsStatResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(handleOnlyArgs)
			path, ok := s.resolve(a.FileHandle)
			if !ok {
				return FsStatResult{Status: ErrStale}, nil
			}
			st, err := s.FS.Statfs(path)
			if err != nil {
				return FsStatResult{Status: mapErrno(err)}, nil
			}
			return FsStatResult{
				Status: OK,
				TBytes: st.TotalBytes, FBytes: st.FreeBytes, ABytes: st.AvailBytes,
				TFiles: st.TotalFiles, FFiles: st.FreeFiles, AFiles: st.AvailFiles,
			}, nil
		},
	}
}

// FSINFO properties bits (RFC 1813 §3.3.19).
const (
	fsfLink        = 0x0001
	fsfSymlink     = 0x0002
	fsfHomogeneous = 0x0008
	fsfCanSetTime  = 0x0010
)

// FsInfoResult mirrors FSINFO3res for the OK case.
type FsInfoResult struct {
	Status      uint32
	RtMax       uint32
	RtPref      uint32
	RtMult      uint32
	WtMax       uint32
	WtPref      uint32
	WtMult      uint32
	DtPref      uint32
	MaxFileSize uint64
	TimeDelta   uint32
	Properties  uint32
}

func (s *Server) fsInfo() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "FSINFO",
		Decode: decodeHandleOnly,
		Encode: func(result any) ([]byte, error) {
			r := result.(FsInfoResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(handleOnlyArgs)
			if _, ok := s.resolve(a.FileHandle); !ok {
				return FsInfoResult{Status: ErrStale}, nil
			}
			return FsInfoResult{
				Status:      OK,
				RtMax:       maxUDPReadPayload,
				RtPref:      maxUDPReadPayload,
				RtMult:      4096,
				WtMax:       maxUDPReadPayload,
				WtPref:      maxUDPReadPayload,
				WtMult:      4096,
				DtPref:      MaxReadDirCount,
				MaxFileSize: 1 << 40,
				TimeDelta:   1,
				Properties:  fsfLink | fsfSymlink | fsfHomogeneous | fsfCanSetTime,
			}, nil
		},
	}
}

// PathConfResult mirrors PATHCONF3res for the OK case (RFC 1813 §3.3.20).
type PathConfResult struct {
	Status          uint32
	LinkMax         uint32
	NameMax         uint32
	NoTrunc         bool
	ChownRestricted bool
	CaseInsensitive bool
	CasePreserving  bool
}

func (s *Server) pathConf() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "PATHCONF",
		Decode: decodeHandleOnly,
		Encode: func(result any) ([]byte, error) {
			r := result.(PathConfResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(handleOnlyArgs)
			if _, ok := s.resolve(a.FileHandle); !ok {
				return PathConfResult{Status: ErrStale}, nil
			}
			return PathConfResult{
				Status:          OK,
				LinkMax:         32000,
				NameMax:         255,
				NoTrunc:         true,
				ChownRestricted: true,
				CaseInsensitive: false,
				CasePreserving:  true,
			}, nil
		},
	}
}
