package mount

import (
	"bytes"
	"sort"
	"sync"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/cache"
	"github.com/unfsd-go/unfsd/internal/exports"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// Server holds the collaborators the MOUNT procedures need: the exports
// table to validate requested paths against, the file-handle cache to
// register a root handle in (so a subsequent NFS3 call can resolve it),
// and the mount list DUMP/UMNT/UMNTALL report and modify.
type Server struct {
	Exports *exports.Table
	Handles *cache.FileHandleCache

	mu      sync.Mutex
	mounted map[string]map[string]bool // client -> set of exported paths
}

// NewServer returns a MOUNT server bound to the given collaborators.
func NewServer(exportTable *exports.Table, handles *cache.FileHandleCache) *Server {
	return &Server{Exports: exportTable, Handles: handles, mounted: make(map[string]map[string]bool)}
}

func (s *Server) record(client, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.mounted[client]
	if !ok {
		set = make(map[string]bool)
		s.mounted[client] = set
	}
	set[path] = true
}

func (s *Server) forget(client, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.mounted[client]; ok {
		delete(set, path)
		if len(set) == 0 {
			delete(s.mounted, client)
		}
	}
}

func (s *Server) forgetAll(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mounted, client)
}

// mountEntry is one (client, export path) pair as MOUNTPROC_DUMP reports
// it (RFC 1813 Appendix I mountlist).
type mountEntry struct {
	Client string
	Path   string
}

func (s *Server) dump() []mountEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mountEntry
	for client, set := range s.mounted {
		for path := range set {
			out = append(out, mountEntry{Client: client, Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Client != out[j].Client {
			return out[i].Client < out[j].Client
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// handleFor derives a file handle for an export's root path. Handles are
// the path's bytes directly: they are opaque to the client, and uniquely
// and deterministically identify the export without a separate handle
// table to keep in sync with the exports table itself.
func handleFor(path string) []byte { return []byte(path) }

// MntArgs mirrors the dirpath argument MOUNTPROC_MNT takes.
type MntArgs struct {
	Path string
}

// MntResult mirrors mountres3: a status and, on success, the root file
// handle for the export (the auth flavors list RFC 1813 also carries is
// omitted, matching this server's AUTH_NULL/AUTH_UNIX-only scope).
type MntResult struct {
	Status     uint32
	FileHandle []byte
}

func (s *Server) mnt() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "MNT",
		Decode: func(data []byte) (any, error) {
			var a MntArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(result any) ([]byte, error) {
			r := result.(MntResult)
			var buf bytes.Buffer
			if _, err := xdr.Marshal(&buf, &r); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(ci *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(MntArgs)
			if _, ok := s.Exports.ExportPoint(a.Path); !ok {
				return MntResult{Status: ErrAccess}, nil
			}
			handle := handleFor(a.Path)
			s.Handles.Put(string(handle), a.Path)
			s.record(ci.RemoteAddr, a.Path)
			return MntResult{Status: OK, FileHandle: handle}, nil
		},
	}
}

// DumpResult is the MOUNTPROC_DUMP reply: the current mount list.
type DumpResult struct {
	Entries []mountEntry
}

func (s *Server) dumpProc() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "DUMP",
		Decode: func([]byte) (any, error) { return nil, nil },
		Encode: func(result any) ([]byte, error) {
			r := result.(DumpResult)
			var buf bytes.Buffer
			for _, e := range r.Entries {
				present := true
				if _, err := xdr.Marshal(&buf, &present); err != nil {
					return nil, err
				}
				if _, err := xdr.Marshal(&buf, &e); err != nil {
					return nil, err
				}
			}
			absent := false
			if _, err := xdr.Marshal(&buf, &absent); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(*rpcsvc.CallInfo, any) (any, error) {
			return DumpResult{Entries: s.dump()}, nil
		},
	}
}

func (s *Server) umnt() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name: "UMNT",
		Decode: func(data []byte) (any, error) {
			var a MntArgs
			if _, err := xdr.Unmarshal(bytes.NewReader(data), &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Encode: func(any) ([]byte, error) { return nil, nil },
		Handle: func(ci *rpcsvc.CallInfo, args any) (any, error) {
			a := args.(MntArgs)
			s.forget(ci.RemoteAddr, a.Path)
			return nil, nil
		},
	}
}

func (s *Server) umntAll() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "UMNTALL",
		Decode: func([]byte) (any, error) { return nil, nil },
		Encode: func(any) ([]byte, error) { return nil, nil },
		Handle: func(ci *rpcsvc.CallInfo, _ any) (any, error) {
			s.forgetAll(ci.RemoteAddr)
			return nil, nil
		},
	}
}

// ExportResult is the MOUNTPROC_EXPORT reply: the server's export paths.
// Only the paths are sent; no group names or options accompany them.
type ExportResult struct {
	Paths []string
}

func (s *Server) export() *rpcsvc.Procedure {
	return &rpcsvc.Procedure{
		Name:   "EXPORT",
		Decode: func([]byte) (any, error) { return nil, nil },
		Encode: func(result any) ([]byte, error) {
			r := result.(ExportResult)
			var buf bytes.Buffer
			for _, p := range r.Paths {
				present := true
				if _, err := xdr.Marshal(&buf, &present); err != nil {
					return nil, err
				}
				if _, err := xdr.Marshal(&buf, &p); err != nil {
					return nil, err
				}
			}
			absent := false
			if _, err := xdr.Marshal(&buf, &absent); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Handle: func(*rpcsvc.CallInfo, any) (any, error) {
			var paths []string
			for _, e := range s.Exports.Entries() {
				paths = append(paths, e.Path)
			}
			return ExportResult{Paths: paths}, nil
		},
	}
}

// NewDispatchTable builds the MOUNT procedure table (spec.md §4.3/§6),
// shared between MOUNTPROG versions 1 and 3 since none of the version-3
// additions (the auth-flavor list in mountres3) are represented in this
// server's reduced reply shape.
func (s *Server) NewDispatchTable() rpcsvc.Table {
	return rpcsvc.Table{
		ProcNull:    rpcsvc.Null,
		ProcMnt:     s.mnt(),
		ProcDump:    s.dumpProc(),
		ProcUmnt:    s.umnt(),
		ProcUmntAll: s.umntAll(),
		ProcExport:  s.export(),
	}
}
