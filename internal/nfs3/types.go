// Package nfs3 implements the NFSv3 (RFC 1813) procedure table: argument
// decoding, dispatch, and the procedures themselves, built on package
// rpcsvc for the RPC envelope and package backend for filesystem access.
//
// Most procedures are thin: decode arguments, call the backend, encode a
// status plus whatever attributes the procedure returns. READDIR and
// READDIRPLUS share the one genuinely stateful piece of logic this server
// has — the directory cursor/verifier engine in readdir.go — which is
// spec.md's centerpiece.
package nfs3

import (
	"errors"
	"io/fs"
)

// Procedure numbers for NFS_PROGRAM version 3 (RFC 1813 §3).
const (
	ProcNull        = 0
	ProcGetAttr     = 1
	ProcSetAttr     = 2
	ProcLookup      = 3
	ProcAccess      = 4
	ProcReadlink    = 5
	ProcRead        = 6
	ProcWrite       = 7
	ProcCreate      = 8
	ProcMkdir       = 9
	ProcSymlink     = 10
	ProcMknod       = 11
	ProcRemove      = 12
	ProcRmdir       = 13
	ProcRename      = 14
	ProcLink        = 15
	ProcReadDir     = 16
	ProcReadDirPlus = 17
	ProcFsStat      = 18
	ProcFsInfo      = 19
	ProcPathConf    = 20
	ProcCommit      = 21
)

// NFS3 status codes (RFC 1813 §2.6).
const (
	OK             = 0
	ErrPerm        = 1
	ErrNoEnt       = 2
	ErrIO          = 5
	ErrAcces       = 13
	ErrExist       = 17
	ErrNotDir      = 20
	ErrIsDir       = 21
	ErrInval       = 22
	ErrFBig        = 27
	ErrNoSpc       = 28
	ErrRofs        = 30
	ErrNameTooLong = 63
	ErrNotEmpty    = 66
	ErrDquot       = 69
	ErrStale       = 70
	ErrBadHandle   = 10001
	ErrBadCookie   = 10003
	ErrNotSupp     = 10004
	ErrTooSmall    = 10005
	ErrServerFault = 10006
)

// mapErrno translates a backend error into an NFS3 status code. The
// backend is a thin os-package wrapper, so its errors are always one of
// the os "Is" sentinels or a *fs.PathError wrapping a syscall errno.
func mapErrno(err error) uint32 {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, fs.ErrNotExist):
		return ErrNoEnt
	case errors.Is(err, fs.ErrExist):
		return ErrExist
	case errors.Is(err, fs.ErrPermission):
		return ErrAcces
	default:
		return ErrIO
	}
}
