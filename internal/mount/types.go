// Package mount implements the MOUNT protocol (RFC 1813 Appendix I,
// program 100005) this server answers on versions 1 and 3: the handshake
// clients use to obtain a root file handle for an export before starting
// NFS3 traffic.
package mount

// Procedure numbers for MOUNTPROG (RFC 1813 Appendix I §3), shared
// between versions 1 and 3.
const (
	ProcNull    = 0
	ProcMnt     = 1
	ProcDump    = 2
	ProcUmnt    = 3
	ProcUmntAll = 4
	ProcExport  = 5
)

// mountstat3 values (RFC 1813 Appendix I §3.2.3).
const (
	OK      = 0
	ErrPerm = 1
	ErrNoEnt = 2
	ErrIO   = 5
	ErrNotDir = 20
	ErrAccess = 13
)
