// Package rpcsvc implements the ONC RPC envelope: call/reply header
// encode-decode, the fault vocabulary, TCP record marking, the transport
// descriptors of spec.md §4.1, and the generic per-program dispatch table
// shape described in spec.md §4.3 and its Design Notes §9. Per-procedure
// argument and result wire formats are out of scope (spec.md §1) except for
// the RPC envelope itself and, in package nfs3, the READDIR/READDIRPLUS
// entry list.
package rpcsvc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ONC RPC program numbers (RFC 1057/5531) and the two programs this server
// answers, per spec.md §6.
const (
	ProgramNFS3    = 100003
	ProgramMount   = 100005
	ProgramPortmap = 100000

	NFS3Version = 3

	MountVersion1 = 1
	MountVersion3 = 3

	PortmapVersion2 = 2
)

// RPC message types (RFC 5531 msg_type).
const (
	msgCall  = 0
	msgReply = 1
)

// Reply status (RFC 5531 reply_stat).
const (
	msgAccepted = 0
	msgDenied   = 1
)

// Accepted-reply status (RFC 5531 accept_stat). These are the RPC-level
// faults spec.md §4.3/§7 names: "no such procedure", "garbage arguments",
// "system error".
const (
	AcceptSuccess      = 0
	AcceptProgUnavail  = 1
	AcceptProgMismatch = 2
	AcceptProcUnavail  = 3
	AcceptGarbageArgs  = 4
	AcceptSystemErr    = 5
)

// Auth flavors (RFC 5531 auth_flavor).
const (
	AuthNull = 0
	AuthUnix = 1
)

// OpaqueAuth is the credential/verifier envelope carried on every call and
// reply (RFC 5531 opaque_auth).
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// CallBody is the RPC call header, decoded ahead of the per-procedure
// argument body so the dispatcher can route on (Program, Version,
// Procedure) per spec.md §4.3.
type CallBody struct {
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// CallMessage is a fully parsed RPC call: the envelope plus the raw,
// still-XDR-encoded procedure arguments that follow it.
type CallMessage struct {
	XID  uint32
	Body CallBody
	Args []byte
}

// UnixAuth is the decoded AUTH_UNIX credential body (RFC 5531 §9), used to
// build the CallInfo passed to every handler (spec.md §4.3).
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	var a UnixAuth
	if _, err := xdr.Unmarshal(bytes.NewReader(body), &a); err != nil {
		return nil, fmt.Errorf("decode AUTH_UNIX body: %w", err)
	}
	return &a, nil
}

// rawCallHeader mirrors the wire layout of an RPC call message up to and
// including the verifier, used only to split the envelope from the
// procedure-specific argument bytes that follow it on the wire.
type rawCallHeader struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// ReadCall decodes the RPC call envelope from the front of message and
// returns it along with the remaining bytes (the procedure's argument
// body, still XDR-encoded, left for the per-procedure decoder spec.md §4.3
// names). This is the dispatcher's "decode arguments" step as far as the
// envelope goes; garbage or truncated input yields an error, and the
// event loop then drops the message without sending a reply.
func ReadCall(message []byte) (*CallMessage, error) {
	r := bytes.NewReader(message)
	var hdr rawCallHeader
	n, err := xdr.Unmarshal(r, &hdr)
	if err != nil {
		return nil, fmt.Errorf("decode RPC call header: %w", err)
	}
	if hdr.MsgType != msgCall {
		return nil, fmt.Errorf("not a call message (type=%d)", hdr.MsgType)
	}

	return &CallMessage{
		XID: hdr.XID,
		Body: CallBody{
			RPCVersion: hdr.RPCVersion,
			Program:    hdr.Program,
			Version:    hdr.Version,
			Procedure:  hdr.Procedure,
			Cred:       hdr.Cred,
			Verf:       hdr.Verf,
		},
		Args: message[n:],
	}, nil
}

// acceptedReplyHeader is the wire layout of a successful or faulted
// accepted reply (RFC 5531 reply_body, accepted case), followed by the
// procedure result body (appended separately by the caller since its shape
// is per-procedure).
type acceptedReplyHeader struct {
	XID         uint32
	MsgType     uint32
	ReplyStat   uint32
	Verf        OpaqueAuth
	AcceptStat  uint32
}

// MakeSuccessReply builds a complete RPC reply carrying resultBody (already
// XDR-encoded by the per-procedure result encoder).
func MakeSuccessReply(xid uint32, resultBody []byte) ([]byte, error) {
	return makeAcceptedReply(xid, AcceptSuccess, resultBody)
}

// MakeFaultReply builds an accepted reply carrying one of the
// AcceptProgUnavail/AcceptProcUnavail/AcceptGarbageArgs/AcceptSystemErr
// status codes and no result body, per spec.md §4.3/§7.
func MakeFaultReply(xid uint32, status uint32) ([]byte, error) {
	return makeAcceptedReply(xid, status, nil)
}

func makeAcceptedReply(xid uint32, status uint32, resultBody []byte) ([]byte, error) {
	hdr := acceptedReplyHeader{
		XID:        xid,
		MsgType:    msgReply,
		ReplyStat:  msgAccepted,
		Verf:       OpaqueAuth{Flavor: AuthNull, Body: []byte{}},
		AcceptStat: status,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &hdr); err != nil {
		return nil, fmt.Errorf("encode reply header: %w", err)
	}
	buf.Write(resultBody)
	return buf.Bytes(), nil
}

// mismatchReplyHeader adds the (low, high) version range a PROG_MISMATCH
// reply must carry (RFC 5531).
type mismatchReplyHeader struct {
	XID        uint32
	MsgType    uint32
	ReplyStat  uint32
	Verf       OpaqueAuth
	AcceptStat uint32
	Low        uint32
	High       uint32
}

// MakeProgMismatchReply builds a PROG_MISMATCH reply naming the supported
// version range, used when a call names this server's program but an
// unsupported version.
func MakeProgMismatchReply(xid uint32, low, high uint32) ([]byte, error) {
	hdr := mismatchReplyHeader{
		XID:        xid,
		MsgType:    msgReply,
		ReplyStat:  msgAccepted,
		Verf:       OpaqueAuth{Flavor: AuthNull, Body: []byte{}},
		AcceptStat: AcceptProgMismatch,
		Low:        low,
		High:       high,
	}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &hdr); err != nil {
		return nil, fmt.Errorf("encode mismatch reply: %w", err)
	}
	return buf.Bytes(), nil
}
