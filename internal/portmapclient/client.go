// Package portmapclient implements spec.md §4.2, the registration layer:
// advertising (program, version, protocol, port) with the system
// portmapper, or suppressing that traffic entirely when run
// portmapperless (-p).
//
// This is an RPC *client* to the portmapper (RFC 1057 PMAP_PROG), the
// mirror image of the teacher's internal/protocol/portmap, which
// implements a portmapper *server*. Registering against an external
// portmapper is the contract spec.md §4.2 and §6 describe; it is grounded
// on the same request/reply construction idiom the teacher's
// internal/protocol/nlm/callback client uses to talk to a remote peer over
// a fresh connection.
package portmapclient

import (
	"bytes"
	"fmt"
	"net"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/unfsd-go/unfsd/internal/logger"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// Well-known portmapper port and procedure numbers (RFC 1057 §4).
const (
	Port = 111

	procNull   = 0
	procSet    = 1
	procUnset  = 2
	procGetPort = 3
)

// IPProto values as carried in a pmap_mapping, matching IPPROTO_UDP/TCP.
const (
	IPProtoUDP = 17
	IPProtoTCP = 6
)

const dialTimeout = 5 * time.Second

// mapping is the wire structure of pmap_mapping (RFC 1057).
type mapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// Client talks to a portmapper over UDP, matching the original's use of
// the local pmap_set/pmap_unset library calls, which are themselves a thin
// RPC client to portmapper.
type Client struct {
	addr string
}

// New returns a client for the portmapper at host (typically "localhost"
// or empty for the local machine).
func New(host string) *Client {
	if host == "" {
		host = "127.0.0.1"
	}
	return &Client{addr: fmt.Sprintf("%s:%d", host, Port)}
}

// Unset clears any stale advertisement for (program, version) left behind
// by a previous run of the server, per spec.md §4.2: "call the portmapper
// unset first (to clear stale advertisements from a previous run)".
// Failures are logged but not fatal — there may simply be nothing to
// clear.
func (c *Client) Unset(program, version uint32) {
	if _, err := c.call(procUnset, mapping{Program: program, Version: version}); err != nil {
		logger.Debug("portmapper unset failed (ignored)", "program", program, "version", version, "error", err)
	}
}

// Set registers (program, version, protocol, port) with the portmapper.
// protocol is 0 to bind the dispatch callback to a transport without
// portmapper traffic (spec.md §4.2: "expressed by passing protocol zero"),
// in which case Set is a local no-op and never contacts the portmapper.
func (c *Client) Set(program, version, protocol uint32, port int) error {
	if protocol == 0 {
		return nil
	}

	reply, err := c.call(procSet, mapping{
		Program:  program,
		Version:  version,
		Protocol: protocol,
		Port:     uint32(port),
	})
	if err != nil {
		return fmt.Errorf("register (program=%d version=%d protocol=%d port=%d): %w",
			program, version, protocol, port, err)
	}

	var ok uint32
	if _, err := xdr.Unmarshal(bytes.NewReader(reply), &ok); err != nil {
		return fmt.Errorf("decode SET reply: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("portmapper refused registration (program=%d version=%d protocol=%d port=%d)",
			program, version, protocol, port)
	}
	return nil
}

// call sends one portmapper RPC call over a fresh UDP socket (datagram
// requests complete in a single exchange, no record marking) and returns
// the raw result body.
func (c *Client) call(proc uint32, args mapping) ([]byte, error) {
	conn, err := net.DialTimeout("udp", c.addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial portmapper at %s: %w", c.addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))

	var argBuf bytes.Buffer
	if _, err := xdr.Marshal(&argBuf, &args); err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	xid := uint32(time.Now().UnixNano())
	callMsg, err := buildCall(xid, rpcsvc.ProgramPortmap, rpcsvc.PortmapVersion2, proc, argBuf.Bytes())
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(callMsg); err != nil {
		return nil, fmt.Errorf("write call: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	return parseReply(buf[:n])
}

// callHeader is the wire layout of an RPC call with an AUTH_NULL
// credential and verifier, sufficient for portmapper traffic.
type callHeader struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       rpcsvc.OpaqueAuth
	Verf       rpcsvc.OpaqueAuth
}

func buildCall(xid, program, version, proc uint32, args []byte) ([]byte, error) {
	hdr := callHeader{
		XID:        xid,
		MsgType:    0,
		RPCVersion: 2,
		Program:    program,
		Version:    version,
		Procedure:  proc,
		Cred:       rpcsvc.OpaqueAuth{Flavor: rpcsvc.AuthNull, Body: []byte{}},
		Verf:       rpcsvc.OpaqueAuth{Flavor: rpcsvc.AuthNull, Body: []byte{}},
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &hdr); err != nil {
		return nil, fmt.Errorf("encode call header: %w", err)
	}
	buf.Write(args)
	return buf.Bytes(), nil
}

type replyHeader struct {
	XID        uint32
	MsgType    uint32
	ReplyStat  uint32
	Verf       rpcsvc.OpaqueAuth
	AcceptStat uint32
}

func parseReply(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	var hdr replyHeader
	n, err := xdr.Unmarshal(r, &hdr)
	if err != nil {
		return nil, fmt.Errorf("decode reply header: %w", err)
	}
	if hdr.AcceptStat != rpcsvc.AcceptSuccess {
		return nil, fmt.Errorf("portmapper rejected call (accept_stat=%d)", hdr.AcceptStat)
	}
	return data[n:], nil
}
