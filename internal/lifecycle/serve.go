package lifecycle

import (
	"net"

	"github.com/unfsd-go/unfsd/internal/logger"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// inboundCall is one decoded RPC call waiting for its turn on the
// dispatch loop, along with however its reply must be delivered.
type inboundCall struct {
	table rpcsvc.Table
	call  *rpcsvc.CallMessage
	ci    *rpcsvc.CallInfo
	reply func(body []byte)
}

// serve runs the event loop: it never returns except when Shutdown closes
// s.stop, matching spec.md §3 ("the event loop ... never returns
// normally"). Every live transport feeds decoded calls into one channel;
// exactly one call is processed to completion (decode already done,
// handler run, reply encoded and sent) before the next is taken off the
// channel, so two handlers never run concurrently even though several
// transports are read from in parallel goroutines (spec.md §4.3:
// "single-threaded, cooperative dispatch model").
func (s *Supervisor) serve() error {
	calls := make(chan inboundCall, 64)

	for _, t := range s.liveTransports() {
		go s.pump(t, calls)
	}

	for {
		select {
		case <-s.stop:
			return nil
		case in := <-calls:
			s.handleOne(in)
		}
	}
}

func (s *Supervisor) liveTransports() []*rpcsvc.Transport {
	seen := make(map[*rpcsvc.Transport]bool)
	var out []*rpcsvc.Transport
	for _, t := range []*rpcsvc.Transport{s.nfsUDP, s.nfsTCP, s.mountUDP, s.mountTCP} {
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// pump reads calls off one transport and feeds them to calls, blocking
// until the transport closes.
func (s *Supervisor) pump(t *rpcsvc.Transport, calls chan<- inboundCall) {
	if t.Protocol == rpcsvc.UDP {
		s.pumpUDP(t, calls)
		return
	}
	s.pumpTCP(t, calls)
}

func (s *Supervisor) pumpUDP(t *rpcsvc.Transport, calls chan<- inboundCall) {
	conn := t.UDPConn()
	buf := make([]byte, rpcsvc.MaxUDPPacket)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])

		call, err := rpcsvc.ReadCall(raw)
		if err != nil {
			logger.Debug("dropping malformed udp datagram", "error", err, "from", addr)
			continue
		}

		ci := &rpcsvc.CallInfo{RemoteAddr: addr.IP.String(), RemotePort: addr.Port, Protocol: rpcsvc.UDP}
		s.attachAuth(ci, call)

		calls <- inboundCall{
			table: s.tableFor(call.Body.Program),
			call:  call,
			ci:    ci,
			reply: func(body []byte) {
				if _, err := conn.WriteToUDP(body, addr); err != nil {
					logger.Warn("udp reply failed", "error", err, "to", addr)
				}
			},
		}
	}
}

func (s *Supervisor) pumpTCP(t *rpcsvc.Transport, calls chan<- inboundCall) {
	ln := t.Listener()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.pumpTCPConn(conn, calls)
	}
}

// pumpTCPConn serves one TCP connection: since NFS over TCP is a
// request-response stream, it reads one record, waits for that call to
// be fully handled (done channel), writes the reply, then reads the
// next — serializing itself the same way a single client naturally
// would, while still funneling through the shared dispatch loop so no
// two calls from different connections ever run concurrently.
func (s *Supervisor) pumpTCPConn(conn net.Conn, calls chan<- inboundCall) {
	defer conn.Close()
	for {
		raw, err := rpcsvc.ReadRecord(conn)
		if err != nil {
			return
		}

		call, err := rpcsvc.ReadCall(raw)
		if err != nil {
			logger.Debug("dropping malformed tcp record", "error", err)
			continue
		}

		remote := conn.RemoteAddr().(*net.TCPAddr)
		ci := &rpcsvc.CallInfo{RemoteAddr: remote.IP.String(), RemotePort: remote.Port, Protocol: rpcsvc.TCP}
		s.attachAuth(ci, call)

		done := make(chan struct{})
		calls <- inboundCall{
			table: s.tableFor(call.Body.Program),
			call:  call,
			ci:    ci,
			reply: func(body []byte) {
				if err := rpcsvc.WriteRecord(conn, body); err != nil {
					logger.Warn("tcp reply failed", "error", err)
				}
				close(done)
			},
		}
		<-done
	}
}

func (s *Supervisor) attachAuth(ci *rpcsvc.CallInfo, call *rpcsvc.CallMessage) {
	ci.AuthFlavor = call.Body.Cred.Flavor
	if ci.AuthFlavor == rpcsvc.AuthUnix {
		if a, err := rpcsvc.ParseUnixAuth(call.Body.Cred.Body); err == nil {
			ci.Unix = a
		}
	}
}

func (s *Supervisor) tableFor(program uint32) rpcsvc.Table {
	if program == rpcsvc.ProgramMount {
		return s.mountTable
	}
	return s.nfsTable
}

// handleOne runs the per-call sequence of spec.md §4.3 for one already
// envelope-decoded call: program/version check, then rpcsvc.Dispatch for
// the procedure lookup/decode/handle/encode/release sequence, and finally
// reply delivery.
func (s *Supervisor) handleOne(in inboundCall) {
	body := in.call.Body

	if body.Program != rpcsvc.ProgramNFS3 && body.Program != rpcsvc.ProgramMount {
		reply, _ := rpcsvc.MakeFaultReply(in.call.XID, rpcsvc.AcceptProgUnavail)
		in.reply(reply)
		return
	}

	if !s.versionSupported(body.Program, body.Version) {
		low, high := s.versionRange(body.Program)
		reply, _ := rpcsvc.MakeProgMismatchReply(in.call.XID, low, high)
		in.reply(reply)
		return
	}

	resultBody, fault, ok := rpcsvc.Dispatch(in.table, body.Procedure, in.ci, in.call.Args)
	if !ok {
		if fault == rpcsvc.AcceptSystemErr {
			logger.Emergency("procedure failed with system error", "procedure", rpcsvc.Name(in.table, body.Procedure))
		}
		reply, _ := rpcsvc.MakeFaultReply(in.call.XID, fault)
		in.reply(reply)
		return
	}

	reply, err := rpcsvc.MakeSuccessReply(in.call.XID, resultBody)
	if err != nil {
		logger.Emergency("encoding reply failed", "error", err, "procedure", rpcsvc.Name(in.table, body.Procedure))
		reply, _ = rpcsvc.MakeFaultReply(in.call.XID, rpcsvc.AcceptSystemErr)
	}
	in.reply(reply)
}

func (s *Supervisor) versionSupported(program, version uint32) bool {
	if program == rpcsvc.ProgramMount {
		return version == rpcsvc.MountVersion1 || version == rpcsvc.MountVersion3
	}
	return version == rpcsvc.NFS3Version
}

func (s *Supervisor) versionRange(program uint32) (low, high uint32) {
	if program == rpcsvc.ProgramMount {
		return rpcsvc.MountVersion1, rpcsvc.MountVersion3
	}
	return rpcsvc.NFS3Version, rpcsvc.NFS3Version
}
