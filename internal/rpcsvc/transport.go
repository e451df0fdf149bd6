package rpcsvc

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// MaxUDPPacket is the NFS maximum UDP packet size (spec.md §4.1): UDP
// transports set explicit send/receive buffers to this size so that large
// reads and writes are not fragmented above the RPC layer.
const MaxUDPPacket = 32768

// Protocol selects UDP or TCP for a Transport.
type Protocol int

const (
	UDP Protocol = iota
	TCP
)

func (p Protocol) String() string {
	if p == TCP {
		return "tcp"
	}
	return "udp"
}

// Transport is the descriptor of spec.md §3: it owns a socket and the RPC
// service state attached to it. Exactly one Transport exists per (protocol,
// port) pair the server listens on; none are created or destroyed once the
// service loop begins (spec.md §3 Invariants).
type Transport struct {
	Protocol Protocol
	Port     int // actual bound port (resolved if the configured port was 0)

	udpConn  *net.UDPConn
	tcpListn net.Listener
}

// reuseAddrControl enables SO_REUSEADDR on the listening socket before
// bind, matching the original's setsockopt(SO_REUSEADDR) call — needed so
// a restarted server can immediately rebind a port still in TIME_WAIT.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// NewTransport creates and binds a transport for the given protocol, bind
// address, and port, per spec.md §4.1.
//
// A port of zero requests an anonymous, OS-chosen socket. A non-zero port
// must bind explicitly to bindAddr: the configured port is a compatibility
// surface clients may hardcode (e.g. via "mount -o port="), so silent
// reassignment on bind failure would be wrong — bind failure is returned
// to the caller, who per spec.md §4.1 treats it as fatal to startup.
func NewTransport(proto Protocol, bindAddr string, port int) (*Transport, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	addr := fmt.Sprintf("%s:%d", bindAddr, port)

	switch proto {
	case UDP:
		pc, err := lc.ListenPacket(context.Background(), "udp", addr)
		if err != nil {
			return nil, fmt.Errorf("bind udp %s: %w", addr, err)
		}
		conn := pc.(*net.UDPConn)
		if err := conn.SetReadBuffer(MaxUDPPacket); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set udp read buffer: %w", err)
		}
		if err := conn.SetWriteBuffer(MaxUDPPacket); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set udp write buffer: %w", err)
		}
		return &Transport{Protocol: UDP, Port: resolvedPort(conn.LocalAddr()), udpConn: conn}, nil

	case TCP:
		ln, err := lc.Listen(context.Background(), "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("bind tcp %s: %w", addr, err)
		}
		return &Transport{Protocol: TCP, Port: resolvedPort(ln.Addr()), tcpListn: ln}, nil

	default:
		return nil, fmt.Errorf("unknown protocol %v", proto)
	}
}

func resolvedPort(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.Port
	case *net.TCPAddr:
		return a.Port
	default:
		return 0
	}
}

// UDPConn exposes the underlying UDP connection for the event loop.
func (t *Transport) UDPConn() *net.UDPConn { return t.udpConn }

// Listener exposes the underlying TCP listener for the event loop.
func (t *Transport) Listener() net.Listener { return t.tcpListn }

// Close releases the transport's socket. Called only during teardown
// (spec.md §3: "No transport is created or destroyed after the service
// loop begins").
func (t *Transport) Close() error {
	if t.udpConn != nil {
		return t.udpConn.Close()
	}
	if t.tcpListn != nil {
		return t.tcpListn.Close()
	}
	return nil
}
