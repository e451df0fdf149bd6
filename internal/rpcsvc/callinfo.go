package rpcsvc

// CallInfo describes the caller of an in-flight RPC call: everything a
// handler needs about the transport and credentials, replacing the
// original's get_remote()/get_port()/get_socket_type()/rqstp plumbing
// (spec.md §4.3).
type CallInfo struct {
	RemoteAddr string
	RemotePort int
	Protocol   Protocol

	AuthFlavor uint32
	Unix       *UnixAuth // nil unless AuthFlavor == AuthUnix and parsing succeeded
}

// IsStream reports whether the call arrived on a stream (TCP) socket, the
// helper spec.md §4.3 says handlers use to enforce the 32 KiB UDP reply
// ceiling for READ.
func (c *CallInfo) IsStream() bool { return c.Protocol == TCP }
