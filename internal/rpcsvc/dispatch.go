package rpcsvc

import "fmt"

// ArgDecoder decodes a procedure's raw XDR argument body into a concrete,
// per-procedure argument value.
type ArgDecoder func(data []byte) (args any, err error)

// ResultEncoder encodes a procedure's result value back to XDR bytes for
// the reply.
type ResultEncoder func(result any) (data []byte, err error)

// HandlerFunc executes one procedure given its decoded arguments and the
// calling context, returning the result value to encode.
type HandlerFunc func(ci *CallInfo, args any) (result any, err error)

// ReleaseFunc frees any per-call scratch storage a handler allocated
// (spec.md §4.3: "Release any dynamically allocated argument storage").
// No NFS3 or MOUNT procedure in this server sets one; READDIR's entry
// window is an ordinary per-call slice.
type ReleaseFunc func(args any)

// Procedure is one entry of a per-program dispatch table: the triple of
// (argument decoder, result encoder, handler) spec.md §4.3 names, plus
// metadata used for logging.
type Procedure struct {
	Name    string
	Decode  ArgDecoder
	Encode  ResultEncoder
	Handle  HandlerFunc
	Release ReleaseFunc
}

// Table maps procedure numbers to their Procedure within one (program,
// version) pair.
type Table map[uint32]*Procedure

// Null is the shared NULL-procedure implementation: every NFS3 and MOUNT
// program's procedure 0 is defined by spec.md §4.3 as "a no-op returning
// void".
var Null = &Procedure{
	Name:   "NULL",
	Decode: func([]byte) (any, error) { return nil, nil },
	Encode: func(any) ([]byte, error) { return nil, nil },
	Handle: func(*CallInfo, any) (any, error) { return nil, nil },
}

// Dispatch runs the per-call sequence of spec.md §4.3 for one decoded RPC
// call against one program's table: procedure lookup, argument decode,
// handler invocation, result encode, and release — in that order, with
// Release always running even if Handle returns an error.
//
// It returns the reply body to embed in a success reply, or an RPC
// accept_stat fault code (AcceptProcUnavail/AcceptGarbageArgs/
// AcceptSystemErr) with ok=false, matching the fault vocabulary of
// spec.md §4.3/§7 exactly: unknown procedure numbers are rejected with
// "no such procedure"; decode failure stops before the handler runs and
// returns "garbage arguments"; encode failure is logged at critical
// severity (by the caller, which has the logger) and returns "system
// error".
func Dispatch(table Table, proc uint32, ci *CallInfo, rawArgs []byte) (reply []byte, fault uint32, ok bool) {
	entry, known := table[proc]
	if !known {
		return nil, AcceptProcUnavail, false
	}

	args, err := entry.Decode(rawArgs)
	if err != nil {
		return nil, AcceptGarbageArgs, false
	}

	if entry.Release != nil {
		defer entry.Release(args)
	}

	result, err := entry.Handle(ci, args)
	if err != nil {
		return nil, AcceptSystemErr, false
	}

	body, err := entry.Encode(result)
	if err != nil {
		return nil, AcceptSystemErr, false
	}

	return body, AcceptSuccess, true
}

// Name returns the procedure name for proc in table, or a placeholder if
// unknown — used for logging only.
func Name(table Table, proc uint32) string {
	if p, ok := table[proc]; ok {
		return p.Name
	}
	return fmt.Sprintf("proc#%d", proc)
}
