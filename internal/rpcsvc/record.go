package rpcsvc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFragmentSize bounds a single RPC record-marked TCP fragment, guarding
// against memory exhaustion from a malformed or hostile length field.
const maxFragmentSize = 1 << 20

// fragmentHeader is the 4-byte RPC record-marking header RFC 5531 §11
// prefixes to every TCP fragment: the high bit marks the last fragment of
// a record, the remaining 31 bits are its length.
type fragmentHeader struct {
	Last   bool
	Length uint32
}

// ReadRecord reads one complete RPC record (all of its fragments
// concatenated) from a stream transport.
func ReadRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		var raw [4]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, err
		}
		word := binary.BigEndian.Uint32(raw[:])
		hdr := fragmentHeader{
			Last:   word&0x80000000 != 0,
			Length: word & 0x7fffffff,
		}
		if hdr.Length > maxFragmentSize {
			return nil, fmt.Errorf("rpc fragment too large: %d bytes", hdr.Length)
		}

		frag := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, err
		}
		record = append(record, frag...)

		if hdr.Last {
			return record, nil
		}
	}
}

// WriteRecord frames data as a single, final RPC fragment and writes it.
func WriteRecord(w io.Writer, data []byte) error {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(data))|0x80000000)
	if _, err := w.Write(raw[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
