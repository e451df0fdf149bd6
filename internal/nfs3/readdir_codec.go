package nfs3

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// wireEntry mirrors entry3 (RFC 1813 §3.3.16): a linked list on the wire,
// expressed here as a flat slice with an explicit HasNext flag per node
// instead of the original's nextentry pointer chain.
type wireEntry struct {
	FileID  uint64
	Name    string
	Cookie  uint64
	HasNext bool
}

// wireReadDirOK mirrors READDIR3resok's entry-list tail: the cookie
// verifier, the entry list, and the eof flag. Directory attributes (the
// post_op_attr the real RFC-shaped resok also carries) are out of scope
// per spec.md §1 and are omitted here; a full implementation would
// prepend them ahead of the cookie verifier.
type wireReadDirOK struct {
	CookieVerf CookieVerifier
	HasEntries bool
	EOF        bool
}

// EncodeReadDirOK XDR-encodes a successful READDIR result: the cookie
// verifier, followed by the entry list encoded as a sequence of
// (value_follows=true, entry) pairs terminated by value_follows=false, and
// finally the eof flag.
func EncodeReadDirOK(result ReadDirResult) ([]byte, error) {
	var buf bytes.Buffer

	if _, err := xdr.Marshal(&buf, &result.Verf); err != nil {
		return nil, fmt.Errorf("encode cookie verifier: %w", err)
	}

	for _, e := range result.Entries {
		present := true
		if _, err := xdr.Marshal(&buf, &present); err != nil {
			return nil, fmt.Errorf("encode value_follows: %w", err)
		}
		wire := struct {
			FileID uint64
			Name   string
			Cookie uint64
		}{e.FileID, e.Name, e.Cookie}
		if _, err := xdr.Marshal(&buf, &wire); err != nil {
			return nil, fmt.Errorf("encode entry %q: %w", e.Name, err)
		}
	}
	absent := false
	if _, err := xdr.Marshal(&buf, &absent); err != nil {
		return nil, fmt.Errorf("encode list terminator: %w", err)
	}

	if _, err := xdr.Marshal(&buf, &result.EOF); err != nil {
		return nil, fmt.Errorf("encode eof: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadDirArgs mirrors READDIR3args (RFC 1813 §3.3.16).
type ReadDirArgs struct {
	FileHandle []byte
	Cookie     uint64
	CookieVerf CookieVerifier
	Count      uint32
}

// DecodeReadDirArgs decodes READDIR3args from its XDR body.
func DecodeReadDirArgs(data []byte) (ReadDirArgs, error) {
	var wire struct {
		FileHandle []byte
		Cookie     uint64
		CookieVerf CookieVerifier
		Count      uint32
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &wire); err != nil {
		return ReadDirArgs{}, fmt.Errorf("decode READDIR3args: %w", err)
	}
	return ReadDirArgs(wire), nil
}
