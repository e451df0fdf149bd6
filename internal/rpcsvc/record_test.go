package rpcsvc_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

func TestRecord_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello nfs")

	require.NoError(t, rpcsvc.WriteRecord(&buf, payload))

	got, err := rpcsvc.ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRecord_MultiFragment(t *testing.T) {
	var buf bytes.Buffer

	// Two fragments: first not marked last, second marked last.
	frag1 := []byte("part-one-")
	frag2 := []byte("part-two")

	writeFragment(&buf, frag1, false)
	writeFragment(&buf, frag2, true)

	got, err := rpcsvc.ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, frag1...), frag2...), got)
}

func writeFragment(buf *bytes.Buffer, data []byte, last bool) {
	word := uint32(len(data))
	if last {
		word |= 0x80000000
	}
	var hdr [4]byte
	hdr[0] = byte(word >> 24)
	hdr[1] = byte(word >> 16)
	hdr[2] = byte(word >> 8)
	hdr[3] = byte(word)
	buf.Write(hdr[:])
	buf.Write(data)
}
