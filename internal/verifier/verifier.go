// Package verifier generates and holds the server's write verifier.
//
// The write verifier is an 8-byte opaque value returned with every WRITE
// and COMMIT reply. A client that sees the verifier change between two
// calls infers the server restarted and that any unstable (UNSTABLE mode)
// writes it hadn't yet COMMITted may have been lost, and retransmits them.
// Per spec.md §3 it must stay byte-identical for the life of the process.
package verifier

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"os"
	"time"
)

// Verifier is an 8-byte opaque write verifier.
//
// Layout intent (spec.md §9 Open Questions): the first 32 bits are the
// process id XOR a random value, the next 32 bits are the startup time.
// The original C source arrived at this by pointer-striding into a
// writeverf3 array of uint32 elements (*(wverf+0), *(wverf+4) stride by
// 4*sizeof(uint32) rather than 4 bytes, a latent bug); this implementation
// expresses the intended two-word layout directly instead of reproducing
// the stride bug.
type Verifier [8]byte

// Generate produces a new verifier from the current process id, a random
// value, and the current time, per spec.md §3.
func Generate() (Verifier, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<32))
	if err != nil {
		return Verifier{}, err
	}

	var v Verifier
	pidXorRand := uint32(os.Getpid()) ^ uint32(n.Uint64())
	binary.LittleEndian.PutUint32(v[0:4], pidXorRand)
	binary.LittleEndian.PutUint32(v[4:8], uint32(time.Now().Unix()))
	return v, nil
}

// Bytes returns the verifier as a plain byte slice suitable for embedding
// in a WRITE3res/COMMIT3res wire structure.
func (v Verifier) Bytes() []byte {
	out := make([]byte, 8)
	copy(out, v[:])
	return out
}
