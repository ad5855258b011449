package zenoh

import (
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// NewRandomZenohID generates a 16-byte peer identifier, used when a host
// does not supply one explicitly via WithZenohID.
func NewRandomZenohID() ZenohID {
	id := uuid.New()
	z, _ := NewZenohID(id[:])
	return z
}

// deriveSNMask is the per-width mask applied to the derived FrameSN: the
// Shake128 output is always read as 32 bits regardless of the negotiated
// width, and masked down per this table rather than a plain 2^width-1 (U8
// keeps 7 bits, U16 14 bits, U32 28 bits and U64 31 bits).
var deriveSNMask = map[Width]uint32{
	WidthU8:  0x7F,
	WidthU16: 0x3FFF,
	WidthU32: 0x0FFFFFFF,
	WidthU64: 0x7FFFFFFF,
}

// DeriveInitialSN computes the handshake's initial FrameSN as
// Shake128(mine || other) masked to the negotiated FrameSN width.
func DeriveInitialSN(mine, other ZenohID, w Width) uint64 {
	data := make([]byte, 0, mine.Size()+other.Size())
	data = append(data, mine.Bytes()...)
	data = append(data, other.Bytes()...)

	var out [4]byte
	sha3.ShakeSum128(out[:], data)
	v := binary.LittleEndian.Uint32(out[:])

	return uint64(v & deriveSNMask[w])
}
