package zenoh

import "encoding/binary"

// putFixed writes v as a little-endian integer occupying exactly w.Bytes()
// bytes. Callers are responsible for checking buf has enough room.
func putFixed(buf []byte, v uint64, w Width) error {
	switch w {
	case WidthU8:
		buf[0] = byte(v)
	case WidthU16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case WidthU32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case WidthU64:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return nil
}

// getFixed reads a little-endian integer occupying exactly w.Bytes() bytes.
// Callers are responsible for checking buf has enough room.
func getFixed(buf []byte, w Width) uint64 {
	switch w {
	case WidthU8:
		return uint64(buf[0])
	case WidthU16:
		return uint64(binary.LittleEndian.Uint16(buf))
	case WidthU32:
		return uint64(binary.LittleEndian.Uint32(buf))
	case WidthU64:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}
