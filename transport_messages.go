package zenoh

import "encoding/binary"

// TransportKind discriminates the closed family of transport messages.
// Dispatch on Kind with a switch, never through an interface method call:
// the family is closed and fixed at compile time.
type TransportKind uint8

const (
	TransportKindInitSyn TransportKind = iota
	TransportKindInitAck
	TransportKindOpenSyn
	TransportKindOpenAck
	TransportKindClose
	TransportKindKeepAlive
)

// TransportMessage is a tagged union over the six transport message kinds.
// Exactly one of the named fields is meaningful, selected by Kind.
type TransportMessage struct {
	Kind      TransportKind
	InitSyn   InitSyn
	InitAck   InitAck
	OpenSyn   OpenSyn
	OpenAck   OpenAck
	Close     Close
	KeepAlive KeepAlive
}

// EncodedLen returns the exact wire length of the active variant.
func (m TransportMessage) EncodedLen() int {
	switch m.Kind {
	case TransportKindInitSyn:
		return m.InitSyn.EncodedLen()
	case TransportKindInitAck:
		return m.InitAck.EncodedLen()
	case TransportKindOpenSyn:
		return m.OpenSyn.EncodedLen()
	case TransportKindOpenAck:
		return m.OpenAck.EncodedLen()
	case TransportKindClose:
		return m.Close.EncodedLen()
	case TransportKindKeepAlive:
		return m.KeepAlive.EncodedLen()
	default:
		return 0
	}
}

// Encode writes the active variant's full wire representation (header byte
// included) into buf.
func (m TransportMessage) Encode(buf []byte) (int, error) {
	switch m.Kind {
	case TransportKindInitSyn:
		return m.InitSyn.Encode(buf)
	case TransportKindInitAck:
		return m.InitAck.Encode(buf)
	case TransportKindOpenSyn:
		return m.OpenSyn.Encode(buf)
	case TransportKindOpenAck:
		return m.OpenAck.Encode(buf)
	case TransportKindClose:
		return m.Close.Encode(buf)
	case TransportKindKeepAlive:
		return m.KeepAlive.Encode(buf)
	default:
		return 0, ErrInvalidAttribute
	}
}

// decodeTransportBody dispatches on the message ID and ack flag already
// extracted from the header byte by the batch reader, decoding the
// remainder of the message from buf (header byte excluded).
func decodeTransportBody(header byte, buf []byte) (TransportMessage, int, error) {
	id := headerID(header)
	ack := header&flagAck != 0
	switch id {
	case idInit:
		if !ack {
			m, n, err := decodeInitSynBody(header, buf)
			if err != nil {
				return TransportMessage{}, 0, err
			}
			return TransportMessage{Kind: TransportKindInitSyn, InitSyn: m}, n, nil
		}
		m, n, err := decodeInitAckBody(header, buf)
		if err != nil {
			return TransportMessage{}, 0, err
		}
		return TransportMessage{Kind: TransportKindInitAck, InitAck: m}, n, nil
	case idOpen:
		if !ack {
			m, n, err := decodeOpenSynBody(header, buf)
			if err != nil {
				return TransportMessage{}, 0, err
			}
			return TransportMessage{Kind: TransportKindOpenSyn, OpenSyn: m}, n, nil
		}
		m, n, err := decodeOpenAckBody(header, buf)
		if err != nil {
			return TransportMessage{}, 0, err
		}
		return TransportMessage{Kind: TransportKindOpenAck, OpenAck: m}, n, nil
	case idClose:
		m, n, err := decodeCloseBody(buf)
		if err != nil {
			return TransportMessage{}, 0, err
		}
		return TransportMessage{Kind: TransportKindClose, Close: m}, n, nil
	case idKeepAlive:
		return TransportMessage{Kind: TransportKindKeepAlive, KeepAlive: KeepAlive{}}, 0, nil
	default:
		return TransportMessage{}, 0, ErrInvalidDiscriminant
	}
}

// --- InitSyn ---

// InitSyn is the connector's initial handshake proposal.
type InitSyn struct {
	Version    uint8
	ZID        ZenohID
	Resolution Resolution
	BatchSize  BatchSize
	Extensions []Extension
}

func (m InitSyn) EncodedLen() int {
	n := 1 + 1 + BytesLen(m.ZID.Size()) + 1 + 2
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m InitSyn) Encode(buf []byte) (int, error) {
	need := m.EncodedLen()
	if len(buf) < need {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	off := 0
	buf[off] = makeHeader(idInit, flags)
	off++
	buf[off] = m.Version
	off++
	n, err := EncodeZenohID(buf[off:], m.ZID)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = EncodeResolution(buf[off:], m.Resolution)
	if err != nil {
		return 0, err
	}
	off += n
	binary.LittleEndian.PutUint16(buf[off:], uint16(m.BatchSize))
	off += 2
	n, err = EncodeExtensions(buf[off:], m.Extensions)
	if err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func decodeInitSynBody(header byte, buf []byte) (InitSyn, int, error) {
	var m InitSyn
	if len(buf) < 1 {
		return InitSyn{}, 0, ErrShortInput
	}
	m.Version = buf[0]
	off := 1
	zid, n, err := DecodeZenohID(buf[off:])
	if err != nil {
		return InitSyn{}, 0, err
	}
	m.ZID = zid
	off += n
	res, n, err := DecodeResolution(buf[off:])
	if err != nil {
		return InitSyn{}, 0, err
	}
	m.Resolution = res
	off += n
	if len(buf[off:]) < 2 {
		return InitSyn{}, 0, ErrShortInput
	}
	m.BatchSize = BatchSize(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return InitSyn{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- InitAck ---

// InitAck is the listener's response, echoing its own proposal and carrying
// a cookie the connector must return verbatim in OpenSyn.
type InitAck struct {
	Version    uint8
	ZID        ZenohID
	Resolution Resolution
	BatchSize  BatchSize
	Cookie     []byte
	Extensions []Extension
}

func (m InitAck) EncodedLen() int {
	n := 1 + 1 + BytesLen(m.ZID.Size()) + 1 + 2 + BytesLen(len(m.Cookie))
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m InitAck) Encode(buf []byte) (int, error) {
	need := m.EncodedLen()
	if len(buf) < need {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(flagAck)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	off := 0
	buf[off] = makeHeader(idInit, flags)
	off++
	buf[off] = m.Version
	off++
	n, err := EncodeZenohID(buf[off:], m.ZID)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = EncodeResolution(buf[off:], m.Resolution)
	if err != nil {
		return 0, err
	}
	off += n
	binary.LittleEndian.PutUint16(buf[off:], uint16(m.BatchSize))
	off += 2
	n, err = PutBytes(buf[off:], m.Cookie)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = EncodeExtensions(buf[off:], m.Extensions)
	if err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func decodeInitAckBody(header byte, buf []byte) (InitAck, int, error) {
	var m InitAck
	if len(buf) < 1 {
		return InitAck{}, 0, ErrShortInput
	}
	m.Version = buf[0]
	off := 1
	zid, n, err := DecodeZenohID(buf[off:])
	if err != nil {
		return InitAck{}, 0, err
	}
	m.ZID = zid
	off += n
	res, n, err := DecodeResolution(buf[off:])
	if err != nil {
		return InitAck{}, 0, err
	}
	m.Resolution = res
	off += n
	if len(buf[off:]) < 2 {
		return InitAck{}, 0, ErrShortInput
	}
	m.BatchSize = BatchSize(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	cookie, n, err := GetBytes(buf[off:])
	if err != nil {
		return InitAck{}, 0, err
	}
	m.Cookie = cookie
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return InitAck{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- OpenSyn / OpenAck ---

// OpenSyn carries the connector's lease and derived sequence number, plus
// the cookie echoed verbatim from InitAck.
type OpenSyn struct {
	LeaseMillis uint64
	SN          uint64
	Cookie      []byte
	Extensions  []Extension
}

func (m OpenSyn) EncodedLen() int {
	n := 1 + ZIntLen(m.LeaseMillis) + ZIntLen(m.SN) + BytesLen(len(m.Cookie))
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m OpenSyn) Encode(buf []byte) (int, error) {
	need := m.EncodedLen()
	if len(buf) < need {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	off := 0
	buf[off] = makeHeader(idOpen, flags)
	off++
	n, err := PutZInt(buf[off:], m.LeaseMillis)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutZInt(buf[off:], m.SN)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutBytes(buf[off:], m.Cookie)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = EncodeExtensions(buf[off:], m.Extensions)
	if err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func decodeOpenSynBody(header byte, buf []byte) (OpenSyn, int, error) {
	var m OpenSyn
	lease, n, err := GetZInt(buf)
	if err != nil {
		return OpenSyn{}, 0, err
	}
	m.LeaseMillis = lease
	off := n
	sn, n, err := GetZInt(buf[off:])
	if err != nil {
		return OpenSyn{}, 0, err
	}
	m.SN = sn
	off += n
	cookie, n, err := GetBytes(buf[off:])
	if err != nil {
		return OpenSyn{}, 0, err
	}
	m.Cookie = cookie
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return OpenSyn{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// OpenAck completes the handshake from the listener's side.
type OpenAck struct {
	LeaseMillis uint64
	SN          uint64
	Extensions  []Extension
}

func (m OpenAck) EncodedLen() int {
	n := 1 + ZIntLen(m.LeaseMillis) + ZIntLen(m.SN)
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m OpenAck) Encode(buf []byte) (int, error) {
	need := m.EncodedLen()
	if len(buf) < need {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(flagAck)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	off := 0
	buf[off] = makeHeader(idOpen, flags)
	off++
	n, err := PutZInt(buf[off:], m.LeaseMillis)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutZInt(buf[off:], m.SN)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = EncodeExtensions(buf[off:], m.Extensions)
	if err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func decodeOpenAckBody(header byte, buf []byte) (OpenAck, int, error) {
	var m OpenAck
	lease, n, err := GetZInt(buf)
	if err != nil {
		return OpenAck{}, 0, err
	}
	m.LeaseMillis = lease
	off := n
	sn, n, err := GetZInt(buf[off:])
	if err != nil {
		return OpenAck{}, 0, err
	}
	m.SN = sn
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return OpenAck{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- Close / KeepAlive ---

// Close carries a single reason code byte.
type Close struct {
	Reason uint8
}

func (m Close) EncodedLen() int { return 2 }

func (m Close) Encode(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrBufferTooSmall
	}
	buf[0] = makeHeader(idClose, 0)
	buf[1] = m.Reason
	return 2, nil
}

func decodeCloseBody(buf []byte) (Close, int, error) {
	if len(buf) < 1 {
		return Close{}, 0, ErrShortInput
	}
	return Close{Reason: buf[0]}, 1, nil
}

// KeepAlive has an empty body.
type KeepAlive struct{}

func (m KeepAlive) EncodedLen() int { return 1 }

func (m KeepAlive) Encode(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, ErrBufferTooSmall
	}
	buf[0] = makeHeader(idKeepAlive, 0)
	return 1, nil
}
