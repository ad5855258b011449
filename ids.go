package zenoh

// Version is the wire protocol version this codec implements.
const Version uint8 = 9

// Message IDs: the low 5 bits of every message's header byte. Init/Open
// share one ID each with their Ack counterpart, discriminated by flagAck.
const (
	idInit        uint8 = 0x01
	idOpen        uint8 = 0x02
	idClose       uint8 = 0x03
	idKeepAlive   uint8 = 0x04
	idFrame       uint8 = 0x05
	idPush        uint8 = 0x06
	idRequest     uint8 = 0x07
	idResponse    uint8 = 0x08
	idResponseFin uint8 = 0x09
	idInterest    uint8 = 0x0A
	idDeclare     uint8 = 0x0B
)

const (
	idMask     = 0x1F
	flagsShift = 5
)

// flagAck is header bit 5 (0x20): the Ack discriminator shared by
// Init/InitAck and Open/OpenAck.
const flagAck = 0x20

// flagReliable is header bit 5 (0x20) on a FrameHeader.
const flagReliable = 0x20

// flagExtensions is header bit 6 (0x40): set when an extension chain
// follows the fixed body of a message that supports extensions (Init,
// Open, FrameHeader, Push, Request, Response, ResponseFinal, Declare;
// Interest marks its extensions with bit 5 instead). Its absence means
// zero extensions, with no need to probe the remaining bytes.
const flagExtensions = 0x40

// Interest's top two flag bits (0x40, 0x80); both clear means InterestFinal.
const (
	flagInterestRestricted = 0x40
	flagInterestCurrent    = 0x80
)

func headerID(h byte) uint8    { return h & idMask }
func headerFlags(h byte) uint8 { return (h >> flagsShift) & 0x7 }

// makeHeader combines a 5-bit message ID with already-positioned flag bits
// (e.g. flagAck, flagExtensions — values in {0x20, 0x40, 0x80} and their
// combinations), not a pre-shift 3-bit value.
func makeHeader(id uint8, flagBits uint8) byte {
	return (id & idMask) | (flagBits &^ idMask)
}
