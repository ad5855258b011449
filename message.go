package zenoh

// MessageKind discriminates what BatchReader.Next yielded.
type MessageKind uint8

const (
	MessageKindNetwork MessageKind = iota
	MessageKindTransport
)

// Message is a tagged union yielded by BatchReader: either a NetworkMessage
// (with reliability/qos inherited from its enclosing FrameHeader) or a bare
// TransportMessage.
type Message struct {
	Kind      MessageKind
	Network   NetworkMessage
	Transport TransportMessage
}

// isFrameID reports whether a header byte's ID names a FrameHeader rather
// than a message body.
func isFrameID(header byte) bool { return headerID(header) == idFrame }

// isTransportID reports whether a header byte's ID belongs to the
// transport family (as opposed to network or the FrameHeader control id).
func isTransportID(header byte) bool {
	switch headerID(header) {
	case idInit, idOpen, idClose, idKeepAlive:
		return true
	default:
		return false
	}
}
