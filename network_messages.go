package zenoh

// WireExpr is a key expression as carried on the wire: either a numeric
// resource ID, a literal suffix string, or both (ID plus a relative
// suffix appended to a previously declared prefix).
type WireExpr struct {
	ID     uint64
	Suffix []byte
}

func wireExprLen(w WireExpr) int {
	return ZIntLen(w.ID) + BytesLen(len(w.Suffix))
}

func encodeWireExpr(buf []byte, w WireExpr) (int, error) {
	n, err := PutZInt(buf, w.ID)
	if err != nil {
		return 0, err
	}
	off := n
	n, err = PutBytes(buf[off:], w.Suffix)
	if err != nil {
		return 0, err
	}
	return off + n, nil
}

func decodeWireExpr(buf []byte) (WireExpr, int, error) {
	id, n, err := GetZInt(buf)
	if err != nil {
		return WireExpr{}, 0, err
	}
	off := n
	suffix, n, err := GetBytes(buf[off:])
	if err != nil {
		return WireExpr{}, 0, err
	}
	return WireExpr{ID: id, Suffix: suffix}, off + n, nil
}

func putRequestID(buf []byte, id uint64, w Width) (int, error) {
	n := w.Bytes()
	if len(buf) < n {
		return 0, ErrBufferTooSmall
	}
	return n, putFixed(buf, id, w)
}

func getRequestID(buf []byte, w Width) (uint64, int, error) {
	n := w.Bytes()
	if len(buf) < n {
		return 0, 0, ErrShortInput
	}
	return getFixed(buf, w), n, nil
}

// NetworkKind discriminates the closed family of network messages.
type NetworkKind uint8

const (
	NetworkKindPush NetworkKind = iota
	NetworkKindRequest
	NetworkKindResponse
	NetworkKindResponseFinal
	NetworkKindInterest
	NetworkKindInterestFinal
	NetworkKindDeclare
)

// NetworkBody is a tagged union over the seven network message kinds.
type NetworkBody struct {
	Kind          NetworkKind
	Push          Push
	Request       Request
	Response      Response
	ResponseFinal ResponseFinal
	Interest      Interest
	InterestFinal InterestFinal
	Declare       Declare
}

// NetworkMessage pairs a body with the (reliability, qos) it inherits from
// its enclosing FrameHeader.
type NetworkMessage struct {
	Reliability Reliability
	QoS         QoS
	Body        NetworkBody
}

func (b NetworkBody) encodedLen(res Resolution) int {
	switch b.Kind {
	case NetworkKindPush:
		return b.Push.encodedLen()
	case NetworkKindRequest:
		return b.Request.encodedLen(res)
	case NetworkKindResponse:
		return b.Response.encodedLen(res)
	case NetworkKindResponseFinal:
		return b.ResponseFinal.encodedLen(res)
	case NetworkKindInterest:
		return b.Interest.encodedLen(res)
	case NetworkKindInterestFinal:
		return b.InterestFinal.encodedLen(res)
	case NetworkKindDeclare:
		return b.Declare.encodedLen()
	default:
		return 0
	}
}

func (b NetworkBody) encode(buf []byte, res Resolution) (int, error) {
	switch b.Kind {
	case NetworkKindPush:
		return b.Push.encode(buf)
	case NetworkKindRequest:
		return b.Request.encode(buf, res)
	case NetworkKindResponse:
		return b.Response.encode(buf, res)
	case NetworkKindResponseFinal:
		return b.ResponseFinal.encode(buf, res)
	case NetworkKindInterest:
		return b.Interest.encode(buf, res)
	case NetworkKindInterestFinal:
		return b.InterestFinal.encode(buf, res)
	case NetworkKindDeclare:
		return b.Declare.encode(buf)
	default:
		return 0, ErrInvalidAttribute
	}
}

// decodeNetworkBody dispatches on the message ID (and, for Interest, the
// header flags) already read by the batch reader.
func decodeNetworkBody(header byte, buf []byte, res Resolution) (NetworkBody, int, error) {
	switch headerID(header) {
	case idPush:
		m, n, err := decodePushBody(header, buf)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindPush, Push: m}, n, nil
	case idRequest:
		m, n, err := decodeRequestBody(header, buf, res)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindRequest, Request: m}, n, nil
	case idResponse:
		m, n, err := decodeResponseBody(header, buf, res)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindResponse, Response: m}, n, nil
	case idResponseFin:
		m, n, err := decodeResponseFinalBody(header, buf, res)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindResponseFinal, ResponseFinal: m}, n, nil
	case idInterest:
		if header&(flagInterestRestricted|flagInterestCurrent) == 0 {
			m, n, err := decodeInterestFinalBody(buf, res)
			if err != nil {
				return NetworkBody{}, 0, err
			}
			return NetworkBody{Kind: NetworkKindInterestFinal, InterestFinal: m}, n, nil
		}
		m, n, err := decodeInterestBody(header, buf, res)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindInterest, Interest: m}, n, nil
	case idDeclare:
		m, n, err := decodeDeclareBody(header, buf)
		if err != nil {
			return NetworkBody{}, 0, err
		}
		return NetworkBody{Kind: NetworkKindDeclare, Declare: m}, n, nil
	default:
		return NetworkBody{}, 0, ErrInvalidDiscriminant
	}
}

// --- Push ---

// Push carries a best-effort-or-reliable data sample; its own header
// carries no reliability bit (that lives on the enclosing FrameHeader).
type Push struct {
	WireExpr   WireExpr
	Payload    []byte
	Extensions []Extension
}

func (m Push) encodedLen() int {
	n := 1 + wireExprLen(m.WireExpr) + BytesLen(len(m.Payload))
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m Push) encode(buf []byte) (int, error) {
	if len(buf) < m.encodedLen() {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	buf[0] = makeHeader(idPush, flags)
	off := 1
	n, err := encodeWireExpr(buf[off:], m.WireExpr)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutBytes(buf[off:], m.Payload)
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

func decodePushBody(header byte, buf []byte) (Push, int, error) {
	var m Push
	w, n, err := decodeWireExpr(buf)
	if err != nil {
		return Push{}, 0, err
	}
	m.WireExpr = w
	off := n
	payload, n, err := GetBytes(buf[off:])
	if err != nil {
		return Push{}, 0, err
	}
	m.Payload = payload
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return Push{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- Request ---

// Request carries a query; RequestID width is negotiated via Resolution.
type Request struct {
	RequestID  uint64
	WireExpr   WireExpr
	Payload    []byte
	Extensions []Extension
}

func (m Request) encodedLen(res Resolution) int {
	n := 1 + res.Get(FieldRequestID).Bytes() + wireExprLen(m.WireExpr) + BytesLen(len(m.Payload))
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m Request) encode(buf []byte, res Resolution) (int, error) {
	if len(buf) < m.encodedLen(res) {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	buf[0] = makeHeader(idRequest, flags)
	off := 1
	n, err := putRequestID(buf[off:], m.RequestID, res.Get(FieldRequestID))
	if err != nil {
		return 0, err
	}
	off += n
	n, err = encodeWireExpr(buf[off:], m.WireExpr)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutBytes(buf[off:], m.Payload)
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

func decodeRequestBody(header byte, buf []byte, res Resolution) (Request, int, error) {
	var m Request
	id, n, err := getRequestID(buf, res.Get(FieldRequestID))
	if err != nil {
		return Request{}, 0, err
	}
	m.RequestID = id
	off := n
	w, n, err := decodeWireExpr(buf[off:])
	if err != nil {
		return Request{}, 0, err
	}
	m.WireExpr = w
	off += n
	payload, n, err := GetBytes(buf[off:])
	if err != nil {
		return Request{}, 0, err
	}
	m.Payload = payload
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return Request{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- Response ---

// Response carries one reply to a Request; ResponseFinal terminates the
// reply stream for a given RequestID.
type Response struct {
	RequestID  uint64
	WireExpr   WireExpr
	Payload    []byte
	Extensions []Extension
}

func (m Response) encodedLen(res Resolution) int {
	n := 1 + res.Get(FieldRequestID).Bytes() + wireExprLen(m.WireExpr) + BytesLen(len(m.Payload))
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m Response) encode(buf []byte, res Resolution) (int, error) {
	if len(buf) < m.encodedLen(res) {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	buf[0] = makeHeader(idResponse, flags)
	off := 1
	n, err := putRequestID(buf[off:], m.RequestID, res.Get(FieldRequestID))
	if err != nil {
		return 0, err
	}
	off += n
	n, err = encodeWireExpr(buf[off:], m.WireExpr)
	if err != nil {
		return 0, err
	}
	off += n
	n, err = PutBytes(buf[off:], m.Payload)
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

func decodeResponseBody(header byte, buf []byte, res Resolution) (Response, int, error) {
	var m Response
	id, n, err := getRequestID(buf, res.Get(FieldRequestID))
	if err != nil {
		return Response{}, 0, err
	}
	m.RequestID = id
	off := n
	w, n, err := decodeWireExpr(buf[off:])
	if err != nil {
		return Response{}, 0, err
	}
	m.WireExpr = w
	off += n
	payload, n, err := GetBytes(buf[off:])
	if err != nil {
		return Response{}, 0, err
	}
	m.Payload = payload
	off += n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return Response{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// ResponseFinal closes out a Request's reply stream.
type ResponseFinal struct {
	RequestID  uint64
	Extensions []Extension
}

func (m ResponseFinal) encodedLen(res Resolution) int {
	n := 1 + res.Get(FieldRequestID).Bytes()
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m ResponseFinal) encode(buf []byte, res Resolution) (int, error) {
	if len(buf) < m.encodedLen(res) {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if len(m.Extensions) > 0 {
		flags |= flagExtensions
	}
	buf[0] = makeHeader(idResponseFin, flags)
	off := 1
	n, err := putRequestID(buf[off:], m.RequestID, res.Get(FieldRequestID))
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

func decodeResponseFinalBody(header byte, buf []byte, res Resolution) (ResponseFinal, int, error) {
	var m ResponseFinal
	id, n, err := getRequestID(buf, res.Get(FieldRequestID))
	if err != nil {
		return ResponseFinal{}, 0, err
	}
	m.RequestID = id
	off := n
	if header&flagExtensions != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return ResponseFinal{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// --- Interest / InterestFinal ---

// Interest declares the sender's interest in a subtree of key expressions,
// optionally restricted and/or asking for the current state. InterestFinal
// shares the same message ID with both top flag bits clear.
type Interest struct {
	InterestID uint64
	WireExpr   WireExpr
	Restricted bool
	Current    bool
	Extensions []Extension
}

func (m Interest) encodedLen(res Resolution) int {
	n := 1 + res.Get(FieldRequestID).Bytes() + wireExprLen(m.WireExpr)
	for _, e := range m.Extensions {
		n += ExtLen(e)
	}
	return n
}

func (m Interest) encode(buf []byte, res Resolution) (int, error) {
	if len(buf) < m.encodedLen(res) {
		return 0, ErrBufferTooSmall
	}
	flags := uint8(0)
	if m.Restricted {
		flags |= flagInterestRestricted
	}
	if m.Current {
		flags |= flagInterestCurrent
	}
	if len(m.Extensions) > 0 {
		// Interest spends bits 6/7 on Restricted/Current, so its
		// extension marker reuses bit 5 (flagAck's position — a
		// different message ID, so no collision on the wire).
		flags |= flagAck
	}
	buf[0] = makeHeader(idInterest, flags)
	off := 1
	n, err := putRequestID(buf[off:], m.InterestID, res.Get(FieldRequestID))
	if err != nil {
		return 0, err
	}
	off += n
	n, err = encodeWireExpr(buf[off:], m.WireExpr)
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

func decodeInterestBody(header byte, buf []byte, res Resolution) (Interest, int, error) {
	var m Interest
	m.Restricted = header&flagInterestRestricted != 0
	m.Current = header&flagInterestCurrent != 0
	id, n, err := getRequestID(buf, res.Get(FieldRequestID))
	if err != nil {
		return Interest{}, 0, err
	}
	m.InterestID = id
	off := n
	w, n, err := decodeWireExpr(buf[off:])
	if err != nil {
		return Interest{}, 0, err
	}
	m.WireExpr = w
	off += n
	if header&flagAck != 0 {
		exts, n, err := DecodeExtensions(buf[off:], nil)
		if err != nil {
			return Interest{}, 0, err
		}
		m.Extensions = exts
		off += n
	}
	return m, off, nil
}

// InterestFinal signals no further Declare messages will answer a given
// Interest's current-state request.
type InterestFinal struct {
	InterestID uint64
}

func (m InterestFinal) encodedLen(res Resolution) int {
	return 1 + res.Get(FieldRequestID).Bytes()
}

func (m InterestFinal) encode(buf []byte, res Resolution) (int, error) {
	if len(buf) < m.encodedLen(res) {
		return 0, ErrBufferTooSmall
	}
	buf[0] = makeHeader(idInterest, 0)
	off := 1
	n, err := putRequestID(buf[off:], m.InterestID, res.Get(FieldRequestID))
	if err != nil {
		return 0, err
	}
	return off + n, nil
}

func decodeInterestFinalBody(buf []byte, res Resolution) (InterestFinal, int, error) {
	id, n, err := getRequestID(buf, res.Get(FieldRequestID))
	if err != nil {
		return InterestFinal{}, 0, err
	}
	return InterestFinal{InterestID: id}, n, nil
}
