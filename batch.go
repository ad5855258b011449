package zenoh

import "encoding/binary"

// StreamedEnvelopeLen is the size of the length prefix written before every
// batch when a session runs in streamed mode.
const StreamedEnvelopeLen = 2

// PutStreamedLength writes the little-endian u16 envelope for a batch of
// the given payload length.
func PutStreamedLength(buf []byte, payloadLen int) error {
	if len(buf) < StreamedEnvelopeLen {
		return ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint16(buf, uint16(payloadLen))
	return nil
}

// GetStreamedLength reads the little-endian u16 envelope preceding a batch.
func GetStreamedLength(buf []byte) (int, error) {
	if len(buf) < StreamedEnvelopeLen {
		return 0, ErrShortInput
	}
	return int(binary.LittleEndian.Uint16(buf)), nil
}

// WriteOne encodes a single transport message directly into buf, a
// sub-slice sized for exactly one message. It is a convenience for the
// establishment handshake, which emits one unframed response message per
// poll without needing a full Writer/BatchIter.
func WriteOne(buf []byte, m TransportMessage) ([]byte, error) {
	n, err := m.Encode(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Writer encodes a run of transport and network messages into a caller-
// owned byte buffer, grouping network messages under FrameHeaders and
// sealing batches at the negotiated batch size. It advances its own
// position across calls to Write, so consecutive calls continue filling
// whatever of buf remains.
type Writer struct {
	buf        []byte
	pos        int
	batchSize  int
	streamed   bool
	resolution Resolution
	sn         *uint64
	snMask     uint64

	start       int
	cursor      int
	frameActive bool
	curRel      Reliability
	curQoS      QoS

	metrics Metrics
}

// SetMetrics attaches a Metrics sink the Writer reports sealed batches to.
// A nil metrics (the default) disables reporting.
func (w *Writer) SetMetrics(m Metrics) { w.metrics = m }

// NewWriter builds a Writer over buf. sn is the session's running FrameSN
// counter (shared with the Reader side is not required — the writer owns
// it exclusively); snMask bounds the wraparound to the negotiated FrameSN
// width.
func NewWriter(buf []byte, batchSize int, streamed bool, resolution Resolution, sn *uint64, snMask uint64) *Writer {
	return &Writer{
		buf:        buf,
		batchSize:  batchSize,
		streamed:   streamed,
		resolution: resolution,
		sn:         sn,
		snMask:     snMask,
	}
}

// Reset rewinds the writer to the start of its buffer, discarding any
// unsealed progress. Used when a session is reused across batches that do
// not need to retain previously written bytes.
func (w *Writer) Reset() { w.pos = 0 }

func (w *Writer) effectiveBatchSize() int {
	if w.batchSize > 0 {
		return w.batchSize
	}
	return len(w.buf) - w.start
}

func (w *Writer) limit() int {
	end := w.start + w.effectiveBatchSize()
	if end > len(w.buf) {
		end = len(w.buf)
	}
	return end
}

func (w *Writer) beginBatch() {
	w.start = w.pos
	if w.streamed {
		w.cursor = w.start + StreamedEnvelopeLen
	} else {
		w.cursor = w.start
	}
	w.frameActive = false
}

func (w *Writer) encodeTransport(m TransportMessage) bool {
	limit := w.limit()
	if w.cursor > limit {
		return false
	}
	save := w.cursor
	w.frameActive = false
	n, err := m.Encode(w.buf[w.cursor:limit])
	if err != nil {
		w.cursor = save
		return false
	}
	w.cursor += n
	return true
}

func (w *Writer) encodeNetwork(m NetworkMessage) bool {
	limit := w.limit()
	if w.cursor > limit {
		return false
	}
	save := w.cursor
	if !w.frameActive || w.curRel != m.Reliability || w.curQoS != m.QoS {
		fh := FrameHeader{Reliability: m.Reliability, QoS: m.QoS, SN: *w.sn}
		n, err := encodeFrameHeader(w.buf[w.cursor:limit], fh, w.resolution)
		if err != nil {
			w.cursor = save
			return false
		}
		w.cursor += n
		w.frameActive = true
		w.curRel = m.Reliability
		w.curQoS = m.QoS
		*w.sn = (*w.sn + 1) & w.snMask
	}
	n, err := m.Body.encode(w.buf[w.cursor:limit], w.resolution)
	if err != nil {
		w.cursor = save
		return false
	}
	w.cursor += n
	return true
}

// seal finalizes the current batch: writes the streamed-mode length
// envelope if applicable and returns the sealed batch bytes. Returns
// ok=false if nothing beyond the envelope was written.
func (w *Writer) seal() ([]byte, bool) {
	length := w.cursor - w.start
	if w.streamed {
		if length <= StreamedEnvelopeLen {
			return nil, false
		}
		if err := PutStreamedLength(w.buf[w.start:], length-StreamedEnvelopeLen); err != nil {
			return nil, false
		}
	} else if length == 0 {
		return nil, false
	}
	batch := w.buf[w.start:w.cursor]
	w.pos = w.cursor
	if w.metrics != nil {
		w.metrics.FrameSealed()
	}
	return batch, true
}

// BatchIter lazily yields the batches produced by one Writer.Write call; a
// single call may span several batches if the buffer or batch_size forces
// a seal partway through the supplied messages.
type BatchIter struct {
	w         *Writer
	transport []TransportMessage
	network   []NetworkMessage
	ti, ni    int
	done      bool
}

// Write begins encoding transport then network messages into w's buffer,
// returning an iterator over the resulting batches. Slices yielded by the
// iterator remain valid until the next call to Next, Write, or Reset.
func (w *Writer) Write(transport []TransportMessage, network []NetworkMessage) *BatchIter {
	return &BatchIter{w: w, transport: transport, network: network}
}

// Next returns the next sealed batch, or ok=false once every message has
// been encoded (or the buffer is exhausted).
func (it *BatchIter) Next() ([]byte, bool) {
	if it.done {
		return nil, false
	}
	w := it.w
	if w.streamed && w.pos+StreamedEnvelopeLen > len(w.buf) {
		it.done = true
		return nil, false
	}
	w.beginBatch()

	for it.ti < len(it.transport) {
		if !w.encodeTransport(it.transport[it.ti]) {
			break
		}
		it.ti++
	}
	for it.ni < len(it.network) {
		if !w.encodeNetwork(it.network[it.ni]) {
			break
		}
		it.ni++
	}

	batch, ok := w.seal()
	if !ok {
		it.done = true
		return nil, false
	}
	if it.ti >= len(it.transport) && it.ni >= len(it.network) {
		it.done = true
	}
	return batch, true
}

// BatchReader decodes one batch's worth of Messages from a byte slice
// already stripped of any streamed-mode length envelope.
type BatchReader struct {
	buf        []byte
	resolution Resolution
	lastSN     *uint64
	frame      *FrameHeader
	done       bool
}

// NewBatchReader builds a reader over one batch's payload. lastSN, if
// non-nil, is the session's running FrameSN watermark: it is read and
// updated as frame headers are consumed, enforcing monotonicity with 0 as
// a wildcard.
func NewBatchReader(buf []byte, resolution Resolution, lastSN *uint64) *BatchReader {
	return &BatchReader{buf: buf, resolution: resolution, lastSN: lastSN}
}

// Next decodes the next Message, or ok=false when the batch is exhausted
// or a decode error forced early termination (previously yielded messages
// remain valid).
func (r *BatchReader) Next() (Message, bool) {
	for {
		if r.done || len(r.buf) == 0 {
			return Message{}, false
		}
		header := r.buf[0]
		switch {
		case isFrameID(header):
			fh, n, err := decodeFrameHeader(r.buf, r.resolution)
			if err != nil {
				log.Warning("zenoh: frame header decode failed, aborting batch")
				r.done = true
				return Message{}, false
			}
			if r.lastSN != nil {
				if !sequenceAcceptable(*r.lastSN, fh.SN) {
					log.Warning("zenoh: frame sequence number did not advance, aborting batch")
					r.done = true
					return Message{}, false
				}
				if fh.SN != 0 {
					*r.lastSN = fh.SN
				}
			}
			r.buf = r.buf[n:]
			r.frame = &fh
			continue
		case isTransportID(header):
			tm, n, err := decodeTransportBody(header, r.buf[1:])
			if err != nil {
				log.Warning("zenoh: transport message decode failed, aborting batch")
				r.done = true
				return Message{}, false
			}
			r.buf = r.buf[1+n:]
			return Message{Kind: MessageKindTransport, Transport: tm}, true
		default:
			if r.frame == nil {
				log.Warning("zenoh: network message with no preceding frame, aborting batch")
				r.done = true
				return Message{}, false
			}
			body, n, err := decodeNetworkBody(header, r.buf[1:], r.resolution)
			if err != nil {
				log.Warning("zenoh: network message decode failed, aborting batch")
				r.done = true
				return Message{}, false
			}
			r.buf = r.buf[1+n:]
			return Message{
				Kind: MessageKindNetwork,
				Network: NetworkMessage{
					Reliability: r.frame.Reliability,
					QoS:         r.frame.QoS,
					Body:        body,
				},
			}, true
		}
	}
}
