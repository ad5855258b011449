package zenoh

import (
	"io"
	"time"
)

// SessionState is the top-level per-session state, independent of the
// handshake sub-states tracked by Establishment.
type SessionState uint8

const (
	// SessionEncodeDecodeOnly bypasses the handshake entirely: Update
	// returns every decoded Message (transport included) unfiltered, for
	// callers that negotiated parameters out of band or just want codec
	// access.
	SessionEncodeDecodeOnly SessionState = iota
	SessionUninitialized
	SessionInitialized
	SessionOpened
)

// Liveness is a session endpoint's keepalive sub-state.
type Liveness uint8

const (
	LivenessOpened Liveness = iota
	LivenessUsed
	LivenessSynchronized
	LivenessClosed
)

type endpointLiveness struct {
	state    Liveness
	lastSync time.Time
}

func (e *endpointLiveness) touchUsed() {
	if e.state == LivenessOpened {
		e.state = LivenessUsed
	}
}

// sync advances Used->Synchronized on the first call after becoming Used,
// then watches for a gap of lease/4*4 (four missed keepalive intervals)
// before declaring the peer dead.
func (e *endpointLiveness) sync(now time.Time, leaseMillis uint64) {
	switch e.state {
	case LivenessUsed:
		e.state = LivenessSynchronized
		e.lastSync = now
	case LivenessSynchronized:
		threshold := leaseQuarter(leaseMillis) * 4
		if now.Sub(e.lastSync) > threshold {
			e.state = LivenessClosed
		}
	}
}

func (e *endpointLiveness) nextTimeout(leaseMillis uint64) time.Duration {
	quarter := leaseQuarter(leaseMillis)
	if e.state == LivenessSynchronized {
		if remaining := quarter - time.Since(e.lastSync); remaining > 0 {
			return remaining
		}
		return 0
	}
	return quarter
}

func leaseQuarter(leaseMillis uint64) time.Duration {
	return time.Duration(leaseMillis) * time.Millisecond / 4
}

// SessionParams configures a new Session. TXBuf and RXBuf are caller-owned
// and must outlive the session; their capacity bounds batch_size together
// with Handshake.BatchSize.
type SessionParams struct {
	ZID       ZenohID
	Streamed  bool
	TXBuf     []byte
	RXBuf     []byte
	Handshake HandshakeConfig
	Metrics   Metrics
}

// Session is the sans-I/O per-peer transport object: it owns a TX buffer,
// an RX buffer, the current negotiated parameters and a handshake state
// machine, but never performs I/O itself — callers supply an io.Reader to
// Update and an io.Writer to SendPending, and write the batches Tx yields
// themselves.
type Session struct {
	state    SessionState
	streamed bool
	mineZID  ZenohID

	txBuf []byte
	rxBuf []byte

	establishment *Establishment
	desc          Description
	pendingReply  []TransportMessage

	txSN    uint64
	rxSN    uint64
	snMask  uint64
	txWriter *Sender

	tx endpointLiveness
	rx endpointLiveness

	metrics Metrics
}

// NewListenerSession builds a session waiting for the connector's InitSyn.
func NewListenerSession(p SessionParams) *Session {
	s := newSession(p)
	s.state = SessionUninitialized
	s.establishment = NewListenerEstablishment(p.ZID, p.Handshake)
	return s
}

// NewConnectorSession builds a session that initiates the handshake,
// returning the InitSyn the caller must send before the first Update.
func NewConnectorSession(p SessionParams) (*Session, TransportMessage) {
	s := newSession(p)
	s.state = SessionUninitialized
	estab, syn := NewConnectorEstablishment(p.ZID, p.Handshake)
	s.establishment = estab
	return s, syn
}

// NewCodecOnlySession builds a session in EncodeDecodeOnly mode: no
// handshake runs, and Resolution/BatchSize are taken directly from
// Handshake (treated as already negotiated).
func NewCodecOnlySession(p SessionParams) *Session {
	s := newSession(p)
	s.state = SessionEncodeDecodeOnly
	cfg := p.Handshake.withDefaults()
	s.desc = Description{
		MineZID:    p.ZID,
		BatchSize:  cfg.BatchSize,
		Resolution: cfg.Resolution,
	}
	s.snMask = fieldMask(cfg.Resolution.Get(FieldFrameSN))
	return s
}

func newSession(p SessionParams) *Session {
	return &Session{
		streamed: p.Streamed,
		mineZID:  p.ZID,
		txBuf:    p.TXBuf,
		rxBuf:    p.RXBuf,
		metrics:  p.Metrics,
	}
}

func fieldMask(w Width) uint64 {
	switch w {
	case WidthU8:
		return 0xFF
	case WidthU16:
		return 0xFFFF
	case WidthU32:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFFFFFFFFFF
	}
}

// State reports the session's top-level state.
func (s *Session) State() SessionState { return s.state }

// Opened reports the negotiated Description once the session has opened
// and neither endpoint has gone Closed.
func (s *Session) Opened() (Description, bool) {
	return s.desc, s.state == SessionOpened && s.rx.state != LivenessClosed && s.tx.state != LivenessClosed
}

func (s *Session) applyDescription(d Description) {
	s.desc = d
	s.txSN = d.MineSN
	s.rxSN = 0
	s.snMask = fieldMask(d.Resolution.Get(FieldFrameSN))
	s.state = SessionOpened
	s.txWriter = nil
}

// Update reads one batch via r (honoring the streamed-mode length
// envelope) and decodes it. In EncodeDecodeOnly mode every Message is
// returned unfiltered; otherwise transport messages are consumed by the
// handshake/liveness logic and only NetworkMessage entries are returned.
// Any handshake reply produced is queued for SendPending rather than sent
// directly, keeping Update free of writes. Once a wire Close has put the
// RX side into LivenessClosed, Update is a no-op: it does not read from r
// at all.
func (s *Session) Update(r io.Reader) ([]Message, error) {
	if s.rx.state == LivenessClosed {
		return nil, nil
	}

	payload, err := s.readBatch(r)
	if err != nil {
		return nil, err
	}

	br := NewBatchReader(payload, s.desc.Resolution, &s.rxSN)
	var out []Message
	for {
		msg, ok := br.Next()
		if !ok {
			break
		}
		s.rx.touchUsed()

		if s.state == SessionEncodeDecodeOnly {
			out = append(out, msg)
			continue
		}
		switch msg.Kind {
		case MessageKindNetwork:
			out = append(out, msg)
		case MessageKindTransport:
			s.handleTransport(msg.Transport)
		}
	}
	if s.metrics != nil {
		s.metrics.BatchDecoded(len(out))
	}
	return out, nil
}

func (s *Session) handleTransport(tm TransportMessage) {
	switch tm.Kind {
	case TransportKindClose:
		s.rx.state = LivenessClosed
		if s.metrics != nil {
			s.metrics.LivenessChanged(LivenessClosed)
		}
		return
	case TransportKindKeepAlive:
		s.rx.touchUsed()
		return
	}
	if s.establishment == nil || s.state == SessionOpened {
		return
	}
	before := s.establishment.State()
	resp := s.establishment.Poll(tm)
	if after := s.establishment.State(); after != before && s.metrics != nil {
		s.metrics.HandshakeTransition(before, after)
	}
	if desc, ok := s.establishment.Opened(); ok {
		s.applyDescription(desc)
	}
	if resp != nil {
		s.pendingReply = append(s.pendingReply, *resp)
	}
}

func (s *Session) readBatch(r io.Reader) ([]byte, error) {
	if s.streamed {
		var lenBuf [StreamedEnvelopeLen]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, ErrCouldNotRead
		}
		n, err := GetStreamedLength(lenBuf[:])
		if err != nil {
			return nil, ErrCouldNotRead
		}
		if n > len(s.rxBuf) {
			return nil, ErrTransportTooSmall
		}
		if _, err := io.ReadFull(r, s.rxBuf[:n]); err != nil {
			return nil, ErrCouldNotRead
		}
		return s.rxBuf[:n], nil
	}
	n, err := r.Read(s.rxBuf)
	if err != nil {
		return nil, ErrCouldNotRead
	}
	return s.rxBuf[:n], nil
}

// SendPending flushes any handshake reply messages queued by Update,
// writing each through w.
func (s *Session) SendPending(w io.Writer) error {
	for _, tm := range s.pendingReply {
		out, err := WriteOne(s.txBuf, tm)
		if err != nil {
			return err
		}
		if _, err := w.Write(out); err != nil {
			return ErrCouldNotWrite
		}
		s.tx.touchUsed()
	}
	s.pendingReply = s.pendingReply[:0]
	return nil
}

// Sender wraps a Writer bound to the session's TX buffer and negotiated
// parameters, marking the TX endpoint Used as soon as a batch is written.
type Sender struct {
	s *Session
	w *Writer
}

// Tx returns the session's sender, valid once the session has opened (or
// is running EncodeDecodeOnly with parameters supplied up front).
func (s *Session) Tx() *Sender {
	if s.txWriter == nil {
		w := NewWriter(s.txBuf, int(s.desc.BatchSize), s.streamed, s.desc.Resolution, &s.txSN, s.snMask)
		w.SetMetrics(s.metrics)
		s.txWriter = &Sender{s: s, w: w}
	}
	return s.txWriter
}

// Write encodes network messages into batches, returning a BatchIter over
// the TX buffer. Slices yielded remain valid until the next Write call.
func (sd *Sender) Write(network []NetworkMessage) *BatchIter {
	sd.s.tx.touchUsed()
	if sd.s.metrics != nil {
		sd.s.metrics.BatchEncoded(len(network))
	}
	return sd.w.Write(nil, network)
}

// Sync advances both endpoints' liveness sub-state against now.
func (s *Session) Sync(now time.Time) {
	s.tx.sync(now, s.desc.MineLeaseMillis)
	s.rx.sync(now, s.desc.OtherLeaseMillis)
}

// NextTimeout reports how long until the host should next call Sync to
// keep liveness accurate (emitting a KeepAlive at lease/4 on the TX side).
func (s *Session) NextTimeout() time.Duration {
	tx := s.tx.nextTimeout(s.desc.MineLeaseMillis)
	rx := s.rx.nextTimeout(s.desc.OtherLeaseMillis)
	if rx < tx {
		return rx
	}
	return tx
}

// Close marks the local (TX) side of the session closed; the host should
// still emit a wire Close if a graceful peer-visible shutdown is wanted.
func (s *Session) Close() {
	s.tx.state = LivenessClosed
	if s.metrics != nil {
		s.metrics.LivenessChanged(LivenessClosed)
	}
}
