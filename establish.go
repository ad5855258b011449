package zenoh

// EstablishState is one of the four-state establishment machine's states.
type EstablishState uint8

const (
	StateWaitingInitSyn EstablishState = iota
	StateWaitingInitAck
	StateWaitingOpenSyn
	StateWaitingOpenAck
	StateOpened
)

// Description is the fully negotiated session produced by a completed
// handshake; immutable for the life of the session it seeds.
type Description struct {
	MineZID          ZenohID
	OtherZID         ZenohID
	BatchSize        BatchSize
	Resolution       Resolution
	MineLeaseMillis  uint64
	OtherLeaseMillis uint64
	MineSN           uint64
	OtherSN          uint64
}

// HandshakeConfig carries one peer's local proposal into the establishment
// machine.
type HandshakeConfig struct {
	Resolution   Resolution
	BatchSize    BatchSize
	LeaseMillis  uint64
	CookieSealer CookieSealer
}

func (c HandshakeConfig) withDefaults() HandshakeConfig {
	if c.Resolution == 0 {
		c.Resolution = DefaultResolution()
	}
	if c.BatchSize == 0 {
		c.BatchSize = 65535
	}
	if c.LeaseMillis == 0 {
		c.LeaseMillis = 10000
	}
	if c.CookieSealer == nil {
		c.CookieSealer = IdentityCookieSealer{}
	}
	return c
}

// Establishment drives the InitSyn/InitAck/OpenSyn/OpenAck handshake for
// one side of one session. Both peers instantiate one: the listener as
// WaitingInitSyn, the connector as WaitingInitAck (having already sent its
// InitSyn, returned by NewConnectorEstablishment).
type Establishment struct {
	state  EstablishState
	mine   HandshakeConfig
	mineZID ZenohID
	otherZID ZenohID

	Desc Description
}

// NewListenerEstablishment builds the responder side, which waits for the
// connector's InitSyn.
func NewListenerEstablishment(mineZID ZenohID, cfg HandshakeConfig) *Establishment {
	return &Establishment{
		state:   StateWaitingInitSyn,
		mine:    cfg.withDefaults(),
		mineZID: mineZID,
	}
}

// NewConnectorEstablishment builds the initiator side and returns the
// InitSyn it must send before any poll.
func NewConnectorEstablishment(mineZID ZenohID, cfg HandshakeConfig) (*Establishment, TransportMessage) {
	cfg = cfg.withDefaults()
	e := &Establishment{
		state:   StateWaitingInitAck,
		mine:    cfg,
		mineZID: mineZID,
	}
	syn := TransportMessage{
		Kind: TransportKindInitSyn,
		InitSyn: InitSyn{
			Version:    Version,
			ZID:        mineZID,
			Resolution: cfg.Resolution,
			BatchSize:  cfg.BatchSize,
		},
	}
	return e, syn
}

// State reports the machine's current state.
func (e *Establishment) State() EstablishState { return e.state }

// Opened reports the negotiated Description once the machine has reached
// Opened; ok is false before then.
func (e *Establishment) Opened() (Description, bool) {
	return e.Desc, e.state == StateOpened
}

// negotiate applies the shared InitAck/OpenSyn negotiation rule: batch_size
// is the minimum of both proposals (rejecting a proposal of 0), and
// Resolution is negotiated field-by-field, rejecting if the other side
// proposes a width strictly wider than mine. The derived initial sn comes
// from Shake128(mine_zid || other_zid) masked to the negotiated FrameSN
// width.
func (e *Establishment) negotiate(otherRes Resolution, otherBatch BatchSize) (BatchSize, Resolution, uint64, bool) {
	if otherBatch == 0 {
		return 0, 0, 0, false
	}
	res, ok := e.mine.Resolution.Negotiate(otherRes)
	if !ok {
		return 0, 0, 0, false
	}
	batch := e.mine.BatchSize
	if otherBatch < batch {
		batch = otherBatch
	}
	sn := DeriveInitialSN(e.mineZID, e.otherZID, res.Get(FieldFrameSN))
	return batch, res, sn, true
}

// Poll feeds one decoded transport message into the machine and returns
// the response to send, or nil if none is due. A message that does not
// match what the current state expects is logged and ignored: the state
// does not change and the caller should keep driving subsequent messages
// from the same batch.
func (e *Establishment) Poll(msg TransportMessage) *TransportMessage {
	switch e.state {
	case StateWaitingInitSyn:
		return e.pollWaitingInitSyn(msg)
	case StateWaitingInitAck:
		return e.pollWaitingInitAck(msg)
	case StateWaitingOpenSyn:
		return e.pollWaitingOpenSyn(msg)
	case StateWaitingOpenAck:
		return e.pollWaitingOpenAck(msg)
	default:
		log.Debug("zenoh: establishment already opened, ignoring transport message")
		return nil
	}
}

func (e *Establishment) pollWaitingInitSyn(msg TransportMessage) *TransportMessage {
	if msg.Kind != TransportKindInitSyn {
		log.Warning("zenoh: expected InitSyn, ignoring message")
		return nil
	}
	syn := msg.InitSyn
	e.otherZID = syn.ZID

	raw := make([]byte, syn.EncodedLen())
	if _, err := syn.Encode(raw); err != nil {
		log.Warning("zenoh: could not re-encode InitSyn into cookie")
		return nil
	}
	cookie, err := e.mine.CookieSealer.Seal(raw)
	if err != nil {
		log.Warning("zenoh: cookie sealing failed")
		return nil
	}

	e.state = StateWaitingOpenSyn
	return &TransportMessage{
		Kind: TransportKindInitAck,
		InitAck: InitAck{
			Version:    Version,
			ZID:        e.mineZID,
			Resolution: e.mine.Resolution,
			BatchSize:  e.mine.BatchSize,
			Cookie:     cookie,
		},
	}
}

func (e *Establishment) pollWaitingInitAck(msg TransportMessage) *TransportMessage {
	if msg.Kind != TransportKindInitAck {
		log.Warning("zenoh: expected InitAck, ignoring message")
		return nil
	}
	ack := msg.InitAck
	e.otherZID = ack.ZID

	batchSize, res, sn, ok := e.negotiate(ack.Resolution, ack.BatchSize)
	if !ok {
		log.Warning("zenoh: init negotiation rejected, widening or zero batch size proposed")
		return nil
	}
	e.Desc.MineZID = e.mineZID
	e.Desc.OtherZID = e.otherZID
	e.Desc.BatchSize = batchSize
	e.Desc.Resolution = res
	e.Desc.MineLeaseMillis = e.mine.LeaseMillis
	e.Desc.MineSN = sn

	e.state = StateWaitingOpenAck
	return &TransportMessage{
		Kind: TransportKindOpenSyn,
		OpenSyn: OpenSyn{
			LeaseMillis: e.mine.LeaseMillis,
			SN:          sn,
			Cookie:      ack.Cookie,
		},
	}
}

func (e *Establishment) pollWaitingOpenSyn(msg TransportMessage) *TransportMessage {
	if msg.Kind != TransportKindOpenSyn {
		log.Warning("zenoh: expected OpenSyn, ignoring message")
		return nil
	}
	syn := msg.OpenSyn

	plain, err := e.mine.CookieSealer.Open(syn.Cookie)
	if err != nil {
		log.Warning("zenoh: cookie could not be opened")
		return nil
	}
	initSyn, ok := extractInitSynFromCookie(plain)
	if !ok {
		log.Warning("zenoh: cookie did not carry an InitSyn")
		return nil
	}
	e.otherZID = initSyn.ZID

	batchSize, res, _, ok := e.negotiate(initSyn.Resolution, initSyn.BatchSize)
	if !ok {
		log.Warning("zenoh: open negotiation rejected, widening or zero batch size proposed")
		return nil
	}

	e.Desc.MineZID = e.mineZID
	e.Desc.OtherZID = e.otherZID
	e.Desc.BatchSize = batchSize
	e.Desc.Resolution = res
	e.Desc.MineLeaseMillis = e.mine.LeaseMillis
	e.Desc.OtherLeaseMillis = syn.LeaseMillis
	e.Desc.OtherSN = syn.SN
	e.Desc.MineSN = syn.SN

	e.state = StateOpened
	return &TransportMessage{
		Kind: TransportKindOpenAck,
		OpenAck: OpenAck{
			LeaseMillis: e.mine.LeaseMillis,
			SN:          syn.SN,
		},
	}
}

func (e *Establishment) pollWaitingOpenAck(msg TransportMessage) *TransportMessage {
	if msg.Kind != TransportKindOpenAck {
		log.Warning("zenoh: expected OpenAck, ignoring message")
		return nil
	}
	ack := msg.OpenAck

	e.Desc.MineZID = e.mineZID
	e.Desc.OtherZID = e.otherZID
	e.Desc.OtherLeaseMillis = ack.LeaseMillis
	e.Desc.OtherSN = ack.SN

	e.state = StateOpened
	return nil
}

// extractInitSynFromCookie decodes cookie as a nested batch of unframed
// transport messages and returns the first InitSyn found, per the
// reference 0-RTT cookie check: the cookie is never assumed to be a bare
// InitSyn encoding.
func extractInitSynFromCookie(cookie []byte) (InitSyn, bool) {
	r := NewBatchReader(cookie, DefaultResolution(), nil)
	for {
		msg, ok := r.Next()
		if !ok {
			return InitSyn{}, false
		}
		if msg.Kind == MessageKindTransport && msg.Transport.Kind == TransportKindInitSyn {
			return msg.Transport.InitSyn, true
		}
	}
}
