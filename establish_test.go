package zenoh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// driveHandshake runs a full four-message handshake between a freshly built
// connector and listener Establishment, feeding each response straight back
// to the other side until both report Opened.
func driveHandshake(t *testing.T, connCfg, listCfg HandshakeConfig) (*Establishment, *Establishment) {
	t.Helper()
	r := require.New(t)

	connZID := mustZID(t, "connector")
	listZID := mustZID(t, "listener")

	conn, syn := NewConnectorEstablishment(connZID, connCfg)
	list := NewListenerEstablishment(listZID, listCfg)

	resp := list.Poll(syn)
	r.NotNil(resp)
	r.Equal(TransportKindInitAck, resp.Kind)

	resp = conn.Poll(*resp)
	r.NotNil(resp)
	r.Equal(TransportKindOpenSyn, resp.Kind)

	resp = list.Poll(*resp)
	r.NotNil(resp)
	r.Equal(TransportKindOpenAck, resp.Kind)

	resp = conn.Poll(*resp)
	r.Nil(resp)

	r.Equal(StateOpened, conn.State())
	r.Equal(StateOpened, list.State())
	return conn, list
}

func mustZID(t *testing.T, seed string) ZenohID {
	t.Helper()
	b := make([]byte, 16)
	copy(b, seed)
	z, err := NewZenohID(b)
	require.NoError(t, err)
	return z
}

func TestEstablishmentRegularHandshake(t *testing.T) {
	r := require.New(t)
	connCfg := HandshakeConfig{LeaseMillis: 5000, BatchSize: 1024}
	listCfg := HandshakeConfig{LeaseMillis: 8000, BatchSize: 2048}

	conn, list := driveHandshake(t, connCfg, listCfg)

	connDesc, ok := conn.Opened()
	r.True(ok)
	listDesc, ok := list.Opened()
	r.True(ok)

	r.Equal(BatchSize(1024), connDesc.BatchSize)
	r.Equal(BatchSize(1024), listDesc.BatchSize)
	r.Equal(uint64(5000), connDesc.MineLeaseMillis)
	r.Equal(uint64(8000), connDesc.OtherLeaseMillis)
	r.Equal(uint64(8000), listDesc.MineLeaseMillis)
	r.Equal(uint64(5000), listDesc.OtherLeaseMillis)
	r.True(connDesc.MineZID.Equal(listDesc.OtherZID))
	r.True(listDesc.MineZID.Equal(connDesc.OtherZID))
	r.Equal(connDesc.MineSN, listDesc.MineSN)
	r.Equal(connDesc.MineSN, connDesc.OtherSN)
	r.Equal(listDesc.MineSN, listDesc.OtherSN)
}

func TestEstablishmentRejectsZeroBatchSizeProposal(t *testing.T) {
	r := require.New(t)
	connZID := mustZID(t, "connector")
	listZID := mustZID(t, "listener")

	conn, syn := NewConnectorEstablishment(connZID, HandshakeConfig{})
	list := NewListenerEstablishment(listZID, HandshakeConfig{})

	resp := list.Poll(syn)
	r.NotNil(resp)

	ack := *resp
	ack.InitAck.BatchSize = 0
	resp = conn.Poll(ack)
	r.Nil(resp)
	r.Equal(StateWaitingInitAck, conn.State())
}

func TestEstablishmentRejectsWiderResolutionProposal(t *testing.T) {
	r := require.New(t)
	connZID := mustZID(t, "connector")
	listZID := mustZID(t, "listener")

	var narrow Resolution
	narrow.Set(FieldFrameSN, WidthU8)
	narrow.Set(FieldRequestID, WidthU8)

	// The connector proposes a narrower Resolution than its default; the
	// listener (default U32 everywhere) replies with its own wider
	// proposal, which the connector's negotiate must reject rather than
	// silently widen to.
	conn, syn := NewConnectorEstablishment(connZID, HandshakeConfig{Resolution: narrow})
	list := NewListenerEstablishment(listZID, HandshakeConfig{})

	ack := list.Poll(syn)
	r.NotNil(ack)
	r.Equal(DefaultResolution(), ack.InitAck.Resolution)

	resp := conn.Poll(*ack)
	r.Nil(resp)
	r.Equal(StateWaitingInitAck, conn.State())
}

func TestEstablishmentIgnoresUnexpectedKindWithoutTransition(t *testing.T) {
	r := require.New(t)
	listZID := mustZID(t, "listener")
	list := NewListenerEstablishment(listZID, HandshakeConfig{})

	resp := list.Poll(TransportMessage{Kind: TransportKindOpenSyn, OpenSyn: OpenSyn{}})
	r.Nil(resp)
	r.Equal(StateWaitingInitSyn, list.State())

	connZID := mustZID(t, "connector")
	_, syn := NewConnectorEstablishment(connZID, HandshakeConfig{})
	resp = list.Poll(syn)
	r.NotNil(resp)
	r.Equal(StateWaitingOpenSyn, list.State())
}

func TestEstablishment0RTTCookieRecoversInitSyn(t *testing.T) {
	r := require.New(t)
	connCfg := HandshakeConfig{LeaseMillis: 5000, BatchSize: 1024}
	listCfg := HandshakeConfig{LeaseMillis: 8000, BatchSize: 2048}

	connZID := mustZID(t, "connector")
	listZID := mustZID(t, "listener")

	conn, syn := NewConnectorEstablishment(connZID, connCfg)
	list := NewListenerEstablishment(listZID, listCfg)

	ack := list.Poll(syn)
	r.NotNil(ack)

	recovered, ok := extractInitSynFromCookie(ack.InitAck.Cookie)
	r.True(ok)
	r.Equal(syn.InitSyn.ZID, recovered.ZID)
	r.Equal(syn.InitSyn.Resolution, recovered.Resolution)
	r.Equal(syn.InitSyn.BatchSize, recovered.BatchSize)

	openSyn := conn.Poll(*ack)
	r.NotNil(openSyn)
	openAck := list.Poll(*openSyn)
	r.NotNil(openAck)
	final := conn.Poll(*openAck)
	r.Nil(final)
}

// TestEstablishment0RTTSingleBufferSkipsInitAckRoundTrip covers the
// genuine 0-RTT case: a connector that already holds a cached InitSyn
// sends InitSyn immediately followed by an OpenSyn whose Cookie is that
// same InitSyn's raw bytes, in one buffer. The listener processes both in
// the same decode pass — the same shape a Session.Update loop drives
// per-message from one batch — and must reach Opened without the real
// InitAck this Poll(syn) call produces ever being sent back to the
// connector or fed into anything.
func TestEstablishment0RTTSingleBufferSkipsInitAckRoundTrip(t *testing.T) {
	r := require.New(t)
	connZID := mustZID(t, "connector")
	listZID := mustZID(t, "listener")

	_, syn := NewConnectorEstablishment(connZID, HandshakeConfig{LeaseMillis: 5000, BatchSize: 1024})
	list := NewListenerEstablishment(listZID, HandshakeConfig{LeaseMillis: 8000, BatchSize: 2048})

	rawSyn := make([]byte, syn.InitSyn.EncodedLen())
	n, err := syn.InitSyn.Encode(rawSyn)
	r.NoError(err)
	rawSyn = rawSyn[:n]

	openSyn := TransportMessage{
		Kind: TransportKindOpenSyn,
		OpenSyn: OpenSyn{
			LeaseMillis: 5000,
			SN:          7,
			Cookie:      rawSyn,
		},
	}

	// First message of the buffer: advances WaitingInitSyn -> WaitingOpenSyn.
	// Its InitAck reply is discarded here on purpose — a real 0-RTT peer
	// never waits to see it.
	ack := list.Poll(syn)
	r.NotNil(ack)
	r.Equal(TransportKindInitAck, ack.Kind)
	r.Equal(StateWaitingOpenSyn, list.State())

	// Second message of the same buffer, decoded and polled immediately
	// after the first with no intervening I/O.
	openAck := list.Poll(openSyn)
	r.NotNil(openAck)
	r.Equal(TransportKindOpenAck, openAck.Kind)

	desc, ok := list.Opened()
	r.True(ok)
	r.Equal(connZID, desc.OtherZID)
	r.Equal(uint64(7), desc.MineSN)
}

func TestEstablishmentWithNoiseCookieSealer(t *testing.T) {
	r := require.New(t)
	var secret [32]byte
	copy(secret[:], "a shared pre-established secret")
	sealer := NewNoiseCookieSealer(secret)

	connCfg := HandshakeConfig{LeaseMillis: 5000, BatchSize: 1024}
	listCfg := HandshakeConfig{LeaseMillis: 8000, BatchSize: 2048, CookieSealer: sealer}

	conn, list := driveHandshake(t, connCfg, listCfg)
	_, ok := conn.Opened()
	r.True(ok)
	_, ok = list.Opened()
	r.True(ok)
}
