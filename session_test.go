package zenoh

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipe is the simplest thing satisfying Session's io.Reader/io.Writer
// contract in a test: writes land in one buffer, reads drain the other.
type pipe struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.readBuf.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.writeBuf.Write(b) }

// driveSessionHandshake wires a connector and listener Session over a pair
// of in-memory buffers and runs the same bounded poll loop as
// cmd/zenohping, stopping once both sides report Opened.
func driveSessionHandshake(t *testing.T, connParams, listParams SessionParams) (*Session, *Session) {
	t.Helper()
	r := require.New(t)

	aToB := new(bytes.Buffer)
	bToA := new(bytes.Buffer)
	connPipe := &pipe{readBuf: bToA, writeBuf: aToB}
	listPipe := &pipe{readBuf: aToB, writeBuf: bToA}

	connSess, syn := NewConnectorSession(connParams)
	listSess := NewListenerSession(listParams)

	out, err := WriteOne(make([]byte, 256), syn)
	r.NoError(err)
	_, err = connPipe.Write(out)
	r.NoError(err)

	for round := 0; round < 4; round++ {
		if _, ok := listSess.Opened(); !ok {
			_, err := listSess.Update(listPipe)
			r.NoError(err)
			r.NoError(listSess.SendPending(listPipe))
		}
		if _, ok := connSess.Opened(); ok {
			break
		}
		_, err := connSess.Update(connPipe)
		r.NoError(err)
		r.NoError(connSess.SendPending(connPipe))
	}

	_, connOpened := connSess.Opened()
	_, listOpened := listSess.Opened()
	r.True(connOpened)
	r.True(listOpened)
	return connSess, listSess
}

func TestSessionHandshakeEndToEnd(t *testing.T) {
	r := require.New(t)
	connMetrics := NewDefaultMetrics()
	listMetrics := NewDefaultMetrics()

	connSess, listSess := driveSessionHandshake(t,
		SessionParams{
			ZID:       mustZID(t, "sess-conn"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 5000, BatchSize: 512},
			Metrics:   connMetrics,
		},
		SessionParams{
			ZID:       mustZID(t, "sess-list"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 6000, BatchSize: 1024},
			Metrics:   listMetrics,
		},
	)

	connDesc, _ := connSess.Opened()
	listDesc, _ := listSess.Opened()
	r.Equal(BatchSize(512), connDesc.BatchSize)
	r.Equal(BatchSize(512), listDesc.BatchSize)
	r.True(connDesc.MineZID.Equal(listDesc.OtherZID))

	r.Greater(connMetrics.GetHandshakeSteps(), int64(0))
	r.Greater(listMetrics.GetHandshakeSteps(), int64(0))
}

func TestSessionPushAfterHandshake(t *testing.T) {
	r := require.New(t)
	connSess, listSess := driveSessionHandshake(t,
		SessionParams{
			ZID:       mustZID(t, "push-conn"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 5000, BatchSize: 512},
		},
		SessionParams{
			ZID:       mustZID(t, "push-list"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 6000, BatchSize: 1024},
		},
	)

	push := NetworkMessage{
		Reliability: ReliabilityReliable,
		QoS:         DefaultQoS(),
		Body: NetworkBody{
			Kind: NetworkKindPush,
			Push: Push{
				WireExpr: WireExpr{Suffix: []byte("a/b/c")},
				Payload:  []byte("hello"),
			},
		},
	}

	txBuf := new(bytes.Buffer)
	it := connSess.Tx().Write([]NetworkMessage{push})
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		_, err := txBuf.Write(batch)
		r.NoError(err)
	}

	msgs, err := listSess.Update(txBuf)
	r.NoError(err)
	r.Len(msgs, 1)
	r.Equal(MessageKindNetwork, msgs[0].Kind)
	r.Equal(NetworkKindPush, msgs[0].Network.Body.Kind)
	r.Equal([]byte("a/b/c"), msgs[0].Network.Body.Push.WireExpr.Suffix)
	r.Equal([]byte("hello"), msgs[0].Network.Body.Push.Payload)
}

func TestSessionSenderReportsEncodeMetrics(t *testing.T) {
	r := require.New(t)
	connMetrics := NewDefaultMetrics()
	connSess, _ := driveSessionHandshake(t,
		SessionParams{
			ZID:       mustZID(t, "metrics-conn"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 5000, BatchSize: 512},
			Metrics:   connMetrics,
		},
		SessionParams{
			ZID:       mustZID(t, "metrics-list"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 6000, BatchSize: 1024},
		},
	)

	push := NetworkMessage{
		Reliability: ReliabilityReliable,
		QoS:         DefaultQoS(),
		Body: NetworkBody{
			Kind: NetworkKindPush,
			Push: Push{WireExpr: WireExpr{Suffix: []byte("a")}, Payload: []byte("b")},
		},
	}
	it := connSess.Tx().Write([]NetworkMessage{push, push})
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}

	r.Equal(int64(2), connMetrics.GetBatchesEncoded())
	r.Greater(connMetrics.GetFramesSealed(), int64(0))
}

func TestSessionCodecOnlyModeReturnsUnfiltered(t *testing.T) {
	r := require.New(t)
	res := DefaultResolution()
	s := NewCodecOnlySession(SessionParams{
		ZID:       mustZID(t, "codec-only"),
		TXBuf:     make([]byte, 1024),
		RXBuf:     make([]byte, 1024),
		Handshake: HandshakeConfig{BatchSize: 1024, Resolution: res},
	})
	r.Equal(SessionEncodeDecodeOnly, s.State())

	buf := make([]byte, 256)
	off := 0
	n, err := KeepAlive{}.Encode(buf[off:])
	r.NoError(err)
	off += n
	n, err = encodeFrameHeader(buf[off:], FrameHeader{Reliability: ReliabilityReliable, SN: 1}, res)
	r.NoError(err)
	off += n
	n, err = Push{WireExpr: WireExpr{Suffix: []byte("x")}, Payload: []byte("y")}.encode(buf[off:])
	r.NoError(err)
	off += n

	r.LessOrEqual(off, len(s.rxBuf))
	msgs, err := s.Update(bytes.NewReader(buf[:off]))
	r.NoError(err)
	r.Len(msgs, 2)
	r.Equal(MessageKindTransport, msgs[0].Kind)
	r.Equal(TransportKindKeepAlive, msgs[0].Transport.Kind)
	r.Equal(MessageKindNetwork, msgs[1].Kind)
	r.Equal([]byte("y"), msgs[1].Network.Body.Push.Payload)
}

func TestSessionUpdateNoopsAfterReceivedClose(t *testing.T) {
	r := require.New(t)
	_, listSess := driveSessionHandshake(t,
		SessionParams{
			ZID:       mustZID(t, "rxclose-conn"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 5000, BatchSize: 512},
		},
		SessionParams{
			ZID:       mustZID(t, "rxclose-list"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 6000, BatchSize: 1024},
		},
	)

	closeMsg, err := WriteOne(make([]byte, 16), TransportMessage{Kind: TransportKindClose, Close: Close{}})
	r.NoError(err)
	msgs, err := listSess.Update(bytes.NewReader(closeMsg))
	r.NoError(err)
	r.Len(msgs, 0)
	r.Equal(LivenessClosed, listSess.rx.state)

	// flush() yields nothing and decode is a no-op: Update must not touch
	// r at all once RX is Closed, even when there are further valid bytes.
	push := NetworkMessage{Reliability: ReliabilityReliable, QoS: DefaultQoS(), Body: NetworkBody{
		Kind: NetworkKindPush, Push: Push{WireExpr: WireExpr{Suffix: []byte("x")}, Payload: []byte("y")},
	}}
	sn := uint64(0)
	w := NewWriter(make([]byte, 256), 0, false, DefaultResolution(), &sn, fieldMask(DefaultResolution().Get(FieldFrameSN)))
	it := w.Write(nil, []NetworkMessage{push})
	batch, ok := it.Next()
	r.True(ok)

	msgs, err = listSess.Update(bytes.NewReader(batch))
	r.NoError(err)
	r.Len(msgs, 0)
	r.Equal(LivenessClosed, listSess.rx.state)
}

func TestSessionCloseMarksTxClosed(t *testing.T) {
	r := require.New(t)
	m := NewDefaultMetrics()
	connSess, _ := driveSessionHandshake(t,
		SessionParams{
			ZID:       mustZID(t, "close-conn"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 5000, BatchSize: 512},
			Metrics:   m,
		},
		SessionParams{
			ZID:       mustZID(t, "close-list"),
			TXBuf:     make([]byte, 2048),
			RXBuf:     make([]byte, 2048),
			Handshake: HandshakeConfig{LeaseMillis: 6000, BatchSize: 1024},
		},
	)

	_, ok := connSess.Opened()
	r.True(ok)

	connSess.Close()
	_, ok = connSess.Opened()
	r.False(ok)
	r.Equal(LivenessClosed, connSess.tx.state)
	r.Equal(int64(1), m.GetLivenessTransitions())
}

func TestEndpointLivenessLifecycle(t *testing.T) {
	r := require.New(t)
	var e endpointLiveness
	r.Equal(LivenessOpened, e.state)

	e.touchUsed()
	r.Equal(LivenessUsed, e.state)

	// touchUsed is a no-op once past Opened.
	e.touchUsed()
	r.Equal(LivenessUsed, e.state)

	const leaseMillis = uint64(40)
	t0 := time.Now()
	e.sync(t0, leaseMillis)
	r.Equal(LivenessSynchronized, e.state)
	r.Equal(t0, e.lastSync)

	// Within the four-quarter window (40ms), stays Synchronized.
	e.sync(t0.Add(20*time.Millisecond), leaseMillis)
	r.Equal(LivenessSynchronized, e.state)

	// Past the four-quarter window, the peer is declared dead.
	e.sync(t0.Add(50*time.Millisecond), leaseMillis)
	r.Equal(LivenessClosed, e.state)
}

func TestSessionSyncAndNextTimeout(t *testing.T) {
	r := require.New(t)
	s := NewCodecOnlySession(SessionParams{
		ZID:       mustZID(t, "sync-sess"),
		TXBuf:     make([]byte, 64),
		RXBuf:     make([]byte, 64),
		Handshake: HandshakeConfig{BatchSize: 1024},
	})
	s.desc.MineLeaseMillis = 40
	s.desc.OtherLeaseMillis = 80

	s.tx.touchUsed()
	s.rx.touchUsed()

	t0 := time.Now()
	s.Sync(t0)
	r.Equal(LivenessSynchronized, s.tx.state)
	r.Equal(LivenessSynchronized, s.rx.state)

	// tx's quarter is 10ms, rx's is 20ms; NextTimeout reports the sooner
	// of the two once both are synchronized.
	timeout := s.NextTimeout()
	r.LessOrEqual(timeout, 10*time.Millisecond)

	s.Sync(t0.Add(200 * time.Millisecond))
	r.Equal(LivenessClosed, s.tx.state)
	r.Equal(LivenessClosed, s.rx.state)
}
