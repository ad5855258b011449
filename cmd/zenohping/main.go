// Command zenohping drives two in-process zenoh sessions over an
// in-memory duplex buffer, demonstrating a regular handshake followed by a
// single Push message — a minimal standing-in for a real two-host run.
package main

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/atsika/zenohgo"
)

// loopback is the simplest thing satisfying Session's io.Reader/io.Writer
// contract: writes land in one buffer, reads drain the other.
type loopback struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.readBuf.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.writeBuf.Write(p) }

func main() {
	aToB := new(bytes.Buffer)
	bToA := new(bytes.Buffer)
	connector := &loopback{readBuf: bToA, writeBuf: aToB}
	listener := &loopback{readBuf: aToB, writeBuf: bToA}

	connCfg, err := zenoh.NewConfig(
		zenoh.WithZenohID(zenoh.NewRandomZenohID()),
		zenoh.WithLease(30*time.Second),
		zenoh.WithBatchSize(512),
	)
	if err != nil {
		log.Fatalf("connector config: %v", err)
	}
	listCfg, err := zenoh.NewConfig(
		zenoh.WithZenohID(zenoh.NewRandomZenohID()),
		zenoh.WithLease(37*time.Second),
		zenoh.WithBatchSize(1025),
	)
	if err != nil {
		log.Fatalf("listener config: %v", err)
	}

	connSession, syn := zenoh.NewConnectorSession(connCfg.SessionParams(make([]byte, 2048), make([]byte, 2048)))
	listSession := zenoh.NewListenerSession(listCfg.SessionParams(make([]byte, 2048), make([]byte, 2048)))

	out, err := zenoh.WriteOne(make([]byte, 256), syn)
	if err != nil {
		log.Fatalf("encode initial InitSyn: %v", err)
	}
	if _, err := connector.Write(out); err != nil {
		log.Fatalf("send InitSyn: %v", err)
	}

	for round := 0; round < 4; round++ {
		if _, ok := listSession.Opened(); !ok {
			if _, err := listSession.Update(listener); err != nil {
				log.Fatalf("listener update: %v", err)
			}
			if err := listSession.SendPending(listener); err != nil {
				log.Fatalf("listener send: %v", err)
			}
		}

		if _, ok := connSession.Opened(); ok {
			break
		}
		if _, err := connSession.Update(connector); err != nil {
			log.Fatalf("connector update: %v", err)
		}
		if err := connSession.SendPending(connector); err != nil {
			log.Fatalf("connector send: %v", err)
		}
	}

	connDesc, connOpened := connSession.Opened()
	listDesc, listOpened := listSession.Opened()
	fmt.Printf("connector opened=%v batch_size=%d other_lease=%dms\n", connOpened, connDesc.BatchSize, connDesc.OtherLeaseMillis)
	fmt.Printf("listener  opened=%v batch_size=%d other_lease=%dms\n", listOpened, listDesc.BatchSize, listDesc.OtherLeaseMillis)

	push := zenoh.NetworkMessage{
		Reliability: zenoh.ReliabilityReliable,
		QoS:         zenoh.DefaultQoS(),
		Body: zenoh.NetworkBody{
			Kind: zenoh.NetworkKindPush,
			Push: zenoh.Push{
				WireExpr: zenoh.WireExpr{Suffix: []byte("ab/cdef")},
				Payload:  []byte("hello from zenohping"),
			},
		},
	}

	it := connSession.Tx().Write([]zenoh.NetworkMessage{push})
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		if _, err := connector.Write(batch); err != nil {
			log.Fatalf("send push batch: %v", err)
		}
	}

	msgs, err := listSession.Update(listener)
	if err != nil {
		log.Fatalf("listener receive push: %v", err)
	}
	for _, m := range msgs {
		if m.Kind != zenoh.MessageKindNetwork || m.Network.Body.Kind != zenoh.NetworkKindPush {
			continue
		}
		p := m.Network.Body.Push
		fmt.Printf("listener received push wire_expr=%q payload=%q\n", p.WireExpr.Suffix, p.Payload)
	}
}
