package hostio

import (
	"context"
	"encoding/base64"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// QueueTransport adapts a pair of Azure Storage queues into an
// io.Reader/io.Writer pair, base64-encoding batch payloads since queue
// message bodies are text.
type QueueTransport struct {
	ctx     context.Context
	tx, rx  *azqueue.QueueClient
	pending []byte
	poll    *AdaptivePoll
}

// NewQueueTransport wires a QueueTransport over an existing pair of
// queues; tx is written to, rx is dequeued from. poll drives the backoff
// Read applies between empty dequeues; a nil poll gets the default
// fast/steady pair.
func NewQueueTransport(ctx context.Context, tx, rx *azqueue.QueueClient, poll *AdaptivePoll) *QueueTransport {
	if poll == nil {
		poll = NewAdaptivePoll(DefaultFastPoll, DefaultSteadyPoll)
	}
	return &QueueTransport{ctx: ctx, tx: tx, rx: rx, poll: poll}
}

// Write enqueues p as one message.
func (t *QueueTransport) Write(p []byte) (int, error) {
	_, err := t.tx.EnqueueMessage(t.ctx, base64.StdEncoding.EncodeToString(p), nil)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read copies from any buffered, already-dequeued bytes, fetching and
// deleting a fresh batch of messages from the queue once the buffer runs
// dry. An empty queue backs off through poll rather than returning
// immediately, so a host can drive Read in a tight loop.
func (t *QueueTransport) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		err := t.fill()
		switch {
		case err == nil:
			t.poll.Reset()
		case err == io.EOF:
			t.poll.Sleep()
		default:
			return 0, err
		}
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *QueueTransport) fill() error {
	resp, err := t.rx.DequeueMessages(t.ctx, &azqueue.DequeueMessagesOptions{NumberOfMessages: to.Ptr[int32](32)})
	if err != nil {
		return err
	}
	var combined []byte
	for _, msg := range resp.Messages {
		if msg.MessageText == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(*msg.MessageText)
		if err != nil {
			continue
		}
		combined = append(combined, data...)
		_, _ = t.rx.DeleteMessage(t.ctx, *msg.MessageID, *msg.PopReceipt, nil)
	}
	if len(combined) == 0 {
		return io.EOF
	}
	t.pending = combined
	return nil
}
