package hostio

import (
	"bytes"
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// BlobTransport adapts a pair of append blobs in one container, one for
// outbound batches and one for inbound, into an io.Reader/io.Writer pair.
// Each Write appends one block; each Read downloads whatever has landed on
// the RX blob since the last Read.
type BlobTransport struct {
	ctx            context.Context
	client         *container.Client
	txName, rxName string
	readOffset     int64
	poll           *AdaptivePoll
}

// NewBlobTransport wires a BlobTransport to an existing container,
// creating the TX append blob if it does not already exist. The RX blob is
// expected to be created by the peer on its own side. poll drives the
// backoff Read applies while waiting for bytes past readOffset; a nil poll
// gets the default fast/steady pair.
func NewBlobTransport(ctx context.Context, client *container.Client, txName, rxName string, poll *AdaptivePoll) (*BlobTransport, error) {
	if _, err := client.NewAppendBlobClient(txName).Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, err
	}
	if poll == nil {
		poll = NewAdaptivePoll(DefaultFastPoll, DefaultSteadyPoll)
	}
	return &BlobTransport{ctx: ctx, client: client, txName: txName, rxName: rxName, poll: poll}, nil
}

// Write appends p as one block to the TX blob.
func (t *BlobTransport) Write(p []byte) (int, error) {
	_, err := t.client.NewAppendBlobClient(t.txName).AppendBlock(t.ctx, streaming.NopCloser(bytes.NewReader(p)), nil)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read downloads bytes from the RX blob starting at the last offset read
// and copies as much as fits into p, backing off through poll while the
// peer hasn't appended anything new yet.
func (t *BlobTransport) Read(p []byte) (int, error) {
	for {
		resp, err := t.client.NewBlobClient(t.rxName).DownloadStream(t.ctx, &blob.DownloadStreamOptions{
			Range: blob.HTTPRange{Offset: t.readOffset},
		})
		if err != nil {
			if bloberror.HasCode(err, bloberror.InvalidRange) {
				t.poll.Sleep()
				continue
			}
			return 0, err
		}

		n, err := io.ReadFull(resp.Body, p)
		resp.Body.Close()
		t.readOffset += int64(n)
		if err == io.ErrUnexpectedEOF {
			err = nil
		}
		t.poll.Reset()
		return n, err
	}
}
